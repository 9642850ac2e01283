// Package oif writes NinjaTrader Order Instruction Files: newline-delimited
// command lines dropped into a directory the desktop terminal watches.
// The interface is append-only and one-way; status files the terminal
// writes back are not consumed.
package oif

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
)

// Writer emits sequentially numbered oif_N.txt files, one command line per
// target account. The counter is shared process state, so writes are
// serialized.
type Writer struct {
	dir    string
	logger *slog.Logger

	mu      sync.Mutex
	counter int
}

// NewWriter creates a writer for the terminal's incoming directory. The
// file counter resumes past any oif_N.txt already present so a restart
// never overwrites an unprocessed instruction file.
func NewWriter(dir string, logger *slog.Logger) (*Writer, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("checking oif directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("oif path %s is not a directory", dir)
	}

	w := &Writer{dir: dir, logger: logger}
	w.counter = nextCounter(dir)
	return w, nil
}

// PlaceMarketOrder writes one PLACE command per account into the next
// instruction file. Command grammar:
//
//	PLACE;<ACCOUNT>;<INSTRUMENT>;<ACTION>;<QTY>;MARKET;;;GTC;;<ORDER_ID>;;
func (w *Writer) PlaceMarketOrder(accounts []string, symbol, side string, quantity int, orderID string) (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	path := filepath.Join(w.dir, fmt.Sprintf("oif_%d.txt", w.counter))

	var b strings.Builder
	for _, account := range accounts {
		cmd := fmt.Sprintf("PLACE;%s;%s;%s;%d;MARKET;;;GTC;;%s;;",
			account, symbol, strings.ToUpper(side), quantity, orderID)
		b.WriteString(cmd)
		b.WriteByte('\n')
		w.logger.Info("oif command queued", "command", cmd, "file", path)
	}

	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return "", fmt.Errorf("writing instruction file: %w", err)
	}

	w.counter++
	return path, nil
}

// nextCounter scans dir for existing oif_N.txt files and returns one past
// the highest N found.
func nextCounter(dir string) int {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0
	}
	next := 0
	for _, entry := range entries {
		name := entry.Name()
		if !strings.HasPrefix(name, "oif_") || !strings.HasSuffix(name, ".txt") {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSuffix(strings.TrimPrefix(name, "oif_"), ".txt"))
		if err != nil {
			continue
		}
		if n >= next {
			next = n + 1
		}
	}
	return next
}

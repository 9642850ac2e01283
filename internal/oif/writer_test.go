package oif

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testWriter(t *testing.T, dir string) *Writer {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	w, err := NewWriter(dir, logger)
	require.NoError(t, err)
	return w
}

func TestWriter_PlaceMarketOrder(t *testing.T) {
	dir := t.TempDir()
	w := testWriter(t, dir)

	path, err := w.PlaceMarketOrder([]string{"Sim101", "DEMO2284144"}, "MNQ", "Buy", 1, "sig-42")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "oif_0.txt"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	want := "PLACE;Sim101;MNQ;BUY;1;MARKET;;;GTC;;sig-42;;\n" +
		"PLACE;DEMO2284144;MNQ;BUY;1;MARKET;;;GTC;;sig-42;;\n"
	assert.Equal(t, want, string(data))
}

func TestWriter_SequentialNumbering(t *testing.T) {
	dir := t.TempDir()
	w := testWriter(t, dir)

	first, err := w.PlaceMarketOrder([]string{"Sim101"}, "ES", "Sell", 2, "sig-1")
	require.NoError(t, err)
	second, err := w.PlaceMarketOrder([]string{"Sim101"}, "ES", "Buy", 2, "sig-2")
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "oif_0.txt"), first)
	assert.Equal(t, filepath.Join(dir, "oif_1.txt"), second)
}

func TestWriter_CounterResumesAfterRestart(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "oif_3.txt"), []byte("PLACE;...\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "oif_1.txt"), []byte("PLACE;...\n"), 0o644))
	// Terminal status files must not confuse the counter.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Sim101_Trade_02-18.txt"), nil, 0o644))

	w := testWriter(t, dir)
	path, err := w.PlaceMarketOrder([]string{"Sim101"}, "MNQ", "Buy", 1, "sig-9")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "oif_4.txt"), path)
}

func TestNewWriter_MissingDir(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	_, err := NewWriter(filepath.Join(t.TempDir(), "nope"), logger)
	assert.Error(t, err)
}

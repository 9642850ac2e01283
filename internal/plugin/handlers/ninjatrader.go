package handlers

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"tradehook/internal/domain"
	"tradehook/internal/oif"
	"tradehook/internal/plugin"
)

// ninjaTraderConfig is the per-handler configuration block.
type ninjaTraderConfig struct {
	Accounts  []string          `yaml:"accounts"`
	OIFDir    string            `yaml:"oif_dir"`
	SymbolMap map[string]string `yaml:"symbol_map"`
}

// NinjaTrader forwards market-order signals to a NinjaTrader desktop
// terminal by dropping order-instruction files into its watched directory.
type NinjaTrader struct {
	writer    *oif.Writer
	accounts  []string
	symbolMap map[string]string
	logger    *slog.Logger
}

func newNinjaTrader(deps plugin.Deps) (plugin.Handler, error) {
	var cfg ninjaTraderConfig
	found, err := deps.Config.DecodePlugin("ninjatrader", &cfg)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("ninjatrader requires a plugin_config block")
	}
	if len(cfg.Accounts) == 0 {
		return nil, fmt.Errorf("ninjatrader config needs at least one account")
	}
	if cfg.OIFDir == "" {
		return nil, fmt.Errorf("ninjatrader config needs oif_dir")
	}

	writer, err := oif.NewWriter(cfg.OIFDir, deps.Logger)
	if err != nil {
		return nil, err
	}

	return &NinjaTrader{
		writer:    writer,
		accounts:  cfg.Accounts,
		symbolMap: cfg.SymbolMap,
		logger:    deps.Logger,
	}, nil
}

func (h *NinjaTrader) Name() string { return "ninjatrader" }

func (h *NinjaTrader) Run(_ context.Context, evt domain.Event) error {
	if len(evt.Payload) == 0 {
		return plugin.ErrNoData
	}
	if !isMarketOrder(evt) {
		h.logger.Warn("unsupported order type, skipping",
			"handler", h.Name(),
			"o_type", evt.Str(domain.FieldOrderType),
			"action", evt.Str(domain.FieldAction),
		)
		return nil
	}

	symbol := h.translateSymbol(evt.Str(domain.FieldSymbol))
	side := evt.Str(domain.FieldSide)
	amount := int(evt.Get(domain.FieldAmount).Int())
	if symbol == "" || side == "" || amount <= 0 {
		h.logger.Warn("signal missing a required order parameter, skipping",
			"handler", h.Name(),
			"sym", symbol,
			"side", side,
			"amount", amount,
		)
		return nil
	}

	orderID := evt.Str(domain.FieldSignalID)
	if orderID == "" {
		orderID = uuid.NewString()
	}

	path, err := h.writer.PlaceMarketOrder(h.accounts, symbol, side, amount, orderID)
	if err != nil {
		return fmt.Errorf("writing order instruction file: %w", err)
	}

	h.logger.Info("order instruction file written",
		"handler", h.Name(),
		"file", path,
		"sym", symbol,
		"side", side,
		"amount", amount,
		"order_id", orderID,
	)
	return nil
}

// translateSymbol maps a charting-platform symbol to the terminal's
// instrument name (e.g. MNQ1! → MNQ). Unmapped symbols pass through.
func (h *NinjaTrader) translateSymbol(sym string) string {
	if mapped, ok := h.symbolMap[sym]; ok {
		return mapped
	}
	return sym
}

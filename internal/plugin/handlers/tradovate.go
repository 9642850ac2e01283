package handlers

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"tradehook/internal/domain"
	"tradehook/internal/plugin"
	"tradehook/internal/tradovate"
)

// Tradovate translates market-order signals into Tradovate order
// placements through the shared authenticated session.
type Tradovate struct {
	orders *tradovate.Orders
	logger *slog.Logger
}

func newTradovate(deps plugin.Deps) (plugin.Handler, error) {
	if deps.Orders == nil {
		return nil, fmt.Errorf("tradovate session not configured")
	}
	return &Tradovate{orders: deps.Orders, logger: deps.Logger}, nil
}

func (h *Tradovate) Name() string { return "tradovate" }

func (h *Tradovate) Run(ctx context.Context, evt domain.Event) error {
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

	symbol := evt.Str(domain.FieldSymbol)
	side := evt.Str(domain.FieldSide)
	amount := int(evt.Get(domain.FieldAmount).Int())
	if symbol == "" || side == "" || amount <= 0 {
		// Malformed field, not a process-level error.
		h.logger.Warn("signal missing a required order parameter, skipping",
			"handler", h.Name(),
			"sym", symbol,
			"side", side,
			"amount", amount,
		)
		return nil
	}

	clOrdID := evt.Str(domain.FieldSignalID)
	if clOrdID == "" {
		clOrdID = uuid.NewString()
	}

	h.logger.Info("placing market order",
		"handler", h.Name(),
		"order_id", clOrdID,
		"sym", symbol,
		"side", side,
		"amount", amount,
	)

	result, err := h.orders.PlaceMarketOrder(ctx, tradovate.MarketOrder{
		Symbol:   symbol,
		Side:     side,
		Quantity: amount,
		ClOrdID:  clOrdID,
		Comment:  evt.Str(domain.FieldComment),
	})
	if err != nil {
		return fmt.Errorf("placing order for %s: %w", symbol, err)
	}

	h.logger.Info("market order accepted",
		"handler", h.Name(),
		"order_id", result.OrderID,
		"cl_ord_id", clOrdID,
	)
	return nil
}

// isMarketOrder accepts either signal shape: an explicit o_type of
// "market" or a market_order action.
func isMarketOrder(evt domain.Event) bool {
	if strings.EqualFold(evt.Str(domain.FieldOrderType), "market") {
		return true
	}
	return strings.EqualFold(evt.Str(domain.FieldAction), "market_order")
}

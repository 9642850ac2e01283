package tradovate

import (
	"context"
	"fmt"
	"sync"
)

// Account is one Tradovate trading account.
// https://api.tradovate.com/#tag/Accounting/operation/accountList
type Account struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	UserID int64  `json:"userId"`
	Active bool   `json:"active"`
}

// AccountList fetches the accounts visible to the authenticated user.
func (c *Client) AccountList(ctx context.Context) ([]Account, error) {
	var accounts []Account
	if err := c.get(ctx, "/account/list", &accounts); err != nil {
		return nil, err
	}
	return accounts, nil
}

// MarketOrder describes one market order placement.
type MarketOrder struct {
	Symbol   string
	Side     string // "Buy" or "Sell"
	Quantity int
	ClOrdID  string
	Comment  string
}

type placeOrderRequest struct {
	AccountSpec string `json:"accountSpec"`
	AccountID   int64  `json:"accountId"`
	ClOrdID     string `json:"clOrdId,omitempty"`
	Action      string `json:"action"`
	Symbol      string `json:"symbol"`
	OrderQty    int    `json:"orderQty"`
	OrderType   string `json:"orderType"`
	Text        string `json:"text,omitempty"`
	IsAutomated bool   `json:"isAutomated"`
}

// OrderResult is the upstream response to an order placement.
type OrderResult struct {
	OrderID       int64  `json:"orderId"`
	FailureReason string `json:"failureReason"`
	FailureText   string `json:"failureText"`
}

// Orders wraps order placement against the first active account. The
// account is resolved once and reused.
type Orders struct {
	client *Client

	mu      sync.Mutex
	account *Account
}

func NewOrders(client *Client) *Orders {
	return &Orders{client: client}
}

// PlaceMarketOrder places a market order on the resolved account.
// https://api.tradovate.com/#tag/Orders/operation/placeOrder
func (o *Orders) PlaceMarketOrder(ctx context.Context, order MarketOrder) (*OrderResult, error) {
	account, err := o.resolveAccount(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolving account: %w", err)
	}

	req := placeOrderRequest{
		AccountSpec: account.Name,
		AccountID:   account.ID,
		ClOrdID:     order.ClOrdID,
		Action:      order.Side,
		Symbol:      order.Symbol,
		OrderQty:    order.Quantity,
		OrderType:   "Market",
		Text:        order.Comment,
		IsAutomated: true,
	}

	var result OrderResult
	if err := o.client.post(ctx, "/order/placeorder", req, &result); err != nil {
		return nil, err
	}
	if result.FailureReason != "" {
		return &result, fmt.Errorf("order rejected: %s (%s)", result.FailureReason, result.FailureText)
	}
	return &result, nil
}

func (o *Orders) resolveAccount(ctx context.Context) (*Account, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.account != nil {
		return o.account, nil
	}

	accounts, err := o.client.AccountList(ctx)
	if err != nil {
		return nil, err
	}
	if len(accounts) == 0 {
		return nil, fmt.Errorf("no tradovate accounts available")
	}
	o.account = &accounts[0]
	return o.account, nil
}

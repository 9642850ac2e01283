package domain

import (
	"encoding/json"
	"time"

	"github.com/tidwall/gjson"
)

// Event is one decoded trading-signal payload received over the webhook.
// The payload is kept raw; handlers need disjoint subsets of its keys, so
// field validation happens lazily in each handler rather than centrally.
type Event struct {
	Payload    json.RawMessage `json:"payload"`
	ReceivedAt time.Time       `json:"received_at"`
}

// NewEvent wraps a raw webhook body.
func NewEvent(payload json.RawMessage) Event {
	return Event{Payload: payload, ReceivedAt: time.Now().UTC()}
}

// Valid reports whether the payload is a JSON object with at least one key.
// Arrays, scalars and empty objects cannot be acted on by any handler.
func (e Event) Valid() bool {
	if !json.Valid(e.Payload) {
		return false
	}
	parsed := gjson.ParseBytes(e.Payload)
	return parsed.IsObject() && len(parsed.Map()) > 0
}

// Get returns the value at a gjson path within the payload.
func (e Event) Get(path string) gjson.Result {
	return gjson.GetBytes(e.Payload, path)
}

// Str returns the string value of a top-level key, or "" if absent.
func (e Event) Str(key string) string {
	return e.Get(key).String()
}

// Well-known TradingView signal fields. Only the fields a given handler
// reads are required for that handler; everything else rides along.
const (
	FieldAction     = "action"        // e.g. "market_order"
	FieldSymbol     = "sym"           // instrument, e.g. "MNQ"
	FieldSide       = "side"          // "Buy" or "Sell"
	FieldAmount     = "amount"        // contract count
	FieldOrderType  = "o_type"        // e.g. "market"
	FieldComment    = "comment"       // free-form, attached to orders
	FieldSignalID   = "sig_id"        // idempotency id from the alert
	FieldPrevPosLen = "prev_pos_size" // previous position size, for sync checks
)

package models

// AssetUpdate is the message carried on the feed topic and the assets.<id> channels.
type AssetUpdate struct {
	Asset           Asset `json:"asset"`
	MarketUpdatedAt int64 `json:"market_updated_at"` // unix milli, global store stamp
	SeqID           int64 `json:"seq_id"`            // monotonic counter per asset
}

const (
	SeverityInfo        = "info"
	SeverityDestructive = "destructive"
)

// Notification is a toast-style message for the dashboard.
type Notification struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Severity    string `json:"severity"`
	Timestamp   int64  `json:"timestamp"` // unix milli
}

const (
	ControlStart = "start"
	ControlStop  = "stop"
)

// ControlCommand toggles the simulated feed.
type ControlCommand struct {
	Action      string `json:"action"`
	RequestedAt int64  `json:"requested_at"`
}

package protocol

import "encoding/json"

const (
	ActionSubscribe      = "subscribe"
	ActionUnsubscribe    = "unsubscribe"
	ActionUnsubscribeAll = "unsubscribe_all"
	ActionStartFeed      = "start_feed"
	ActionStopFeed       = "stop_feed"
)

// Outbound message types.
const (
	TypeAck            = "ack"
	TypeError          = "error"
	TypeAsset          = "asset"
	TypeNotification   = "notification"
	TypeHighlight      = "highlight"
	TypeHighlightClear = "highlight_clear"
)

type WSRequest struct {
	Action  string         `json:"action"`
	Payload RequestPayload `json:"payload"`
	ID      string         `json:"id,omitempty"`
}

type RequestPayload struct {
	Assets []string `json:"assets"`
}

type WSResponse struct {
	Type    string      `json:"type"`
	ID      string      `json:"id,omitempty"`     // Matches request ID
	Status  string      `json:"status,omitempty"` // "success", "error"
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

// HighlightData lists the rows to flag or unflag.
type HighlightData struct {
	IDs []string `json:"ids"`
}

// Envelope wraps a payload that is already JSON, such as an AssetUpdate from Redis.
func Envelope(msgType string, payload string) ([]byte, error) {
	return json.Marshal(WSResponse{Type: msgType, Data: json.RawMessage(payload)})
}

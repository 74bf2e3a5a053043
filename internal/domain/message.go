package domain

// ChatMessage is an immutable entry of the append-only chat log.
// ID and Timestamp are server-assigned on append.
type ChatMessage struct {
	ID        uint64 `json:"id"`
	Sender    string `json:"sender"`
	Text      string `json:"text"`
	Timestamp int64  `json:"timestamp"` // epoch millis
}

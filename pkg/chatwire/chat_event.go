package chatwire

// Chat event types accepted by the persistence gateway.
const (
	EventChatSent     = "chat_sent"
	EventChatReceived = "chat_received"
)

// ChatEvent is one record in the gateway's ordered chat history. Submitting a
// chat_sent event opens a new assistant turn; chat_received records the
// finalized assistant message for that turn.
type ChatEvent struct {
	ID          string `json:"id"`
	Type        string `json:"type"`
	Text        string `json:"text"`
	CreatedAtMs int64  `json:"created_at_ms"`
}

package chat

import "github.com/google/uuid"

// Message is one entry in the conversation transcript. Messages are
// append-only except the trailing assistant message, which is replaced in
// place while it streams. At most one trailing non-user message carries
// IsStreaming.
type Message struct {
	ID          string `json:"id"`
	Text        string `json:"text"`
	IsUser      bool   `json:"is_user"`
	IsStreaming bool   `json:"is_streaming"`
}

func newUserMessage(text string) Message {
	return Message{ID: uuid.NewString(), Text: text, IsUser: true}
}

func newStreamingPlaceholder() Message {
	return Message{ID: uuid.NewString(), IsStreaming: true}
}

package chatwire

import (
	"encoding/json"
	"strings"
)

// ContentPayload is the body of a content event. IsStreaming is optional on
// the wire and defaults to true.
type ContentPayload struct {
	Content     string `json:"content"`
	IsStreaming *bool  `json:"is_streaming,omitempty"`
}

func (p ContentPayload) Streaming() bool {
	if p.IsStreaming == nil {
		return true
	}
	return *p.IsStreaming
}

// NotificationPayload is the body of a notification/toast event.
type NotificationPayload struct {
	Type    string `json:"type,omitempty"`
	Message string `json:"message"`
}

// InterfacePayload carries a UI command string, e.g. "show info sheet".
type InterfacePayload struct {
	Message string `json:"message"`
}

// Content decodes the envelope payload as a content event. Missing or
// mistyped fields fall back to zero values; the streaming flag defaults to
// true.
func (e *Envelope) Content() ContentPayload {
	var p ContentPayload
	if e != nil && len(e.Payload) > 0 {
		_ = json.Unmarshal(e.Payload, &p)
	}
	return p
}

// Notification decodes the envelope payload as a notification event.
func (e *Envelope) Notification() NotificationPayload {
	var p NotificationPayload
	if e != nil && len(e.Payload) > 0 {
		_ = json.Unmarshal(e.Payload, &p)
	}
	return p
}

// Interface decodes the envelope payload as an interface command. The command
// string is trimmed for registry lookup.
func (e *Envelope) Interface() InterfacePayload {
	var p InterfacePayload
	if e != nil && len(e.Payload) > 0 {
		_ = json.Unmarshal(e.Payload, &p)
	}
	p.Message = strings.TrimSpace(p.Message)
	return p
}

// Package chatwire defines the JSON wire contract carried by the chat SSE
// stream: the tagged event envelope, its typed payloads, and the chat event
// records exchanged with the persistence gateway.
package chatwire

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/atlasguide/atlas-go/pkg/sse"
)

// Kind tags an envelope with the recognized event family.
type Kind int

const (
	KindUnknown Kind = iota
	KindContent
	KindNotification
	KindStop
	KindMap
	KindInterface
)

func (k Kind) String() string {
	switch k {
	case KindContent:
		return "content"
	case KindNotification:
		return "notification"
	case KindStop:
		return "stop"
	case KindMap:
		return "map"
	case KindInterface:
		return "interface"
	default:
		return "unknown"
	}
}

// kindByName maps lowercase wire event types to kinds. Aliases match the
// backend's older event names.
var kindByName = map[string]Kind{
	"content":      KindContent,
	"notification": KindNotification,
	"toast":        KindNotification,
	"stop":         KindStop,
	"finish":       KindStop,
	"map":          KindMap,
	"interface":    KindInterface,
	"hook":         KindInterface,
}

// Envelope is one decoded stream event. Payload is the raw JSON body; use the
// typed accessors for case analysis. Seq is stamped by the router in dispatch
// order.
type Envelope struct {
	Kind    Kind
	Type    string
	Payload json.RawMessage
	Seq     uint64
}

// ParseError is a local decode failure. The frame it belongs to is skipped;
// the stream stays alive.
type ParseError struct {
	EventType string
	Err       error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("chatwire: undecodable payload for event %q: %v", e.EventType, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Decode parses a frame into an envelope. Event type matching is
// case-insensitive; an empty payload is allowed (terminal events carry none),
// anything else must be valid JSON or the frame is rejected with a ParseError.
func Decode(f *sse.Frame) (*Envelope, error) {
	if f == nil {
		return nil, &ParseError{Err: fmt.Errorf("nil frame")}
	}

	kind, ok := kindByName[strings.ToLower(strings.TrimSpace(f.Event))]
	if !ok {
		kind = KindUnknown
	}

	env := &Envelope{Kind: kind, Type: f.Event}

	data := strings.TrimSpace(f.Data)
	if data == "" {
		return env, nil
	}
	if !json.Valid([]byte(data)) {
		return nil, &ParseError{EventType: f.Event, Err: fmt.Errorf("invalid JSON")}
	}
	env.Payload = json.RawMessage(data)
	return env, nil
}

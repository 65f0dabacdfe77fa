// Package chat owns the conversation state machine: the ordered transcript,
// the streaming placeholder lifecycle, and dedup-guarded persistence of
// finalized assistant turns.
package chat

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/atlasguide/atlas-go/pkg/chatwire"
)

// State is the engine's position in the turn lifecycle.
type State int

const (
	StateIdle State = iota
	StateAwaitingStream
	StateStreaming
	StateFinalizing
)

func (s State) String() string {
	switch s {
	case StateAwaitingStream:
		return "awaiting_stream"
	case StateStreaming:
		return "streaming"
	case StateFinalizing:
		return "finalizing"
	default:
		return "idle"
	}
}

// Engine mutates a single conversation under single-writer confinement. All
// mutation goes through the engine; the mutex exists because the UI may call
// SendMessage while the router drains a stream on another goroutine.
type Engine struct {
	gw  Gateway
	log zerolog.Logger

	mu                      sync.Mutex
	state                   State
	messages                []Message
	lastPersistedReceivedID string
}

// NewEngine builds an engine around the given persistence gateway. The
// gateway is injected rather than reached through a shared singleton.
func NewEngine(gw Gateway) *Engine {
	return &Engine{
		gw:  gw,
		log: log.With().Str("component", "chat").Logger(),
	}
}

// Hydrate replays the gateway's ordered history into the transcript:
// chat_sent records become user messages, chat_received records assistant
// messages. Nothing hydrated is left streaming.
func (e *Engine) Hydrate(ctx context.Context) error {
	events, err := e.gw.ChatEventsInOrder(ctx)
	if err != nil {
		return errors.Wrap(err, "chat: load history")
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.messages = e.messages[:0]
	for _, ev := range events {
		switch ev.Type {
		case chatwire.EventChatSent:
			e.messages = append(e.messages, Message{ID: ev.ID, Text: ev.Text, IsUser: true})
		case chatwire.EventChatReceived:
			e.messages = append(e.messages, Message{ID: ev.ID, Text: ev.Text})
			e.lastPersistedReceivedID = ev.ID
		default:
			e.log.Debug().Str("event_type", ev.Type).Msg("skipping unrecognized history event")
		}
	}
	e.state = StateIdle
	return nil
}

// SendMessage appends the user message and an empty streaming placeholder,
// and returns the chat_sent event to submit to the gateway. A blank text is a
// no-op and reports false.
func (e *Engine) SendMessage(text string) (chatwire.ChatEvent, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return chatwire.ChatEvent{}, false
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	user := newUserMessage(text)
	e.messages = append(e.messages, user, newStreamingPlaceholder())
	e.state = StateAwaitingStream

	return chatwire.ChatEvent{
		ID:          user.ID,
		Type:        chatwire.EventChatSent,
		Text:        text,
		CreatedAtMs: time.Now().UnixMilli(),
	}, true
}

// ApplyStreamingText applies one content event. The wire contract delivers
// the cumulative total text of the assistant turn, so the trailing streaming
// message is replaced outright, never appended to. When no streaming message
// is trailing, a fresh assistant message is appended.
func (e *Engine) ApplyStreamingText(text string, isStreaming bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if last := e.trailingAssistantLocked(); last != nil && last.IsStreaming {
		last.Text = text
		last.IsStreaming = isStreaming
	} else {
		e.messages = append(e.messages, Message{ID: uuid.NewString(), Text: text, IsStreaming: isStreaming})
	}
	e.state = StateStreaming
}

// FinalizeStreaming closes out the trailing assistant message: an empty one
// is removed, a non-empty one has its streaming flag cleared and is persisted
// as a chat_received record unless its id already matches the dedup key.
// Calling it again after the turn is closed has no further effect.
func (e *Engine) FinalizeStreaming(ctx context.Context) error {
	e.mu.Lock()

	last := e.trailingAssistantLocked()
	if last == nil {
		e.state = StateIdle
		e.mu.Unlock()
		return nil
	}

	if strings.TrimSpace(last.Text) == "" {
		e.messages = e.messages[:len(e.messages)-1]
		e.state = StateIdle
		e.mu.Unlock()
		return nil
	}

	last.IsStreaming = false
	if last.ID == e.lastPersistedReceivedID {
		e.state = StateIdle
		e.mu.Unlock()
		return nil
	}

	e.state = StateFinalizing
	ev := chatwire.ChatEvent{
		ID:          last.ID,
		Type:        chatwire.EventChatReceived,
		Text:        last.Text,
		CreatedAtMs: time.Now().UnixMilli(),
	}
	e.mu.Unlock()

	body, err := e.gw.AddEvent(ctx, ev)
	if body != nil {
		_ = body.Close()
	}

	e.mu.Lock()
	e.state = StateIdle
	if err == nil {
		e.lastPersistedReceivedID = ev.ID
	}
	e.mu.Unlock()

	if err != nil {
		return errors.Wrap(err, "chat: persist received message")
	}
	return nil
}

// trailingAssistantLocked returns the last message if it is a non-user
// message, else nil. Caller holds e.mu.
func (e *Engine) trailingAssistantLocked() *Message {
	if len(e.messages) == 0 {
		return nil
	}
	last := &e.messages[len(e.messages)-1]
	if last.IsUser {
		return nil
	}
	return last
}

func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Messages returns a snapshot of the transcript.
func (e *Engine) Messages() []Message {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]Message(nil), e.messages...)
}

// LastPersistedReceivedID exposes the dedup key for inspection.
func (e *Engine) LastPersistedReceivedID() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastPersistedReceivedID
}

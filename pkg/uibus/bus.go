// Package uibus fans UI actions out to subscribers over an in-process
// watermill pub/sub, keeping the protocol core decoupled from whatever
// renders toasts and sheets.
package uibus

import (
	"context"
	"encoding/json"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Topic carries every UI action published by the router.
const Topic = "ui.actions"

type ActionKind string

const (
	KindToast           ActionKind = "toast"
	KindDismissKeyboard ActionKind = "dismiss_keyboard"
	KindShowInfoSheet   ActionKind = "show_info_sheet"
	KindTextFieldFocus  ActionKind = "text_field_focus"
)

// Action is one UI instruction emitted by the event router.
type Action struct {
	Kind    ActionKind `json:"kind"`
	Message string     `json:"message,omitempty"`
	Focused bool       `json:"focused,omitempty"`
}

// Bus implements the router's UINotifier over a gochannel pub/sub.
type Bus struct {
	ch  *gochannel.GoChannel
	log zerolog.Logger
}

func NewBus() *Bus {
	logger := log.With().Str("component", "uibus").Logger()
	return &Bus{
		ch: gochannel.NewGoChannel(
			gochannel.Config{OutputChannelBuffer: 64},
			newWatermillLogger(logger),
		),
		log: logger,
	}
}

func (b *Bus) publish(a Action) {
	payload, err := json.Marshal(a)
	if err != nil {
		b.log.Warn().Err(err).Str("kind", string(a.Kind)).Msg("failed to marshal action")
		return
	}
	msg := message.NewMessage(watermill.NewUUID(), payload)
	if err := b.ch.Publish(Topic, msg); err != nil {
		b.log.Warn().Err(err).Str("kind", string(a.Kind)).Msg("failed to publish action")
	}
}

func (b *Bus) Toast(messageText string) {
	b.publish(Action{Kind: KindToast, Message: messageText})
}

func (b *Bus) DismissKeyboard() {
	b.publish(Action{Kind: KindDismissKeyboard})
}

func (b *Bus) ShowInfoSheet() {
	b.publish(Action{Kind: KindShowInfoSheet})
}

func (b *Bus) SetTextFieldFocused(focused bool) {
	b.publish(Action{Kind: KindTextFieldFocus, Focused: focused})
}

// Subscribe returns a channel of decoded actions. It closes when ctx is
// cancelled or the bus is closed; undecodable payloads are dropped with a
// warning.
func (b *Bus) Subscribe(ctx context.Context) (<-chan Action, error) {
	msgs, err := b.ch.Subscribe(ctx, Topic)
	if err != nil {
		return nil, err
	}
	out := make(chan Action, 64)
	go func() {
		defer close(out)
		for msg := range msgs {
			var a Action
			if err := json.Unmarshal(msg.Payload, &a); err != nil {
				b.log.Warn().Err(err).Msg("dropping undecodable action")
				msg.Ack()
				continue
			}
			// an abandoned subscriber must not pin this goroutine
			select {
			case out <- a:
				msg.Ack()
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

func (b *Bus) Close() error {
	return b.ch.Close()
}

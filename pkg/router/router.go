// Package router drains one SSE stream at a time and dispatches decoded
// events, strictly in wire order, to the conversation engine, the feature
// collection, and the UI notifier.
package router

import (
	"context"
	"io"
	"strings"
	"sync/atomic"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/atlasguide/atlas-go/pkg/chat"
	"github.com/atlasguide/atlas-go/pkg/chatwire"
	"github.com/atlasguide/atlas-go/pkg/geo"
	"github.com/atlasguide/atlas-go/pkg/sse"
)

// UINotifier is the narrow callback surface the router holds instead of a
// back-reference into the UI layer.
type UINotifier interface {
	Toast(message string)
	DismissKeyboard()
	ShowInfoSheet()
	SetTextFieldFocused(focused bool)
}

// NopNotifier discards all UI notifications.
type NopNotifier struct{}

func (NopNotifier) Toast(string) {}

func (NopNotifier) DismissKeyboard() {}

func (NopNotifier) ShowInfoSheet() {}

func (NopNotifier) SetTextFieldFocused(bool) {}

// Router is a single-threaded cooperative dispatcher. Each envelope is fully
// handled, including any persistence step, before the next frame is pulled,
// so downstream mutations always happen in wire order.
type Router struct {
	eng      *chat.Engine
	features *geo.Collection
	ui       UINotifier
	commands map[string]func(UINotifier)

	seq atomic.Uint64
	log zerolog.Logger
}

func NewRouter(eng *chat.Engine, features *geo.Collection, ui UINotifier) *Router {
	if ui == nil {
		ui = NopNotifier{}
	}
	r := &Router{
		eng:      eng,
		features: features,
		ui:       ui,
		commands: map[string]func(UINotifier){},
		log:      log.With().Str("component", "router").Logger(),
	}
	r.RegisterCommand("show info sheet", func(ui UINotifier) { ui.ShowInfoSheet() })
	return r
}

// RegisterCommand adds an interface-event command. Lookup is
// case-insensitive.
func (r *Router) RegisterCommand(command string, fn func(UINotifier)) {
	if fn == nil {
		return
	}
	r.commands[strings.ToLower(strings.TrimSpace(command))] = fn
}

// Run consumes the stream until it ends, errors, or ctx is cancelled. In all
// three cases the safety-net finalize runs exactly once, so a message is
// never left permanently streaming. Parse-level decode failures skip the
// frame and keep the stream alive; transport errors are terminal and
// returned. A finalize that fails to persist is returned once the stream is
// drained, unless a transport or cancellation error takes precedence.
func (r *Router) Run(ctx context.Context, body io.ReadCloser) error {
	if body == nil {
		return nil
	}
	defer func() { _ = body.Close() }()

	// finalize persistence must outlive cancellation of the stream ctx,
	// otherwise a cancelled turn with content is never persisted
	finalizeCtx := context.WithoutCancel(ctx)

	finalized := false
	var finalizeErr error
	record := func(err error) {
		if err == nil {
			return
		}
		r.log.Warn().Err(err).Msg("finalize failed to persist")
		if finalizeErr == nil {
			finalizeErr = err
		}
	}
	finish := func() {
		if finalized {
			return
		}
		finalized = true
		record(r.eng.FinalizeStreaming(finalizeCtx))
	}

	p := sse.NewParser(body)
	for {
		if ctx.Err() != nil {
			finish()
			return ctx.Err()
		}

		frame, err := p.Next()
		if err == io.EOF {
			// stream ended without a terminal event, run the safety net
			finish()
			return finalizeErr
		}
		if err != nil {
			finish()
			return errors.Wrap(err, "router: drain stream")
		}

		env, err := chatwire.Decode(frame)
		if err != nil {
			r.log.Warn().Err(err).Str("event_type", frame.Event).Msg("skipping undecodable frame")
			continue
		}
		env.Seq = r.seq.Add(1)

		switch env.Kind {
		case chatwire.KindStop:
			finalized = true
		case chatwire.KindContent:
			// content after a stop reopens the turn, the safety net has
			// to close it again
			finalized = false
		}
		record(r.dispatch(finalizeCtx, env))
	}
}

func (r *Router) dispatch(ctx context.Context, env *chatwire.Envelope) error {
	switch env.Kind {
	case chatwire.KindContent:
		p := env.Content()
		r.eng.ApplyStreamingText(p.Content, p.Streaming())

	case chatwire.KindNotification:
		p := env.Notification()
		r.ui.Toast(p.Message)

	case chatwire.KindStop:
		return r.eng.FinalizeStreaming(ctx)

	case chatwire.KindMap:
		if err := r.features.ApplyPayload(env.Payload); err != nil {
			r.log.Warn().Err(err).Uint64("seq", env.Seq).Msg("map event rejected, collection unchanged")
		}
		r.ui.DismissKeyboard()

	case chatwire.KindInterface:
		p := env.Interface()
		fn, ok := r.commands[strings.ToLower(p.Message)]
		if !ok {
			r.log.Debug().Str("command", p.Message).Msg("unrecognized interface command")
			return nil
		}
		fn(r.ui)

	default:
		r.log.Debug().Str("event_type", env.Type).Uint64("seq", env.Seq).Msg("ignoring unknown event")
	}
	return nil
}

// Seq returns the number of envelopes dispatched so far.
func (r *Router) Seq() uint64 { return r.seq.Load() }

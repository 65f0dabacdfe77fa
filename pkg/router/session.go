package router

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/atlasguide/atlas-go/pkg/chat"
)

// Session serializes sends against one conversation. Exactly one SSE stream
// is drained per outstanding turn; a send issued while a previous stream is
// still draining is queued and dispatched when the conversation returns to
// idle, never interleaved with it.
type Session struct {
	eng *chat.Engine
	r   *Router
	gw  chat.Gateway
	log zerolog.Logger

	mu      sync.Mutex
	queue   []string
	running bool
}

func NewSession(eng *chat.Engine, r *Router, gw chat.Gateway) *Session {
	return &Session{
		eng: eng,
		r:   r,
		gw:  gw,
		log: log.With().Str("component", "session").Logger(),
	}
}

// Send submits text as a new user turn and blocks until its stream is fully
// drained, plus any turns queued behind it. When another Send is already
// draining, the text is enqueued and Send returns immediately.
func (s *Session) Send(ctx context.Context, text string) error {
	s.mu.Lock()
	if s.running {
		s.queue = append(s.queue, text)
		s.log.Debug().Int("queued", len(s.queue)).Msg("conversation busy, send queued")
		s.mu.Unlock()
		return nil
	}
	s.running = true
	s.mu.Unlock()

	// every accepted send is dispatched: a failed turn does not strand the
	// texts queued behind it, and running is cleared in the same critical
	// section that observes the empty queue so no enqueue can be orphaned
	var firstErr error
	for {
		if err := s.turn(ctx, text); err != nil {
			s.log.Warn().Err(err).Msg("turn failed, continuing with queued sends")
			if firstErr == nil {
				firstErr = err
			}
		}

		s.mu.Lock()
		if len(s.queue) == 0 {
			s.running = false
			s.mu.Unlock()
			return firstErr
		}
		text = s.queue[0]
		s.queue = s.queue[1:]
		s.mu.Unlock()
	}
}

func (s *Session) turn(ctx context.Context, text string) error {
	ev, ok := s.eng.SendMessage(text)
	if !ok {
		return nil
	}

	body, err := s.gw.AddEvent(ctx, ev)
	if err != nil {
		// the placeholder never saw content, finalize removes it and the
		// user message survives for retry
		_ = s.eng.FinalizeStreaming(ctx)
		return errors.Wrap(err, "session: submit chat event")
	}

	return s.r.Run(ctx, body)
}

// Pending returns how many sends are queued behind the draining turn.
func (s *Session) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

package router

import (
	"context"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/atlasguide/atlas-go/pkg/chat"
	"github.com/atlasguide/atlas-go/pkg/chatwire"
	"github.com/atlasguide/atlas-go/pkg/geo"
)

type fakeGateway struct {
	mu     sync.Mutex
	events []chatwire.ChatEvent
}

func (g *fakeGateway) AddEvent(_ context.Context, ev chatwire.ChatEvent) (io.ReadCloser, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.events = append(g.events, ev)
	return io.NopCloser(strings.NewReader("")), nil
}

func (g *fakeGateway) ChatEventsInOrder(context.Context) ([]chatwire.ChatEvent, error) {
	return nil, nil
}

func (g *fakeGateway) countByType(eventType string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	n := 0
	for _, ev := range g.events {
		if ev.Type == eventType {
			n++
		}
	}
	return n
}

type recordingNotifier struct {
	mu      sync.Mutex
	toasts  []string
	actions []string
}

func (n *recordingNotifier) Toast(msg string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.toasts = append(n.toasts, msg)
	n.actions = append(n.actions, "toast")
}

func (n *recordingNotifier) DismissKeyboard() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.actions = append(n.actions, "dismiss_keyboard")
}

func (n *recordingNotifier) ShowInfoSheet() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.actions = append(n.actions, "show_info_sheet")
}

func (n *recordingNotifier) SetTextFieldFocused(bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.actions = append(n.actions, "text_field_focus")
}

func newTestRig() (*chat.Engine, *geo.Collection, *recordingNotifier, *Router, *fakeGateway) {
	gw := &fakeGateway{}
	eng := chat.NewEngine(gw)
	features := geo.NewCollection()
	ui := &recordingNotifier{}
	return eng, features, ui, NewRouter(eng, features, ui), gw
}

func body(s string) io.ReadCloser {
	return io.NopCloser(strings.NewReader(s))
}

func TestRun_StreamingTurnScenario(t *testing.T) {
	eng, _, _, r, gw := newTestRig()
	eng.SendMessage("Hello")

	stream := "event: content\n" +
		`data: {"content":"Hi"}` + "\n\n" +
		"event: content\n" +
		`data: {"content":"Hi there"}` + "\n\n" +
		"event: stop\n\n"

	require.NoError(t, r.Run(context.Background(), body(stream)))

	messages := eng.Messages()
	require.Len(t, messages, 2)
	require.Equal(t, "Hi there", messages[1].Text)
	require.False(t, messages[1].IsStreaming)
	require.Equal(t, 1, gw.countByType(chatwire.EventChatReceived))
	require.Equal(t, chat.StateIdle, eng.State())
}

func TestRun_DuplicateStopPersistsOnce(t *testing.T) {
	eng, _, _, r, gw := newTestRig()
	eng.SendMessage("Hello")

	stream := "event: content\n" +
		`data: {"content":"Hi there"}` + "\n\n" +
		"event: stop\n\nevent: stop\n\n"

	require.NoError(t, r.Run(context.Background(), body(stream)))
	require.Equal(t, 1, gw.countByType(chatwire.EventChatReceived))
}

func TestRun_StreamEndWithoutStopRunsSafetyNet(t *testing.T) {
	eng, _, _, r, gw := newTestRig()
	eng.SendMessage("Hello")

	stream := "event: content\n" + `data: {"content":"truncated answer"}` + "\n\n"

	require.NoError(t, r.Run(context.Background(), body(stream)))

	messages := eng.Messages()
	require.False(t, messages[len(messages)-1].IsStreaming)
	require.Equal(t, 1, gw.countByType(chatwire.EventChatReceived))
}

type errBody struct {
	data string
	read bool
}

func (b *errBody) Read(p []byte) (int, error) {
	if !b.read {
		b.read = true
		return copy(p, b.data), nil
	}
	return 0, errors.New("connection dropped")
}

func (b *errBody) Close() error { return nil }

func TestRun_TransportErrorBeforeContentRemovesPlaceholder(t *testing.T) {
	eng, _, _, r, gw := newTestRig()
	eng.SendMessage("Hello")

	err := r.Run(context.Background(), &errBody{data: ": ping\n"})
	require.Error(t, err)

	messages := eng.Messages()
	require.Len(t, messages, 1)
	require.True(t, messages[0].IsUser)
	require.Equal(t, "Hello", messages[0].Text)
	require.Equal(t, chat.StateIdle, eng.State())
	require.Equal(t, 0, gw.countByType(chatwire.EventChatReceived))
}

func TestRun_MalformedPayloadSkippedStreamStaysAlive(t *testing.T) {
	eng, _, _, r, _ := newTestRig()
	eng.SendMessage("Hello")

	stream := "event: content\ndata: {broken\n\n" +
		"event: content\n" + `data: {"content":"recovered"}` + "\n\nevent: stop\n\n"

	require.NoError(t, r.Run(context.Background(), body(stream)))
	messages := eng.Messages()
	require.Equal(t, "recovered", messages[len(messages)-1].Text)
}

func TestRun_MapEventUpdatesFeaturesAndDismissesKeyboard(t *testing.T) {
	_, features, ui, r, _ := newTestRig()

	stream := "event: map\n" +
		`data: {"data":{"features":[{"type":"Feature","geometry":{"type":"Point","coordinates":[28.97801,41.00861]},"properties":{}}]}}` +
		"\n\nevent: stop\n\n"

	require.NoError(t, r.Run(context.Background(), body(stream)))
	require.Equal(t, 1, features.Len())
	require.Contains(t, ui.actions, "dismiss_keyboard")
	require.Contains(t, features.CanonicalString(), "[28.978,41.0086]")
}

func TestRun_NotificationAndInterfaceEvents(t *testing.T) {
	_, _, ui, r, _ := newTestRig()

	stream := "event: toast\n" + `data: {"message":"saved"}` + "\n\n" +
		"event: interface\n" + `data: {"message":"Show Info Sheet"}` + "\n\n" +
		"event: interface\n" + `data: {"message":"do a barrel roll"}` + "\n\n" +
		"event: stop\n\n"

	require.NoError(t, r.Run(context.Background(), body(stream)))
	require.Equal(t, []string{"saved"}, ui.toasts)
	require.Contains(t, ui.actions, "show_info_sheet")
	// unrecognized command is a logged no-op
	require.Len(t, ui.actions, 2)
}

func TestRun_UnknownEventsAreNoOps(t *testing.T) {
	eng, features, ui, r, _ := newTestRig()

	stream := "event: telemetry\ndata: {}\n\nevent: stop\n\n"

	require.NoError(t, r.Run(context.Background(), body(stream)))
	require.Empty(t, eng.Messages())
	require.Equal(t, 0, features.Len())
	require.Empty(t, ui.actions)
}

func TestRun_DispatchFollowsWireOrder(t *testing.T) {
	eng, _, _, r, _ := newTestRig()
	eng.SendMessage("Hello")

	stream := "event: content\n" + `data: {"content":"a"}` + "\n\n" +
		"event: content\n" + `data: {"content":"ab"}` + "\n\n" +
		"event: content\n" + `data: {"content":"abc"}` + "\n\n" +
		"event: stop\n\n"

	require.NoError(t, r.Run(context.Background(), body(stream)))
	messages := eng.Messages()
	require.Equal(t, "abc", messages[1].Text)
	require.Equal(t, uint64(4), r.Seq())
}

func TestRun_CancellationRunsSafetyNetOnce(t *testing.T) {
	eng, _, _, r, gw := newTestRig()
	eng.SendMessage("Hello")
	eng.ApplyStreamingText("partial", true)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := r.Run(ctx, body("event: content\ndata: {\"content\":\"never seen\"}\n\n"))
	require.ErrorIs(t, err, context.Canceled)

	messages := eng.Messages()
	require.Equal(t, "partial", messages[len(messages)-1].Text)
	require.False(t, messages[len(messages)-1].IsStreaming)
	require.Equal(t, 1, gw.countByType(chatwire.EventChatReceived))
}

// receiveFailGateway accepts chat_sent records but fails every
// chat_received write.
type receiveFailGateway struct {
	fakeGateway
}

func (g *receiveFailGateway) AddEvent(ctx context.Context, ev chatwire.ChatEvent) (io.ReadCloser, error) {
	if ev.Type == chatwire.EventChatReceived {
		return nil, errors.New("disk full")
	}
	return g.fakeGateway.AddEvent(ctx, ev)
}

func TestRun_PersistFailureSurfacesFromRun(t *testing.T) {
	gw := &receiveFailGateway{}
	eng := chat.NewEngine(gw)
	r := NewRouter(eng, geo.NewCollection(), nil)
	eng.SendMessage("Hello")

	stream := "event: content\n" + `data: {"content":"Hi there"}` + "\n\nevent: stop\n\n"

	err := r.Run(context.Background(), body(stream))
	require.Error(t, err)
	require.Contains(t, err.Error(), "persist received message")

	// nothing was recorded as persisted, so a later turn can retry
	require.Equal(t, "", eng.LastPersistedReceivedID())
}

// ctxAwareGateway refuses writes once its context is cancelled, like the
// HTTP and SQLite gateways do.
type ctxAwareGateway struct {
	fakeGateway
}

func (g *ctxAwareGateway) AddEvent(ctx context.Context, ev chatwire.ChatEvent) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return g.fakeGateway.AddEvent(ctx, ev)
}

func TestRun_CancelledTurnStillPersistsContent(t *testing.T) {
	gw := &ctxAwareGateway{}
	eng := chat.NewEngine(gw)
	r := NewRouter(eng, geo.NewCollection(), nil)
	eng.SendMessage("Hello")
	eng.ApplyStreamingText("partial", true)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := r.Run(ctx, body("event: content\ndata: {\"content\":\"never seen\"}\n\n"))
	require.ErrorIs(t, err, context.Canceled)

	messages := eng.Messages()
	require.False(t, messages[len(messages)-1].IsStreaming)
	require.Equal(t, 1, gw.countByType(chatwire.EventChatReceived))
}

func TestRun_ContentAfterStopIsNotLeftStreaming(t *testing.T) {
	eng, _, _, r, gw := newTestRig()
	eng.SendMessage("Hello")

	stream := "event: content\n" + `data: {"content":"Hi"}` + "\n\n" +
		"event: stop\n\n" +
		"event: content\n" + `data: {"content":"late addendum"}` + "\n\n"

	require.NoError(t, r.Run(context.Background(), body(stream)))

	messages := eng.Messages()
	require.Equal(t, "late addendum", messages[len(messages)-1].Text)
	require.False(t, messages[len(messages)-1].IsStreaming)
	require.Equal(t, 2, gw.countByType(chatwire.EventChatReceived))
}

func TestRun_NilBodyIsNoOp(t *testing.T) {
	_, _, _, r, _ := newTestRig()
	require.NoError(t, r.Run(context.Background(), nil))
}

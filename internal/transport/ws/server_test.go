package ws

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loft-algerie/messaging/internal/domain"
	"github.com/loft-algerie/messaging/internal/security"
	httpmw "github.com/loft-algerie/messaging/internal/transport/http/middleware"
)

type stubMembers struct{}

func (stubMembers) IsParticipant(_ context.Context, _, userID string) (bool, error) {
	return userID == "u1", nil
}

type stubChat struct {
	hub *Hub
}

func (s stubChat) Send(ctx context.Context, convID, sender, content string, typ domain.MessageType) (*domain.Message, error) {
	if strings.TrimSpace(content) == "" {
		return nil, domain.ErrEmptyMessage
	}
	m := domain.Message{ID: "m1", ConversationID: convID, SenderID: sender, Content: content, Type: domain.MessageText, CreatedAt: time.Now()}
	s.hub.PublishMessage(ctx, m)
	return &m, nil
}

type stubRead struct {
	hub *Hub
}

func (s stubRead) MarkRead(ctx context.Context, convID, userID string) (time.Time, error) {
	now := time.Now()
	s.hub.PublishRead(ctx, convID, userID, now)
	return now, nil
}

func newRequestWithOrigin(origin string) *http.Request {
	r := httptest.NewRequest(http.MethodGet, "/ws/conversations/c1", nil)
	if origin != "" {
		r.Header.Set("Origin", origin)
	}
	return r
}

// newTestServer mounts HandleWS behind a fake auth layer taking the user id from
// the X-User header.
func newTestServer(t *testing.T) (*httptest.Server, *Hub) {
	return newTestServerWith(t, Options{})
}

func newTestServerWith(t *testing.T, opts Options) (*httptest.Server, *Hub) {
	t.Helper()
	hub := NewHub()
	srv := NewServer(hub, stubMembers{}, stubChat{hub: hub}, stubRead{hub: hub}, opts)

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if u := r.Header.Get("X-User"); u != "" {
				r = r.WithContext(httpmw.WithIdentity(r.Context(), &security.Identity{UserID: u}))
			}
			next.ServeHTTP(w, r)
		})
	})
	r.Get("/ws/conversations/{id}", srv.HandleWS)

	ts := httptest.NewServer(r)
	t.Cleanup(ts.Close)
	return ts, hub
}

func dial(t *testing.T, ts *httptest.Server, user string) (*websocket.Conn, *http.Response, error) {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/conversations/c1"
	h := http.Header{}
	if user != "" {
		h.Set("X-User", user)
	}
	return websocket.DefaultDialer.Dial(url, h)
}

func readFrame(t *testing.T, c *websocket.Conn) map[string]any {
	t.Helper()
	require.NoError(t, c.SetReadDeadline(time.Now().Add(2*time.Second)))
	var m map[string]any
	require.NoError(t, c.ReadJSON(&m))
	return m
}

func TestHandleWSRejectsBeforeUpgrade(t *testing.T) {
	ts, _ := newTestServer(t)

	_, resp, err := dial(t, ts, "")
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	_, resp, err = dial(t, ts, "u2")
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestHandleWSFrames(t *testing.T) {
	ts, hub := newTestServer(t)

	c, _, err := dial(t, ts, "u1")
	require.NoError(t, err)
	defer c.Close()

	require.Eventually(t, func() bool { return hub.Subscribers("c1") == 1 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, c.WriteJSON(map[string]any{"type": "ping"}))
	assert.Equal(t, TypePong, readFrame(t, c)["type"])

	require.NoError(t, c.WriteJSON(map[string]any{
		"type":    "message",
		"payload": map[string]string{"content": "salam", "client_id": "tmp-1"},
	}))
	broadcast := readFrame(t, c)
	assert.Equal(t, TypeMessage, broadcast["type"])
	ack := readFrame(t, c)
	assert.Equal(t, TypeMessageAck, ack["type"])
	assert.Equal(t, "tmp-1", ack["payload"].(map[string]any)["client_id"])

	require.NoError(t, c.WriteJSON(map[string]any{
		"type":    "message",
		"payload": map[string]string{"content": "  ", "client_id": "tmp-2"},
	}))
	errFrame := readFrame(t, c)
	assert.Equal(t, TypeError, errFrame["type"])
	assert.Equal(t, "empty message", errFrame["payload"].(map[string]any)["error"])

	require.NoError(t, c.WriteJSON(map[string]any{"type": "read"}))
	read := readFrame(t, c)
	assert.Equal(t, TypeRead, read["type"])
	assert.Equal(t, "u1", read["payload"].(map[string]any)["user_id"])

	require.NoError(t, c.WriteMessage(websocket.TextMessage, []byte("{nope")))
	assert.Equal(t, TypeError, readFrame(t, c)["type"])

	c.Close()
	require.Eventually(t, func() bool { return hub.Subscribers("c1") == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestStalledClientDoesNotBlockPublishers(t *testing.T) {
	ts, hub := newTestServerWith(t, Options{WriteTimeout: 2 * time.Second, SendBuffer: 4})

	stalled, _, err := dial(t, ts, "u1")
	require.NoError(t, err)
	defer stalled.Close()
	require.Eventually(t, func() bool { return hub.Subscribers("c1") == 1 }, 2*time.Second, 10*time.Millisecond)

	body := strings.Repeat("x", 256<<10)
	var worst time.Duration
	for i := 0; i < 40; i++ {
		start := time.Now()
		hub.PublishMessage(context.Background(), domain.Message{ID: "m", ConversationID: "c1", SenderID: "u2", Content: body, Type: domain.MessageText})
		if d := time.Since(start); d > worst {
			worst = d
		}
	}

	assert.Less(t, worst, 500*time.Millisecond, "publish waited on the socket")
	require.Eventually(t, func() bool { return hub.Subscribers("c1") == 0 }, 5*time.Second, 10*time.Millisecond,
		"client that cannot keep up is disconnected")
}

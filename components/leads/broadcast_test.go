package leads

import (
	"bufio"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBroadcastHookDeliversToSubscribers(t *testing.T) {
	hook := NewBroadcastHook()
	first, cancelFirst := hook.Subscribe()
	second, cancelSecond := hook.Subscribe()
	defer cancelSecond()

	require.NoError(t, hook.StoreUpdated(context.Background(), StoreEvent{Store: "leads", Reason: ReasonLoaded}))
	assert.Equal(t, "leads", (<-first).Store)
	assert.Equal(t, ReasonLoaded, (<-second).Reason)

	cancelFirst()
	_, open := <-first
	assert.False(t, open)
	cancelFirst()
}

func TestBroadcastHookDropsForSlowSubscribers(t *testing.T) {
	hook := NewBroadcastHook()
	events, cancel := hook.Subscribe()
	defer cancel()
	for i := 0; i < 40; i++ {
		require.NoError(t, hook.StoreUpdated(context.Background(), StoreEvent{Store: "leads"}))
	}
	assert.Len(t, events, 16)
}

type failingHook struct{}

func (failingHook) StoreUpdated(context.Context, StoreEvent) error { return errors.New("down") }

func TestChangeHooksJoinErrors(t *testing.T) {
	rec := &recordingHook{}
	err := ChangeHooks{rec, nil, failingHook{}}.StoreUpdated(context.Background(), StoreEvent{Reason: ReasonFailed})
	require.Error(t, err)
	assert.Equal(t, []string{ReasonFailed}, rec.Reasons())
}

func TestBroadcastHookWebSocket(t *testing.T) {
	hook := NewBroadcastHook()
	server := httptest.NewServer(http.HandlerFunc(hook.ServeWebSocket))
	defer server.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(server.URL, "http"), nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool {
		hook.mu.RLock()
		defer hook.mu.RUnlock()
		return len(hook.subs) == 1
	}, time.Second, 10*time.Millisecond)

	require.NoError(t, hook.StoreUpdated(context.Background(), StoreEvent{Store: "users", Reason: ReasonSubmitted}))
	var event StoreEvent
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	require.NoError(t, conn.ReadJSON(&event))
	assert.Equal(t, "users", event.Store)
	assert.Equal(t, ReasonSubmitted, event.Reason)
}

func TestBroadcastHookSSE(t *testing.T) {
	hook := NewBroadcastHook()
	server := httptest.NewServer(http.HandlerFunc(hook.ServeSSE))
	defer server.Close()

	resp, err := http.Get(server.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	require.Eventually(t, func() bool {
		hook.mu.RLock()
		defer hook.mu.RUnlock()
		return len(hook.subs) == 1
	}, time.Second, 10*time.Millisecond)
	require.NoError(t, hook.StoreUpdated(context.Background(), StoreEvent{Store: "leads", Reason: ReasonLoaded}))

	reader := bufio.NewReader(resp.Body)
	line, err := reader.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "event: loaded\n", line)
	line, err = reader.ReadString('\n')
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(line, `data: {"store":"leads","reason":"loaded"`), line)
}

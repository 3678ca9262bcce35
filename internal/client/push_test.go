package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/codepair/codepair/internal/editor"
	"github.com/codepair/codepair/internal/pushsync"
	"github.com/codepair/codepair/internal/stats"
	"github.com/codepair/codepair/internal/testutil"
	"github.com/codepair/codepair/internal/types"
)

func newPushTestServer(t *testing.T) string {
	t.Helper()

	su := &stats.MockStatsUpdater{}
	su.On("Incr", mock.AnythingOfType("string")).Maybe()
	su.On("Decr", mock.AnythingOfType("string")).Maybe()

	srv := pushsync.NewServer(testutil.TestLogger(t), su, nil)
	go srv.Run()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	})

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", srv.ServeWs)

	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)

	return "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
}

func newPushTestClient(t *testing.T, url, roomId, username string) (*PushClient, *editor.Buffer) {
	t.Helper()

	buf := editor.NewBuffer()
	c := NewPushClient(testutil.TestLogger(t), url, roomId, username, buf, types.DefaultLanguage)
	t.Cleanup(c.Close)

	return c, buf
}

func TestPushClientJoinRoster(t *testing.T) {
	url := newPushTestServer(t)

	a, _ := newPushTestClient(t, url, "room-1", "alice")

	rosterCh := make(chan []types.Participant, 1)
	a.OnUsersChanged(func(users []types.Participant) {
		rosterCh <- users
	})

	joinedCh := make(chan string, 1)
	a.OnUserJoined(func(userId, username, color string) {
		joinedCh <- color
	})

	require.NoError(t, a.Connect(context.Background()))

	select {
	case users := <-rosterCh:
		require.Len(t, users, 1)
		assert.Equal(t, "alice", users[0].Username)
		assert.Equal(t, types.UserColors[0], users[0].Color)
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for roster")
	}

	b, _ := newPushTestClient(t, url, "room-1", "bob")
	require.NoError(t, b.Connect(context.Background()))

	select {
	case color := <-joinedCh:
		assert.Equal(t, types.UserColors[1], color)
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for user-joined")
	}
}

func TestPushClientCodeConvergence(t *testing.T) {
	url := newPushTestServer(t)

	a, bufA := newPushTestClient(t, url, "room-1", "alice")
	b, bufB := newPushTestClient(t, url, "room-1", "bob")

	require.NoError(t, a.Connect(context.Background()))
	require.NoError(t, b.Connect(context.Background()))

	bufA.SetText("print(1)")

	require.Eventually(t, func() bool {
		return bufB.Text() == "print(1)"
	}, 3*time.Second, 10*time.Millisecond)

	// the sender is excluded from its own broadcast
	assert.Equal(t, "print(1)", bufA.Text())
}

func TestPushClientLanguageConvergence(t *testing.T) {
	url := newPushTestServer(t)

	a, _ := newPushTestClient(t, url, "room-1", "alice")
	b, _ := newPushTestClient(t, url, "room-1", "bob")

	require.NoError(t, a.Connect(context.Background()))
	require.NoError(t, b.Connect(context.Background()))

	b.Engine().LocalLanguageChange("python")

	require.Eventually(t, func() bool {
		return a.Engine().Language() == "python"
	}, 3*time.Second, 10*time.Millisecond)
}

func TestPushClientLateJoinerSeesRoomState(t *testing.T) {
	url := newPushTestServer(t)

	a, bufA := newPushTestClient(t, url, "room-1", "alice")
	require.NoError(t, a.Connect(context.Background()))

	bufA.SetText("let x = 1")
	a.Engine().LocalLanguageChange("typescript")

	// bob either receives the state at join or the in-flight broadcasts
	// right after; both converge
	b, bufB := newPushTestClient(t, url, "room-1", "bob")
	require.NoError(t, b.Connect(context.Background()))

	require.Eventually(t, func() bool {
		return bufB.Text() == "let x = 1" && b.Engine().Language() == "typescript"
	}, 3*time.Second, 10*time.Millisecond)
}

func TestPushClientCursorBroadcast(t *testing.T) {
	url := newPushTestServer(t)

	a, _ := newPushTestClient(t, url, "room-1", "alice")
	b, _ := newPushTestClient(t, url, "room-1", "bob")

	cursorCh := make(chan types.CursorPosition, 1)
	b.OnCursorUpdate(func(userId string, pos *types.CursorPosition, sel *types.CursorSelection) {
		if pos != nil {
			cursorCh <- *pos
		}
	})

	var joined atomic.Bool
	b.OnUsersChanged(func([]types.Participant) {
		joined.Store(true)
	})

	require.NoError(t, a.Connect(context.Background()))
	require.NoError(t, b.Connect(context.Background()))

	// bob must be in the room before the cursor event fires
	require.Eventually(t, func() bool {
		return joined.Load()
	}, 3*time.Second, 10*time.Millisecond)

	require.NoError(t, a.SendCursor(&types.CursorPosition{Line: 3, Column: 7}, nil))

	select {
	case pos := <-cursorCh:
		assert.Equal(t, 3, pos.Line)
		assert.Equal(t, 7, pos.Column)
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for cursor update")
	}
}

func TestPushClientDisconnectNotifiesPeers(t *testing.T) {
	url := newPushTestServer(t)

	a, _ := newPushTestClient(t, url, "room-1", "alice")
	b, _ := newPushTestClient(t, url, "room-1", "bob")

	leftCh := make(chan string, 1)
	b.OnUserLeft(func(userId, username string) {
		leftCh <- username
	})

	// track bob's view of the room membership so alice only leaves
	// after both sessions are in
	var peers atomic.Int32
	b.OnUsersChanged(func(users []types.Participant) {
		peers.Store(int32(len(users)))
	})
	b.OnUserJoined(func(string, string, string) {
		peers.Add(1)
	})

	require.NoError(t, a.Connect(context.Background()))
	require.NoError(t, b.Connect(context.Background()))

	require.Eventually(t, func() bool {
		return peers.Load() >= 2
	}, 3*time.Second, 10*time.Millisecond)

	a.Close()

	select {
	case username := <-leftCh:
		assert.Equal(t, "alice", username)
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for user-left")
	}
}

func TestPushClientSendAfterClose(t *testing.T) {
	url := newPushTestServer(t)

	a, _ := newPushTestClient(t, url, "room-1", "alice")
	require.NoError(t, a.Connect(context.Background()))

	a.Close()

	assert.Error(t, a.SendCode(context.Background(), "x"))
	assert.False(t, a.Connected())
}

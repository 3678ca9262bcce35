package client

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codepair/codepair/internal/config"
	"github.com/codepair/codepair/internal/editor"
	"github.com/codepair/codepair/internal/pullsync"
	"github.com/codepair/codepair/internal/store"
	"github.com/codepair/codepair/internal/testutil"
	"github.com/codepair/codepair/internal/types"
)

func newPullTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	cfg, err := config.NewConfig(":0", "test-dsn", nil)
	require.NoError(t, err)

	app := pullsync.NewApp(testutil.TestLogger(t), store.NewMemoryRoomStore(), cfg)
	ts := httptest.NewServer(app.Handler())
	t.Cleanup(ts.Close)

	return ts
}

func newPullTestClient(t *testing.T, ts *httptest.Server, roomId, userId, username string) (*PullClient, *editor.Buffer) {
	t.Helper()

	buf := editor.NewBuffer()
	c := NewPullClient(testutil.TestLogger(t), ts.URL, roomId, userId, username, buf, types.DefaultLanguage)
	c.interval = 25 * time.Millisecond
	t.Cleanup(c.Leave)

	return c, buf
}

func TestPullClientJoinColors(t *testing.T) {
	ts := newPullTestServer(t)

	a, _ := newPullTestClient(t, ts, "room-1", "user-a", "alice")
	b, _ := newPullTestClient(t, ts, "room-1", "user-b", "bob")

	colorA, err := a.Join(context.Background())
	require.NoError(t, err)
	assert.Equal(t, types.UserColors[0], colorA)
	assert.True(t, a.Connected())

	colorB, err := b.Join(context.Background())
	require.NoError(t, err)
	assert.Equal(t, types.UserColors[1], colorB)
}

func TestPullClientCodeConvergence(t *testing.T) {
	ts := newPullTestServer(t)

	a, bufA := newPullTestClient(t, ts, "room-1", "user-a", "alice")
	b, bufB := newPullTestClient(t, ts, "room-1", "user-b", "bob")

	_, err := a.Join(context.Background())
	require.NoError(t, err)
	_, err = b.Join(context.Background())
	require.NoError(t, err)

	bufA.SetText("print(1)")

	require.Eventually(t, func() bool {
		return bufB.Text() == "print(1)"
	}, 3*time.Second, 10*time.Millisecond)

	// the writer's own buffer is untouched by its echo
	assert.Equal(t, "print(1)", bufA.Text())
}

func TestPullClientLanguageConvergence(t *testing.T) {
	ts := newPullTestServer(t)

	a, _ := newPullTestClient(t, ts, "room-1", "user-a", "alice")
	b, _ := newPullTestClient(t, ts, "room-1", "user-b", "bob")

	_, err := a.Join(context.Background())
	require.NoError(t, err)
	_, err = b.Join(context.Background())
	require.NoError(t, err)

	b.Engine().LocalLanguageChange("python")

	require.Eventually(t, func() bool {
		return a.Engine().Language() == "python"
	}, 3*time.Second, 10*time.Millisecond)
}

func TestPullClientRosterObservation(t *testing.T) {
	ts := newPullTestServer(t)

	a, _ := newPullTestClient(t, ts, "room-1", "user-a", "alice")

	rosterCh := make(chan []types.Participant, 16)
	a.OnUsersChanged(func(users []types.Participant) {
		select {
		case rosterCh <- users:
		default:
		}
	})

	_, err := a.Join(context.Background())
	require.NoError(t, err)

	b, _ := newPullTestClient(t, ts, "room-1", "user-b", "bob")
	_, err = b.Join(context.Background())
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		select {
		case users := <-rosterCh:
			return len(users) == 2
		default:
			return false
		}
	}, 3*time.Second, 10*time.Millisecond)

	b.Leave()

	require.Eventually(t, func() bool {
		select {
		case users := <-rosterCh:
			return len(users) == 1 && users[0].UserId == "user-a"
		default:
			return false
		}
	}, 3*time.Second, 10*time.Millisecond)
}

func TestPullClientSendBeforeJoin(t *testing.T) {
	ts := newPullTestServer(t)

	a, _ := newPullTestClient(t, ts, "room-1", "user-a", "alice")

	err := a.SendCode(context.Background(), "x")
	assert.Error(t, err)

	err = a.SendLanguage(context.Background(), "go")
	assert.Error(t, err)
}

func TestPullClientLeaveIsIdempotent(t *testing.T) {
	ts := newPullTestServer(t)

	a, _ := newPullTestClient(t, ts, "room-1", "user-a", "alice")

	_, err := a.Join(context.Background())
	require.NoError(t, err)

	a.Leave()
	a.Leave()

	assert.False(t, a.Connected())
}

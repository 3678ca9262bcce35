package pullsync

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/codepair/codepair/internal/config"
	"github.com/codepair/codepair/internal/store"
	"github.com/codepair/codepair/internal/testutil"
	"github.com/codepair/codepair/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestApp(t *testing.T, s store.RoomStore) *App {
	cfg, err := config.NewConfig("localhost:8000", "test-dsn", nil)
	require.NoError(t, err, "failed to create test config")
	return NewApp(testutil.TestLogger(t), s, cfg)
}

func doJson(t *testing.T, app *App, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body), "failed to encode request body")
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	app.Handler().ServeHTTP(rr, req)
	return rr
}

func TestJoinRoom(t *testing.T) {
	app := newTestApp(t, store.NewMemoryRoomStore())

	rr := doJson(t, app, http.MethodPost, "/api/rooms/join", JoinRequest{
		RoomId:   "abc123",
		UserId:   "user-a",
		Username: "alice",
	})
	require.Equal(t, http.StatusOK, rr.Code, "expected join to succeed")

	var resp JoinResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.True(t, resp.Success, "expected success flag")
	assert.Equal(t, "#FF6B6B", resp.Color, "expected first palette color")

	// joining again returns the same color and does not duplicate
	rr = doJson(t, app, http.MethodPost, "/api/rooms/join", JoinRequest{
		RoomId:   "abc123",
		UserId:   "user-a",
		Username: "alice",
	})
	require.Equal(t, http.StatusOK, rr.Code)
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.Equal(t, "#FF6B6B", resp.Color, "expected same color on rejoin")
}

func TestJoinRoom_BadRequest(t *testing.T) {
	app := newTestApp(t, store.NewMemoryRoomStore())

	tcases := []struct {
		name string
		req  JoinRequest
	}{
		{name: "missing room id", req: JoinRequest{UserId: "user-a"}},
		{name: "missing user id", req: JoinRequest{RoomId: "abc123"}},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			rr := doJson(t, app, http.MethodPost, "/api/rooms/join", tc.req)
			assert.Equal(t, http.StatusBadRequest, rr.Code, "expected bad request")
		})
	}
}

func TestJoinRoom_StoreFailure(t *testing.T) {
	db := &store.MockRoomStore{}
	defer db.AssertExpectations(t)
	db.On("EnsureRoom", "abc123").Return(store.Room{}, errors.New("connection refused"))

	app := newTestApp(t, db)
	rr := doJson(t, app, http.MethodPost, "/api/rooms/join", JoinRequest{
		RoomId: "abc123",
		UserId: "user-a",
	})
	assert.Equal(t, http.StatusInternalServerError, rr.Code,
		"expected store failure to surface as a retriable server error")
}

func TestRoomState(t *testing.T) {
	s := store.NewMemoryRoomStore()
	app := newTestApp(t, s)

	rr := doJson(t, app, http.MethodGet, "/api/rooms/state?room_id=abc123", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code, "expected 404 for an absent room")

	doJson(t, app, http.MethodPost, "/api/rooms/join", JoinRequest{RoomId: "abc123", UserId: "user-a", Username: "alice"})

	rr = doJson(t, app, http.MethodGet, "/api/rooms/state?room_id=abc123", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	var snap types.Snapshot
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&snap))
	assert.Equal(t, "", snap.Code, "expected new room to have empty code")
	assert.Equal(t, "javascript", snap.Language, "expected default language")
	assert.False(t, snap.LastUpdated.IsZero(), "expected last updated to be set")
}

func TestUpdateCode(t *testing.T) {
	app := newTestApp(t, store.NewMemoryRoomStore())

	doJson(t, app, http.MethodPost, "/api/rooms/join", JoinRequest{RoomId: "abc123", UserId: "user-a", Username: "alice"})

	rr := doJson(t, app, http.MethodPost, "/api/rooms/code", UpdateCodeRequest{
		RoomId: "abc123",
		UserId: "user-a",
		Code:   "print(1)",
	})
	require.Equal(t, http.StatusNoContent, rr.Code, "expected code update to succeed")

	rr = doJson(t, app, http.MethodGet, "/api/rooms/state?room_id=abc123", nil)
	var snap types.Snapshot
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&snap))
	assert.Equal(t, "print(1)", snap.Code, "expected updated code in the next observation")
}

func TestUpdateCode_AbsentRoomIsNoOp(t *testing.T) {
	app := newTestApp(t, store.NewMemoryRoomStore())

	rr := doJson(t, app, http.MethodPost, "/api/rooms/code", UpdateCodeRequest{
		RoomId: "missing",
		Code:   "x",
	})
	assert.Equal(t, http.StatusNoContent, rr.Code, "expected update on an absent room to be a silent no-op")
}

func TestUpdateCode_LastWriteWins(t *testing.T) {
	app := newTestApp(t, store.NewMemoryRoomStore())

	doJson(t, app, http.MethodPost, "/api/rooms/join", JoinRequest{RoomId: "abc123", UserId: "user-a", Username: "alice"})

	// two updates race within the same instant: Y lands second, X is
	// silently lost, not merged
	doJson(t, app, http.MethodPost, "/api/rooms/code", UpdateCodeRequest{RoomId: "abc123", UserId: "user-a", Code: "X"})
	doJson(t, app, http.MethodPost, "/api/rooms/code", UpdateCodeRequest{RoomId: "abc123", UserId: "user-b", Code: "Y"})

	rr := doJson(t, app, http.MethodGet, "/api/rooms/state?room_id=abc123", nil)
	var snap types.Snapshot
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&snap))
	assert.Equal(t, "Y", snap.Code, "expected the last write to win")
}

func TestUpdateLanguage(t *testing.T) {
	app := newTestApp(t, store.NewMemoryRoomStore())

	doJson(t, app, http.MethodPost, "/api/rooms/join", JoinRequest{RoomId: "abc123", UserId: "user-a", Username: "alice"})

	rr := doJson(t, app, http.MethodPost, "/api/rooms/language", UpdateLanguageRequest{
		RoomId:   "abc123",
		UserId:   "user-a",
		Language: "python",
	})
	require.Equal(t, http.StatusNoContent, rr.Code)

	rr = doJson(t, app, http.MethodGet, "/api/rooms/state?room_id=abc123", nil)
	var snap types.Snapshot
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&snap))
	assert.Equal(t, "python", snap.Language, "expected updated language in the next observation")
}

func TestLeaveRoomAndRoster(t *testing.T) {
	app := newTestApp(t, store.NewMemoryRoomStore())

	doJson(t, app, http.MethodPost, "/api/rooms/join", JoinRequest{RoomId: "abc123", UserId: "user-a", Username: "alice"})
	doJson(t, app, http.MethodPost, "/api/rooms/join", JoinRequest{RoomId: "abc123", UserId: "user-b", Username: "bob"})

	rr := doJson(t, app, http.MethodGet, "/api/rooms/users?room_id=abc123", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	var users []types.Participant
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&users))
	require.Len(t, users, 2, "expected both participants online")

	rr = doJson(t, app, http.MethodPost, "/api/rooms/leave", LeaveRequest{RoomId: "abc123", UserId: "user-a"})
	require.Equal(t, http.StatusNoContent, rr.Code, "expected leave to succeed")

	rr = doJson(t, app, http.MethodGet, "/api/rooms/users?room_id=abc123", nil)
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&users))
	require.Len(t, users, 1, "expected roster to exclude the departed participant")
	assert.Equal(t, "user-b", users[0].UserId)

	// leave is idempotent
	rr = doJson(t, app, http.MethodPost, "/api/rooms/leave", LeaveRequest{RoomId: "abc123", UserId: "user-a"})
	assert.Equal(t, http.StatusNoContent, rr.Code, "expected repeated leave to be a no-op")
}

func TestInvalidJsonBody(t *testing.T) {
	app := newTestApp(t, store.NewMemoryRoomStore())

	req := httptest.NewRequest(http.MethodPost, "/api/rooms/join", bytes.NewBufferString("{"))
	rr := httptest.NewRecorder()
	app.Handler().ServeHTTP(rr, req)
	assert.Equal(t, http.StatusBadRequest, rr.Code, "expected bad request for malformed JSON")
}

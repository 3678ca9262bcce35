package pullsync

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/codepair/codepair/internal/store"
	"github.com/codepair/codepair/internal/types"
)

type JoinRequest struct {
	RoomId   string `json:"room_id"`
	UserId   string `json:"user_id"`
	Username string `json:"username"`
}

type JoinResponse struct {
	Success bool   `json:"success"`
	Color   string `json:"color"`
}

type LeaveRequest struct {
	RoomId string `json:"room_id"`
	UserId string `json:"user_id"`
}

type UpdateCodeRequest struct {
	RoomId string `json:"room_id"`
	UserId string `json:"user_id"`
	Code   string `json:"code"`
}

type UpdateLanguageRequest struct {
	RoomId   string `json:"room_id"`
	UserId   string `json:"user_id"`
	Language string `json:"language"`
}

func (a *App) writeJson(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if v == nil {
		return
	}

	if err := json.NewEncoder(w).Encode(v); err != nil {
		a.log.Printf("json encode: %v", err)
	}
}

func (a *App) joinRoom(w http.ResponseWriter, r *http.Request) {
	var req JoinRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errResp := NewBadRequestError()
		a.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if req.RoomId == "" || req.UserId == "" {
		errResp := NewBadRequestError()
		a.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	color, err := a.presence.Join(req.RoomId, req.UserId, req.Username)
	if err != nil {
		a.log.Printf("join room: %v", err)
		errResp := NewInternalServerError(err)
		a.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	a.writeJson(w, http.StatusOK, JoinResponse{
		Success: true,
		Color:   color,
	})
}

func (a *App) leaveRoom(w http.ResponseWriter, r *http.Request) {
	var req LeaveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errResp := NewBadRequestError()
		a.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if req.RoomId == "" || req.UserId == "" {
		errResp := NewBadRequestError()
		a.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if err := a.presence.Leave(req.RoomId, req.UserId); err != nil {
		a.log.Printf("leave room: %v", err)
		errResp := NewInternalServerError(err)
		a.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (a *App) updateCode(w http.ResponseWriter, r *http.Request) {
	var req UpdateCodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errResp := NewBadRequestError()
		a.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if req.RoomId == "" {
		errResp := NewBadRequestError()
		a.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	// no versioning or conditional write: the last update to land wins
	if err := a.store.UpdateCode(req.RoomId, req.Code); err != nil {
		a.log.Printf("update code: %v", err)
		errResp := NewInternalServerError(err)
		a.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (a *App) updateLanguage(w http.ResponseWriter, r *http.Request) {
	var req UpdateLanguageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errResp := NewBadRequestError()
		a.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if req.RoomId == "" {
		errResp := NewBadRequestError()
		a.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if err := a.store.UpdateLanguage(req.RoomId, req.Language); err != nil {
		a.log.Printf("update language: %v", err)
		errResp := NewInternalServerError(err)
		a.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (a *App) roomState(w http.ResponseWriter, r *http.Request) {
	roomId := r.URL.Query().Get("room_id")
	if roomId == "" {
		errResp := NewBadRequestError()
		a.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	room, err := a.store.GetRoom(roomId)
	if err != nil {
		var errResp *ApiError
		if errors.Is(err, store.ErrNotFound) {
			errResp = NewNotFoundError()
		} else {
			a.log.Printf("get room: %v", err)
			errResp = NewInternalServerError(err)
		}
		a.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	a.writeJson(w, http.StatusOK, types.Snapshot{
		Code:        room.Code,
		Language:    room.Language,
		LastUpdated: room.LastUpdated,
	})
}

func (a *App) roomUsers(w http.ResponseWriter, r *http.Request) {
	roomId := r.URL.Query().Get("room_id")
	if roomId == "" {
		errResp := NewBadRequestError()
		a.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	users, err := a.presence.ListOnline(roomId)
	if err != nil {
		a.log.Printf("list online: %v", err)
		errResp := NewInternalServerError(err)
		a.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	a.writeJson(w, http.StatusOK, users)
}

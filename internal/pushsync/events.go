package pushsync

import (
	"github.com/codepair/codepair/internal/types"
)

type EventType string

// Client-originated events.
const (
	EventJoinRoom       EventType = "join-room"
	EventCodeChange     EventType = "code-change"
	EventLanguageChange EventType = "language-change"
	EventCursorChange   EventType = "cursor-change"
)

// Server-originated events.
const (
	EventRoomUsers      EventType = "room-users"
	EventRoomState      EventType = "room-state"
	EventUserJoined     EventType = "user-joined"
	EventUserLeft       EventType = "user-left"
	EventCodeUpdate     EventType = "code-update"
	EventLanguageUpdate EventType = "language-update"
	EventCursorUpdate   EventType = "cursor-update"
)

// ClientEvent is the inbound wire message. Which fields are meaningful
// depends on Type; unused fields are omitted on the wire.
type ClientEvent struct {
	Type      EventType              `json:"type"`
	RoomId    string                 `json:"room_id,omitempty"`
	Username  string                 `json:"username,omitempty"`
	Code      string                 `json:"code,omitempty"`
	Language  string                 `json:"language,omitempty"`
	Position  *types.CursorPosition  `json:"position,omitempty"`
	Selection *types.CursorSelection `json:"selection,omitempty"`
}

// ServerEvent is the outbound wire message.
type ServerEvent struct {
	Type      EventType              `json:"type"`
	UserId    string                 `json:"user_id,omitempty"`
	Username  string                 `json:"username,omitempty"`
	Color     string                 `json:"color,omitempty"`
	Code      string                 `json:"code,omitempty"`
	Language  string                 `json:"language,omitempty"`
	Users     []types.Participant    `json:"users,omitempty"`
	Position  *types.CursorPosition  `json:"position,omitempty"`
	Selection *types.CursorSelection `json:"selection,omitempty"`
}

func RoomUsersEvent(users []types.Participant) *ServerEvent {
	return &ServerEvent{
		Type:  EventRoomUsers,
		Users: users,
	}
}

func RoomStateEvent(code, language string) *ServerEvent {
	return &ServerEvent{
		Type:     EventRoomState,
		Code:     code,
		Language: language,
	}
}

func UserJoinedEvent(userId, username, color string) *ServerEvent {
	return &ServerEvent{
		Type:     EventUserJoined,
		UserId:   userId,
		Username: username,
		Color:    color,
	}
}

func UserLeftEvent(userId, username string) *ServerEvent {
	return &ServerEvent{
		Type:     EventUserLeft,
		UserId:   userId,
		Username: username,
	}
}

func CodeUpdateEvent(userId, code string) *ServerEvent {
	return &ServerEvent{
		Type:   EventCodeUpdate,
		UserId: userId,
		Code:   code,
	}
}

func LanguageUpdateEvent(userId, language string) *ServerEvent {
	return &ServerEvent{
		Type:     EventLanguageUpdate,
		UserId:   userId,
		Language: language,
	}
}

func CursorUpdateEvent(userId string, pos *types.CursorPosition, sel *types.CursorSelection) *ServerEvent {
	return &ServerEvent{
		Type:      EventCursorUpdate,
		UserId:    userId,
		Position:  pos,
		Selection: sel,
	}
}

package store

import (
	"errors"
)

// ErrNotFound is returned when a room or participant does not exist.
var ErrNotFound = errors.New("not found")

// RoomStore is the single source of truth for rooms and participants
// in the pull variant. Writes are last-write-wins; there is no
// versioning or conditional update, a lost intermediate write is
// overwritten by the next observation.
type RoomStore interface {
	EnsureRoom(roomId string) (Room, error)
	GetRoom(roomId string) (Room, error)
	UpdateCode(roomId, code string) error
	UpdateLanguage(roomId, language string) error
	GetParticipant(roomId, userId string) (Participant, error)
	ListParticipants(roomId string) ([]Participant, error)
	ListOnlineParticipants(roomId string) ([]Participant, error)
	CreateParticipant(params CreateParticipantParams) (Participant, error)
	MarkOnline(roomId, userId, username string) error
	MarkOffline(roomId, userId string) error
}

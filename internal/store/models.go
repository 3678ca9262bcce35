package store

import "time"

type Room struct {
	Id          int
	RoomId      string
	Code        string
	Language    string
	CreatedAt   time.Time
	LastUpdated time.Time
}

type Participant struct {
	Id       int
	RoomId   string
	UserId   string
	Username string
	Color    string
	IsOnline bool
	LastSeen time.Time
}

type CreateParticipantParams struct {
	RoomId   string
	UserId   string
	Username string
	Color    string
}

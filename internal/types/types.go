package types

import (
	"time"
)

// Participant is a user's membership record within one room.
type Participant struct {
	UserId   string    `json:"user_id"`
	Username string    `json:"username"`
	Color    string    `json:"color"`
	IsOnline bool      `json:"is_online,omitempty"`
	LastSeen time.Time `json:"last_seen,omitempty"`
}

// Snapshot is a full {code, language} state observation. It replaces,
// never diffs against, prior state.
type Snapshot struct {
	Code        string    `json:"code"`
	Language    string    `json:"language"`
	LastUpdated time.Time `json:"last_updated,omitempty"`
}

// CursorPosition is a cursor location inside the editor buffer.
type CursorPosition struct {
	Line   int `json:"line"`
	Column int `json:"column"`
}

// CursorSelection is a selected range, possibly empty.
type CursorSelection struct {
	Start CursorPosition `json:"start"`
	End   CursorPosition `json:"end"`
}

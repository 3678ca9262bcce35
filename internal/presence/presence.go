package presence

import (
	"fmt"
	"log"

	"github.com/codepair/codepair/internal/store"
	"github.com/codepair/codepair/internal/types"
)

// Manager owns the join/leave lifecycle for the durable variant. Rooms
// are created lazily on first join and participants are never deleted,
// only flipped offline, so colors stay stable across reconnects.
type Manager struct {
	log   *log.Logger
	store store.RoomStore
}

func NewManager(logger *log.Logger, s store.RoomStore) *Manager {
	return &Manager{
		log:   logger,
		store: s,
	}
}

// Join ensures the room exists and marks the user online, returning
// the user's display color. A rejoining user keeps the color assigned
// at first join; a new user gets palette[roster size mod palette length],
// counted over all participants, online or not.
func (m *Manager) Join(roomId, userId, username string) (string, error) {
	if _, err := m.store.EnsureRoom(roomId); err != nil {
		return "", fmt.Errorf("ensure room: %w", err)
	}

	participants, err := m.store.ListParticipants(roomId)
	if err != nil {
		return "", fmt.Errorf("list participants: %w", err)
	}

	for _, p := range participants {
		if p.UserId == userId {
			if err := m.store.MarkOnline(roomId, userId, username); err != nil {
				return "", fmt.Errorf("mark online: %w", err)
			}

			return p.Color, nil
		}
	}

	color := types.ColorAt(len(participants))
	if _, err := m.store.CreateParticipant(store.CreateParticipantParams{
		RoomId:   roomId,
		UserId:   userId,
		Username: username,
		Color:    color,
	}); err != nil {
		return "", fmt.Errorf("create participant: %w", err)
	}

	m.log.Printf("user %q joined room %q with color %s", userId, roomId, color)
	return color, nil
}

// Leave marks the user offline. Unknown participants are a silent
// no-op so the protocol stays idempotent.
func (m *Manager) Leave(roomId, userId string) error {
	if err := m.store.MarkOffline(roomId, userId); err != nil {
		return fmt.Errorf("mark offline: %w", err)
	}

	return nil
}

// ListOnline returns the room's currently online participants.
func (m *Manager) ListOnline(roomId string) ([]types.Participant, error) {
	participants, err := m.store.ListOnlineParticipants(roomId)
	if err != nil {
		return nil, fmt.Errorf("list online participants: %w", err)
	}

	users := make([]types.Participant, len(participants))
	for i, p := range participants {
		users[i] = types.Participant{
			UserId:   p.UserId,
			Username: p.Username,
			Color:    p.Color,
			IsOnline: p.IsOnline,
			LastSeen: p.LastSeen,
		}
	}

	return users, nil
}

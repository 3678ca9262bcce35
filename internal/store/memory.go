package store

import (
	"sync"
	"time"

	"github.com/codepair/codepair/internal/types"
)

// MemoryRoomStore is a mutex-guarded in-memory RoomStore. Records are
// copied on the way in and out so callers never observe a torn write.
type MemoryRoomStore struct {
	mu           sync.RWMutex
	nextId       int
	rooms        map[string]*Room
	participants map[string][]*Participant
}

func NewMemoryRoomStore() *MemoryRoomStore {
	return &MemoryRoomStore{
		rooms:        make(map[string]*Room),
		participants: make(map[string][]*Participant),
	}
}

func (m *MemoryRoomStore) EnsureRoom(roomId string) (Room, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if room, ok := m.rooms[roomId]; ok {
		return *room, nil
	}

	m.nextId++
	now := time.Now().UTC()
	room := &Room{
		Id:          m.nextId,
		RoomId:      roomId,
		Code:        "",
		Language:    types.DefaultLanguage,
		CreatedAt:   now,
		LastUpdated: now,
	}
	m.rooms[roomId] = room

	return *room, nil
}

func (m *MemoryRoomStore) GetRoom(roomId string) (Room, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	room, ok := m.rooms[roomId]
	if !ok {
		return Room{}, ErrNotFound
	}

	return *room, nil
}

func (m *MemoryRoomStore) UpdateCode(roomId, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	// silent no-op when the room is absent
	if room, ok := m.rooms[roomId]; ok {
		room.Code = code
		room.LastUpdated = time.Now().UTC()
	}

	return nil
}

func (m *MemoryRoomStore) UpdateLanguage(roomId, language string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if room, ok := m.rooms[roomId]; ok {
		room.Language = language
		room.LastUpdated = time.Now().UTC()
	}

	return nil
}

func (m *MemoryRoomStore) GetParticipant(roomId, userId string) (Participant, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, p := range m.participants[roomId] {
		if p.UserId == userId {
			return *p, nil
		}
	}

	return Participant{}, ErrNotFound
}

func (m *MemoryRoomStore) ListParticipants(roomId string) ([]Participant, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	participants := make([]Participant, 0, len(m.participants[roomId]))
	for _, p := range m.participants[roomId] {
		participants = append(participants, *p)
	}

	return participants, nil
}

func (m *MemoryRoomStore) ListOnlineParticipants(roomId string) ([]Participant, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	participants := make([]Participant, 0)
	for _, p := range m.participants[roomId] {
		if p.IsOnline {
			participants = append(participants, *p)
		}
	}

	return participants, nil
}

func (m *MemoryRoomStore) CreateParticipant(params CreateParticipantParams) (Participant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextId++
	p := &Participant{
		Id:       m.nextId,
		RoomId:   params.RoomId,
		UserId:   params.UserId,
		Username: params.Username,
		Color:    params.Color,
		IsOnline: true,
		LastSeen: time.Now().UTC(),
	}
	m.participants[params.RoomId] = append(m.participants[params.RoomId], p)

	return *p, nil
}

func (m *MemoryRoomStore) MarkOnline(roomId, userId, username string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, p := range m.participants[roomId] {
		if p.UserId == userId {
			p.IsOnline = true
			p.Username = username
			p.LastSeen = time.Now().UTC()
			return nil
		}
	}

	return ErrNotFound
}

func (m *MemoryRoomStore) MarkOffline(roomId, userId string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	// silent no-op for unknown participants
	for _, p := range m.participants[roomId] {
		if p.UserId == userId {
			p.IsOnline = false
			p.LastSeen = time.Now().UTC()
			return nil
		}
	}

	return nil
}

package store

import (
	"github.com/stretchr/testify/mock"
)

type MockRoomStore struct {
	mock.Mock
}

func (m *MockRoomStore) EnsureRoom(roomId string) (Room, error) {
	args := m.Called(roomId)
	return args.Get(0).(Room), args.Error(1)
}
func (m *MockRoomStore) GetRoom(roomId string) (Room, error) {
	args := m.Called(roomId)
	return args.Get(0).(Room), args.Error(1)
}
func (m *MockRoomStore) UpdateCode(roomId, code string) error {
	args := m.Called(roomId, code)
	return args.Error(0)
}
func (m *MockRoomStore) UpdateLanguage(roomId, language string) error {
	args := m.Called(roomId, language)
	return args.Error(0)
}
func (m *MockRoomStore) GetParticipant(roomId, userId string) (Participant, error) {
	args := m.Called(roomId, userId)
	return args.Get(0).(Participant), args.Error(1)
}
func (m *MockRoomStore) ListParticipants(roomId string) ([]Participant, error) {
	args := m.Called(roomId)
	return args.Get(0).([]Participant), args.Error(1)
}
func (m *MockRoomStore) ListOnlineParticipants(roomId string) ([]Participant, error) {
	args := m.Called(roomId)
	return args.Get(0).([]Participant), args.Error(1)
}
func (m *MockRoomStore) CreateParticipant(params CreateParticipantParams) (Participant, error) {
	args := m.Called(params)
	return args.Get(0).(Participant), args.Error(1)
}
func (m *MockRoomStore) MarkOnline(roomId, userId, username string) error {
	args := m.Called(roomId, userId, username)
	return args.Error(0)
}
func (m *MockRoomStore) MarkOffline(roomId, userId string) error {
	args := m.Called(roomId, userId)
	return args.Error(0)
}

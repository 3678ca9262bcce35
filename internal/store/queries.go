package store

import (
	"database/sql"
	"errors"
	"time"

	"github.com/codepair/codepair/internal/types"
)

func (db *PgRoomStore) EnsureRoom(roomId string) (Room, error) {
	_, err := db.conn.Exec(
		"INSERT INTO rooms (room_id, code, language, created_at, last_updated) "+
			"VALUES ($1, '', $2, $3, $3) ON CONFLICT (room_id) DO NOTHING",
		roomId,
		types.DefaultLanguage,
		time.Now().UTC(),
	)
	if err != nil {
		return Room{}, err
	}

	return db.GetRoom(roomId)
}

func (db *PgRoomStore) GetRoom(roomId string) (Room, error) {
	row := db.conn.QueryRow(
		"SELECT id, room_id, code, language, created_at, last_updated FROM rooms "+
			"WHERE room_id = $1 LIMIT 1",
		roomId,
	)

	var room Room
	err := row.Scan(
		&room.Id,
		&room.RoomId,
		&room.Code,
		&room.Language,
		&room.CreatedAt,
		&room.LastUpdated,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return Room{}, ErrNotFound
	}

	return room, err
}

func (db *PgRoomStore) UpdateCode(roomId, code string) error {
	// zero rows affected means the room is absent, which is a no-op
	_, err := db.conn.Exec(
		"UPDATE rooms SET code = $2, last_updated = $3 WHERE room_id = $1",
		roomId,
		code,
		time.Now().UTC(),
	)

	return err
}

func (db *PgRoomStore) UpdateLanguage(roomId, language string) error {
	_, err := db.conn.Exec(
		"UPDATE rooms SET language = $2, last_updated = $3 WHERE room_id = $1",
		roomId,
		language,
		time.Now().UTC(),
	)

	return err
}

func (db *PgRoomStore) GetParticipant(roomId, userId string) (Participant, error) {
	row := db.conn.QueryRow(
		"SELECT id, room_id, user_id, username, color, is_online, last_seen FROM room_users "+
			"WHERE room_id = $1 AND user_id = $2 LIMIT 1",
		roomId,
		userId,
	)

	var p Participant
	err := row.Scan(
		&p.Id,
		&p.RoomId,
		&p.UserId,
		&p.Username,
		&p.Color,
		&p.IsOnline,
		&p.LastSeen,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return Participant{}, ErrNotFound
	}

	return p, err
}

func (db *PgRoomStore) ListParticipants(roomId string) ([]Participant, error) {
	return db.listParticipants(
		"SELECT id, room_id, user_id, username, color, is_online, last_seen FROM room_users "+
			"WHERE room_id = $1 ORDER BY id",
		roomId,
	)
}

func (db *PgRoomStore) ListOnlineParticipants(roomId string) ([]Participant, error) {
	return db.listParticipants(
		"SELECT id, room_id, user_id, username, color, is_online, last_seen FROM room_users "+
			"WHERE room_id = $1 AND is_online ORDER BY id",
		roomId,
	)
}

func (db *PgRoomStore) listParticipants(query, roomId string) ([]Participant, error) {
	rows, err := db.conn.Query(query, roomId)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var participants = make([]Participant, 0)
	for rows.Next() {
		var p Participant
		if err = rows.Scan(&p.Id, &p.RoomId, &p.UserId, &p.Username, &p.Color, &p.IsOnline, &p.LastSeen); err != nil {
			break
		}

		participants = append(participants, p)
	}

	return participants, err
}

func (db *PgRoomStore) CreateParticipant(params CreateParticipantParams) (Participant, error) {
	res := db.conn.QueryRow(
		"INSERT INTO room_users (room_id, user_id, username, color, is_online, last_seen) "+
			"VALUES ($1, $2, $3, $4, TRUE, $5) RETURNING id, room_id, user_id, username, color, is_online, last_seen",
		params.RoomId,
		params.UserId,
		params.Username,
		params.Color,
		time.Now().UTC(),
	)

	var p Participant
	err := res.Scan(
		&p.Id,
		&p.RoomId,
		&p.UserId,
		&p.Username,
		&p.Color,
		&p.IsOnline,
		&p.LastSeen,
	)

	return p, err
}

func (db *PgRoomStore) MarkOnline(roomId, userId, username string) error {
	res, err := db.conn.Exec(
		"UPDATE room_users SET is_online = TRUE, username = $3, last_seen = $4 "+
			"WHERE room_id = $1 AND user_id = $2",
		roomId,
		userId,
		username,
		time.Now().UTC(),
	)
	if err != nil {
		return err
	}

	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}

	return nil
}

func (db *PgRoomStore) MarkOffline(roomId, userId string) error {
	// unknown participants are a silent no-op to keep leave idempotent
	_, err := db.conn.Exec(
		"UPDATE room_users SET is_online = FALSE, last_seen = $3 "+
			"WHERE room_id = $1 AND user_id = $2",
		roomId,
		userId,
		time.Now().UTC(),
	)

	return err
}

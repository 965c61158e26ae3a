package store

import (
	"database/sql"
	"errors"
	"time"
)

// UpsertRoom inserts a room or advances its latest-message summary. An older
// timestamp never overwrites a newer preview.
func (db *DB) UpsertRoom(r *Room) error {
	now := time.Now().UnixMilli()
	_, err := db.Exec(`
		INSERT INTO rooms (slug, name, last_message_at, last_message_preview, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(slug) DO UPDATE SET
			name = CASE WHEN excluded.name != '' THEN excluded.name ELSE rooms.name END,
			last_message_preview = CASE WHEN excluded.last_message_at >= rooms.last_message_at THEN excluded.last_message_preview ELSE rooms.last_message_preview END,
			last_message_at = MAX(rooms.last_message_at, excluded.last_message_at),
			updated_at = excluded.updated_at`,
		r.Slug, r.Name, r.LastMessageAt, r.LastMessagePreview, now)
	return err
}

// ListRooms returns rooms sorted by last message timestamp descending.
func (db *DB) ListRooms(limit, offset int) ([]Room, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.Query(`
		SELECT slug, COALESCE(NULLIF(name,''), slug), last_message_at, last_message_preview
		FROM rooms
		ORDER BY last_message_at DESC
		LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var rooms []Room
	for rows.Next() {
		var r Room
		if err := rows.Scan(&r.Slug, &r.Name, &r.LastMessageAt, &r.LastMessagePreview); err != nil {
			return nil, err
		}
		rooms = append(rooms, r)
	}
	return rooms, rows.Err()
}

// GetRoom returns a single room by slug.
func (db *DB) GetRoom(slug string) (*Room, error) {
	var r Room
	err := db.QueryRow(`
		SELECT slug, COALESCE(NULLIF(name,''), slug), last_message_at, last_message_preview
		FROM rooms WHERE slug = ?`, slug).
		Scan(&r.Slug, &r.Name, &r.LastMessageAt, &r.LastMessagePreview)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// MessageCount returns the total number of messages.
func (db *DB) MessageCount() (int64, error) {
	var count int64
	err := db.QueryRow(`SELECT COUNT(*) FROM messages`).Scan(&count)
	return count, err
}

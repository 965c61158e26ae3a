package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// InsertMessage stores m, assigns its ID and CreatedAt, and bumps the room
// summary in the same transaction.
func (db *DB) InsertMessage(m *Message) error {
	return db.InsertMessages([]*Message{m})
}

// InsertMessages stores a batch in one transaction. IDs are assigned in
// slice order.
func (db *DB) InsertMessages(msgs []*Message) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, m := range msgs {
		if err := insertMessage(tx, m); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func insertMessage(tx *sql.Tx, m *Message) error {
	if m.CreatedAt == 0 {
		m.CreatedAt = time.Now().UnixMilli()
	}
	if m.MessageType == "" {
		m.MessageType = "text"
	}

	var replyTo sql.NullInt64
	if m.ReplyTo != nil {
		replyTo = sql.NullInt64{Int64: *m.ReplyTo, Valid: true}
	}
	res, err := tx.Exec(`
		INSERT INTO messages (room, sender_id, sender_name, sender_avatar, body, message_type, media_url, reply_to, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.Room, m.SenderID, m.SenderName, m.SenderAvatar, m.Body, m.MessageType, m.MediaURL, replyTo, m.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	if m.ID, err = res.LastInsertId(); err != nil {
		return fmt.Errorf("message id: %w", err)
	}

	preview := m.Body
	if preview == "" {
		preview = "[" + m.MessageType + "]"
	}
	if _, err := tx.Exec(`
		INSERT INTO rooms (slug, last_message_at, last_message_preview, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(slug) DO UPDATE SET
			last_message_at = MAX(rooms.last_message_at, excluded.last_message_at),
			last_message_preview = CASE WHEN excluded.last_message_at >= rooms.last_message_at THEN excluded.last_message_preview ELSE rooms.last_message_preview END,
			updated_at = excluded.updated_at`,
		m.Room, m.CreatedAt, truncate(preview, 100), time.Now().UnixMilli()); err != nil {
		return fmt.Errorf("bump room: %w", err)
	}
	return nil
}

// ListMessages returns up to limit messages of room older than beforeID
// (0 for the newest), newest first, using keyset pagination on the ID.
// hasMore reports whether older messages remain.
func (db *DB) ListMessages(room string, beforeID int64, limit int) (msgs []Message, hasMore bool, err error) {
	if limit <= 0 {
		limit = 50
	}
	q := `
		SELECT id, room, sender_id, sender_name, sender_avatar, body, message_type, media_url, reply_to, created_at
		FROM messages
		WHERE room = ?`
	args := []any{room}
	if beforeID > 0 {
		q += " AND id < ?"
		args = append(args, beforeID)
	}
	q += " ORDER BY id DESC LIMIT ?"
	args = append(args, limit+1)

	rows, err := db.Query(q, args...)
	if err != nil {
		return nil, false, err
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, false, err
		}
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, false, err
	}
	if len(msgs) > limit {
		return msgs[:limit], true, nil
	}
	return msgs, false, nil
}

// GetMessage returns a single message by ID.
func (db *DB) GetMessage(id int64) (*Message, error) {
	row := db.QueryRow(`
		SELECT id, room, sender_id, sender_name, sender_avatar, body, message_type, media_url, reply_to, created_at
		FROM messages WHERE id = ?`, id)
	m, err := scanMessage(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanMessage(s scanner) (Message, error) {
	var m Message
	var replyTo sql.NullInt64
	if err := s.Scan(&m.ID, &m.Room, &m.SenderID, &m.SenderName, &m.SenderAvatar, &m.Body,
		&m.MessageType, &m.MediaURL, &replyTo, &m.CreatedAt); err != nil {
		return Message{}, err
	}
	if replyTo.Valid {
		v := replyTo.Int64
		m.ReplyTo = &v
	}
	return m, nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

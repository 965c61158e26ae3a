package store

import (
	"database/sql"
	"errors"
	"time"
)

// SetTranslation caches the translated body of a message for one language.
func (db *DB) SetTranslation(messageID int64, language, body string) error {
	_, err := db.Exec(`
		INSERT INTO message_translations (message_id, language, body, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(message_id, language) DO UPDATE SET
			body = excluded.body,
			updated_at = excluded.updated_at`,
		messageID, language, body, time.Now().UnixMilli())
	return err
}

// GetTranslation returns the cached translation, if any.
func (db *DB) GetTranslation(messageID int64, language string) (string, bool, error) {
	var body string
	err := db.QueryRow(`SELECT body FROM message_translations WHERE message_id = ? AND language = ?`,
		messageID, language).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return body, true, nil
}

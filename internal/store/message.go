package store

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

const selectCols = `key, conversation_id, msg_id, sender_id, receiver_id, body, attachment, is_offline, created_at, inserted_at`

// Put inserts a message for a conversation and returns its storage key.
// Re-inserting a message with an id already present for that conversation
// overwrites the existing record in place (remote refetch semantics) and
// returns the original key.
func (db *DB) Put(conversationID string, m *Message) (string, error) {
	now := time.Now().UnixMilli()
	key := uuid.NewString()
	// The conflict branch keeps the original key; RETURNING reports the
	// stored one either way, in the same statement.
	var storedKey string
	err := db.QueryRow(`
		INSERT INTO messages (key, conversation_id, msg_id, sender_id, receiver_id, body, attachment, is_offline, created_at, inserted_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(conversation_id, msg_id) DO UPDATE SET
			sender_id = excluded.sender_id,
			receiver_id = excluded.receiver_id,
			body = excluded.body,
			attachment = excluded.attachment,
			is_offline = excluded.is_offline,
			created_at = excluded.created_at
		RETURNING key`,
		key, conversationID, m.MsgID, m.SenderID, m.ReceiverID, m.Body, m.Attachment, m.IsOffline, m.CreatedAt, now).Scan(&storedKey)
	if err != nil {
		return "", storageErr("put message", err)
	}
	return storedKey, nil
}

// ListByConversation returns all records for the conversation sorted by
// created_at ascending; ties break by insertion order.
func (db *DB) ListByConversation(conversationID string) ([]Message, error) {
	rows, err := db.Query(`
		SELECT `+selectCols+`
		FROM messages
		WHERE conversation_id = ?
		ORDER BY created_at ASC, inserted_at ASC, rowid ASC`, conversationID)
	if err != nil {
		return nil, storageErr("list by conversation", err)
	}
	return scanMessages(rows)
}

// ListAll returns all records across all conversations, for cache-warm and diagnostics.
func (db *DB) ListAll() ([]Message, error) {
	rows, err := db.Query(`
		SELECT ` + selectCols + `
		FROM messages
		ORDER BY created_at ASC, inserted_at ASC, rowid ASC`)
	if err != nil {
		return nil, storageErr("list all", err)
	}
	return scanMessages(rows)
}

// ListOffline returns all records still pending offline delivery, oldest first.
func (db *DB) ListOffline() ([]Message, error) {
	rows, err := db.Query(`
		SELECT ` + selectCols + `
		FROM messages
		WHERE is_offline = 1
		ORDER BY created_at ASC, inserted_at ASC, rowid ASC`)
	if err != nil {
		return nil, storageErr("list offline", err)
	}
	return scanMessages(rows)
}

// DeleteByMessageID removes the single matching record. No-op if absent.
func (db *DB) DeleteByMessageID(conversationID, msgID string) error {
	_, err := db.Exec(`DELETE FROM messages WHERE conversation_id = ? AND msg_id = ?`,
		conversationID, msgID)
	if err != nil {
		return storageErr("delete message", err)
	}
	return nil
}

// Clear removes all records for one conversation.
func (db *DB) Clear(conversationID string) error {
	_, err := db.Exec(`DELETE FROM messages WHERE conversation_id = ?`, conversationID)
	if err != nil {
		return storageErr("clear conversation", err)
	}
	return nil
}

// ClearAll removes all records globally.
func (db *DB) ClearAll() error {
	_, err := db.Exec(`DELETE FROM messages`)
	if err != nil {
		return storageErr("clear all", err)
	}
	return nil
}

// Stats returns cache totals and per-conversation counts.
func (db *DB) Stats() (*Stats, error) {
	rows, err := db.Query(`
		SELECT conversation_id, COUNT(*)
		FROM messages
		GROUP BY conversation_id`)
	if err != nil {
		return nil, storageErr("stats", err)
	}
	defer func() { _ = rows.Close() }()

	stats := &Stats{PerConversation: make(map[string]int)}
	for rows.Next() {
		var conv string
		var count int
		if err := rows.Scan(&conv, &count); err != nil {
			return nil, storageErr("stats", err)
		}
		stats.PerConversation[conv] = count
		stats.TotalMessages += count
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("stats", err)
	}
	stats.UniqueConversations = len(stats.PerConversation)
	return stats, nil
}

func scanMessages(rows *sql.Rows) ([]Message, error) {
	defer func() { _ = rows.Close() }()

	var msgs []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.Key, &m.ConversationID, &m.MsgID, &m.SenderID, &m.ReceiverID,
			&m.Body, &m.Attachment, &m.IsOffline, &m.CreatedAt, &m.InsertedAt); err != nil {
			return nil, storageErr("scan message", err)
		}
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("scan messages", err)
	}
	return msgs, nil
}

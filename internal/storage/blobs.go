// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"crypto/rand"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"strconv"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// ErrBlobNotFound is returned when a blob ID has no stored payload.
var ErrBlobNotFound = errors.New("blob not found")

// =============================================================================
// BLOB STORE
// =============================================================================

// BlobStore persists binary payloads (synthesized audio) in SQLite, keyed
// by generated identifiers of the form "audio-<timestamp>-<random>".
type BlobStore struct {
	db *sql.DB
}

// OpenBlobStore opens (or creates) the blob database at dbPath.
func OpenBlobStore(dbPath string) (*BlobStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open blob database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping blob database: %w", err)
	}

	schema := `
	CREATE TABLE IF NOT EXISTS audios (
		id              TEXT PRIMARY KEY,
		data            BLOB NOT NULL,
		conversation_id INTEGER NOT NULL DEFAULT 0,
		created_at      DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_audios_conversation ON audios(conversation_id);
	`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize blob schema: %w", err)
	}

	return &BlobStore{db: db}, nil
}

// Put stores data under id, associated with a conversation.
func (b *BlobStore) Put(id string, data []byte, conversationID int) error {
	_, err := b.db.Exec(
		`INSERT OR REPLACE INTO audios (id, data, conversation_id, created_at) VALUES (?, ?, ?, ?)`,
		id, data, conversationID, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to store blob %q: %w", id, err)
	}
	return nil
}

// Get returns the payload stored under id, or ErrBlobNotFound.
func (b *BlobStore) Get(id string) ([]byte, error) {
	var data []byte
	err := b.db.QueryRow(`SELECT data FROM audios WHERE id = ?`, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrBlobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load blob %q: %w", id, err)
	}
	return data, nil
}

// List returns all stored blob IDs, newest first.
func (b *BlobStore) List() ([]string, error) {
	rows, err := b.db.Query(`SELECT id FROM audios ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list blobs: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Clear removes all stored blobs.
func (b *BlobStore) Clear() error {
	_, err := b.db.Exec(`DELETE FROM audios`)
	return err
}

// Close releases the database handle.
func (b *BlobStore) Close() error {
	return b.db.Close()
}

// =============================================================================
// ID GENERATION
// =============================================================================

// NewAudioID generates a blob identifier: audio-<millis>-<random>.
// The format is part of the persisted layout and stays stable.
func NewAudioID() string {
	now := time.Now()
	var n uint64
	var buf [4]byte
	if _, err := rand.Read(buf[:]); err != nil {
		// Uniqueness matters more than unpredictability here.
		n = uint64(now.UnixNano()) % 10000
	} else {
		n = uint64(binary.BigEndian.Uint32(buf[:])) % 10000
	}
	return "audio-" + strconv.FormatInt(now.UnixMilli(), 10) + "-" + strconv.FormatUint(n, 10)
}

// internal/database/room_store.go
package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/parlorgames/trivia/internal/models"
	"github.com/parlorgames/trivia/internal/room"
)

// PgRoomStore persists rooms as JSONB blobs with a version column for
// optimistic concurrency. Implements room.Store.
//
// Schema:
//
//	CREATE TABLE rooms (
//	    code         TEXT PRIMARY KEY,
//	    host_user_id UUID NOT NULL,
//	    state        JSONB NOT NULL,
//	    is_active    BOOLEAN NOT NULL DEFAULT TRUE,
//	    version      BIGINT NOT NULL DEFAULT 1,
//	    created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
//	    updated_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
//	);
type PgRoomStore struct{}

func NewRoomStore() *PgRoomStore {
	return &PgRoomStore{}
}

func (s *PgRoomStore) Create(ctx context.Context, r *models.Room) error {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to marshal room %s: %w", r.Code, err)
	}
	tag, err := DB.Exec(ctx, `
		INSERT INTO rooms (code, host_user_id, state, is_active, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, 1, NOW(), NOW())
		ON CONFLICT (code) DO NOTHING
	`, r.Code, r.HostUserID, data, r.IsActive)
	if err != nil {
		return fmt.Errorf("insert room %s: %w", r.Code, err)
	}
	if tag.RowsAffected() == 0 {
		return room.ErrRoomExists
	}
	r.Version = 1
	return nil
}

func (s *PgRoomStore) Load(ctx context.Context, code string) (*models.Room, error) {
	var data []byte
	var version int64
	err := DB.QueryRow(ctx, `
		SELECT state, version FROM rooms WHERE code = $1 AND is_active = TRUE
	`, code).Scan(&data, &version)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, room.ErrRoomNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load room %s: %w", code, err)
	}
	var r models.Room
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("unmarshal room %s: %w", code, err)
	}
	r.Version = version
	return &r, nil
}

func (s *PgRoomStore) Save(ctx context.Context, r *models.Room) error {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to marshal room %s: %w", r.Code, err)
	}
	tag, err := DB.Exec(ctx, `
		UPDATE rooms
		SET state = $1, is_active = $2, version = version + 1, updated_at = NOW()
		WHERE code = $3 AND version = $4
	`, data, r.IsActive, r.Code, r.Version)
	if err != nil {
		return fmt.Errorf("save room %s: %w", r.Code, err)
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := DB.QueryRow(ctx, `SELECT TRUE FROM rooms WHERE code = $1`, r.Code).Scan(&exists); errors.Is(err, pgx.ErrNoRows) {
			return room.ErrRoomNotFound
		}
		return room.ErrVersionConflict
	}
	r.Version++
	return nil
}

func (s *PgRoomStore) ListActive(ctx context.Context) ([]*models.Room, error) {
	rows, err := DB.Query(ctx, `
		SELECT state, version FROM rooms WHERE is_active = TRUE ORDER BY created_at
	`)
	if err != nil {
		return nil, fmt.Errorf("list active rooms: %w", err)
	}
	defer rows.Close()

	var out []*models.Room
	for rows.Next() {
		var data []byte
		var version int64
		if err := rows.Scan(&data, &version); err != nil {
			return nil, err
		}
		var r models.Room
		if err := json.Unmarshal(data, &r); err != nil {
			return nil, fmt.Errorf("unmarshal room: %w", err)
		}
		r.Version = version
		out = append(out, &r)
	}
	return out, rows.Err()
}

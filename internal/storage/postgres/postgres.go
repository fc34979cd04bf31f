// Package postgres implements ports.Persistence against PostgreSQL via
// pgx, with schema management through embedded goose migrations.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/udisondev/wildstar-worldd/internal/ports"
	"github.com/udisondev/wildstar-worldd/internal/storage/postgres/migrations"
)

var gooseOnce sync.Once

// RunMigrations applies all pending goose migrations against dsn.
func RunMigrations(ctx context.Context, dsn string) error {
	sqlDB, err := sql.Open("pgx", dsn)
	if err != nil {
		return fmt.Errorf("opening sql connection for migrations: %w", err)
	}
	defer sqlDB.Close()

	var dialectErr error
	gooseOnce.Do(func() {
		goose.SetBaseFS(migrations.FS)
		dialectErr = goose.SetDialect("postgres")
	})
	if dialectErr != nil {
		return fmt.Errorf("setting goose dialect: %w", dialectErr)
	}
	if err := goose.UpContext(ctx, sqlDB, "."); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	return nil
}

// Store wraps a pgx pool implementing ports.Persistence.
type Store struct {
	pool *pgxpool.Pool
}

// New connects to PostgreSQL and verifies reachability with a ping.
func New(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}
	return &Store{pool: pool}, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

func (s *Store) LoadCharacter(ctx context.Context, id uint64) (ports.CharacterSnapshot, error) {
	var snap ports.CharacterSnapshot
	err := s.pool.QueryRow(ctx, `
		SELECT character_id, account_id, name, level, experience,
		       position_x, position_y, position_z, zone_map_id
		FROM characters WHERE character_id = $1
	`, id).Scan(
		&snap.CharacterID, &snap.AccountID, &snap.Name, &snap.Level, &snap.Experience,
		&snap.PositionX, &snap.PositionY, &snap.PositionZ, &snap.ZoneMapID,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return ports.CharacterSnapshot{}, fmt.Errorf("postgres: character %d not found", id)
	}
	if err != nil {
		return ports.CharacterSnapshot{}, fmt.Errorf("loading character %d: %w", id, err)
	}
	return snap, nil
}

func (s *Store) SaveCharacter(ctx context.Context, snap ports.CharacterSnapshot) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE characters
		SET level = $2, experience = $3,
		    position_x = $4, position_y = $5, position_z = $6, zone_map_id = $7
		WHERE character_id = $1
	`, snap.CharacterID, snap.Level, snap.Experience,
		snap.PositionX, snap.PositionY, snap.PositionZ, snap.ZoneMapID)
	if err != nil {
		return fmt.Errorf("saving character %d: %w", snap.CharacterID, err)
	}
	return nil
}

func (s *Store) ListCharacters(ctx context.Context, accountID uint32) ([]ports.CharacterSnapshot, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT character_id, account_id, name, level, experience,
		       position_x, position_y, position_z, zone_map_id
		FROM characters WHERE account_id = $1
		ORDER BY created_at ASC
	`, accountID)
	if err != nil {
		return nil, fmt.Errorf("listing characters for account %d: %w", accountID, err)
	}
	defer rows.Close()

	out := make([]ports.CharacterSnapshot, 0, 8)
	for rows.Next() {
		var snap ports.CharacterSnapshot
		if err := rows.Scan(
			&snap.CharacterID, &snap.AccountID, &snap.Name, &snap.Level, &snap.Experience,
			&snap.PositionX, &snap.PositionY, &snap.PositionZ, &snap.ZoneMapID,
		); err != nil {
			return nil, fmt.Errorf("scanning character row: %w", err)
		}
		out = append(out, snap)
	}
	return out, rows.Err()
}

func (s *Store) RecordSession(ctx context.Context, accountID uint32, sessionKey [16]byte, expiresAt time.Time) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO sessions (account_id, session_key, expires_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (account_id) DO UPDATE SET session_key = $2, expires_at = $3
	`, accountID, sessionKey[:], expiresAt)
	if err != nil {
		return fmt.Errorf("recording session for account %d: %w", accountID, err)
	}
	return nil
}

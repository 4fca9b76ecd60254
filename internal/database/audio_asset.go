package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dhruv465/Project-Call-sub007/internal/database/models"
)

// audioAssetRepo implements AudioAssetRepository.
type audioAssetRepo struct {
	db *DB
}

// NewAudioAssetRepository creates a new AudioAssetRepository.
func NewAudioAssetRepository(db *DB) AudioAssetRepository {
	return &audioAssetRepo{db: db}
}

// Get returns the asset for a content hash, or nil if none exists.
func (r *audioAssetRepo) Get(ctx context.Context, hash string) (*models.AudioAsset, error) {
	var a models.AudioAsset
	err := r.db.QueryRowContext(ctx,
		`SELECT hash, path, provider, byte_len, created_at, expires_at
		 FROM audio_assets WHERE hash = ?`, hash,
	).Scan(&a.Hash, &a.Path, &a.Provider, &a.ByteLen, &a.CreatedAt, &a.ExpiresAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scanning audio asset: %w", err)
	}
	return &a, nil
}

// Put inserts the asset unless the hash already exists. A hash always maps
// to the same synthesized audio, so the first writer wins.
func (r *audioAssetRepo) Put(ctx context.Context, asset *models.AudioAsset) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO audio_assets (hash, path, provider, byte_len, expires_at)
		 VALUES (?, ?, ?, ?, ?)`,
		asset.Hash, asset.Path, asset.Provider, asset.ByteLen, asset.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("inserting audio asset: %w", err)
	}
	return nil
}

// DeleteExpired removes index rows past their expiry and returns the file
// paths so callers can remove the audio files from disk.
func (r *audioAssetRepo) DeleteExpired(ctx context.Context) ([]string, error) {
	now := time.Now().UTC()
	rows, err := r.db.QueryContext(ctx,
		`SELECT path FROM audio_assets WHERE expires_at < ?`, now)
	if err != nil {
		return nil, fmt.Errorf("querying expired audio assets: %w", err)
	}
	defer rows.Close()

	var paths []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("scanning expired asset path: %w", err)
		}
		paths = append(paths, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating expired asset rows: %w", err)
	}

	if len(paths) == 0 {
		return nil, nil
	}

	if _, err := r.db.ExecContext(ctx,
		`DELETE FROM audio_assets WHERE expires_at < ?`, now); err != nil {
		return nil, fmt.Errorf("deleting expired audio assets: %w", err)
	}

	return paths, nil
}

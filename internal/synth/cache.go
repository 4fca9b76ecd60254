package synth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/dhruv465/Project-Call-sub007/internal/database"
	"github.com/dhruv465/Project-Call-sub007/internal/database/models"
)

// ContentHash derives the content address for synthesized audio from its
// generating inputs. Identical (text, voice, language) always reuse the
// same asset.
func ContentHash(text, voice, language string) string {
	h := sha256.New()
	h.Write([]byte(text))
	h.Write([]byte{0})
	h.Write([]byte(voice))
	h.Write([]byte{0})
	h.Write([]byte(language))
	return hex.EncodeToString(h.Sum(nil))
}

// Cache is the content-addressed audio asset store: an on-disk file per
// asset plus a database index row. Reads are safe under full concurrency;
// writes are append-only per hash (the first writer wins, later identical
// writes are ignored).
type Cache struct {
	assets database.AudioAssetRepository
	dir    string
	ttl    time.Duration

	hits   atomic.Uint64
	misses atomic.Uint64
}

// NewCache creates the asset cache rooted at dir (created if missing).
func NewCache(assets database.AudioAssetRepository, dir string, ttl time.Duration) (*Cache, error) {
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("creating asset directory: %w", err)
	}
	return &Cache{assets: assets, dir: dir, ttl: ttl}, nil
}

// Get returns the cached asset for a hash, or nil on miss. Index rows whose
// backing file has disappeared count as misses.
func (c *Cache) Get(ctx context.Context, hash string) (*models.AudioAsset, error) {
	asset, err := c.assets.Get(ctx, hash)
	if err != nil {
		return nil, err
	}
	if asset == nil {
		c.misses.Add(1)
		return nil, nil
	}
	if _, err := os.Stat(asset.Path); err != nil {
		c.misses.Add(1)
		return nil, nil
	}
	c.hits.Add(1)
	return asset, nil
}

// Put stores synthesized audio under its content hash and indexes it.
// Putting an existing hash is a no-op: assets are immutable once created.
func (c *Cache) Put(ctx context.Context, hash, provider string, audio []byte) (*models.AudioAsset, error) {
	path := filepath.Join(c.dir, hash+".mp3")

	if _, err := os.Stat(path); os.IsNotExist(err) {
		tmp := path + ".tmp"
		if err := os.WriteFile(tmp, audio, 0640); err != nil {
			return nil, fmt.Errorf("writing audio asset: %w", err)
		}
		if err := os.Rename(tmp, path); err != nil {
			return nil, fmt.Errorf("publishing audio asset: %w", err)
		}
	}

	asset := &models.AudioAsset{
		Hash:      hash,
		Path:      path,
		Provider:  provider,
		ByteLen:   int64(len(audio)),
		ExpiresAt: time.Now().UTC().Add(c.ttl),
	}
	if err := c.assets.Put(ctx, asset); err != nil {
		return nil, err
	}
	return asset, nil
}

// Sweep removes expired index rows and their audio files. Intended to run
// periodically from main.
func (c *Cache) Sweep(ctx context.Context) (int, error) {
	paths, err := c.assets.DeleteExpired(ctx)
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, p := range paths {
		if err := os.Remove(p); err == nil || os.IsNotExist(err) {
			removed++
		}
	}
	return removed, nil
}

// Hits returns the cache hit count since process start.
func (c *Cache) Hits() uint64 { return c.hits.Load() }

// Misses returns the cache miss count since process start.
func (c *Cache) Misses() uint64 { return c.misses.Load() }

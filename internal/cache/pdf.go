// Package cache stores rendered PDFs in Redis, keyed by the uploaded tree.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"md2pdf/internal/domain"
	"md2pdf/internal/infra/logging"
	"md2pdf/internal/workspace"
)

const keyPrefix = "md2pdf:pdf:"

// PDFCache is a Redis-backed result cache. Redis failures are logged and
// treated as misses; the cache never fails a conversion.
type PDFCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// New creates a cache. A non-positive ttl defaults to one minute.
func New(rdb *redis.Client, ttl time.Duration) *PDFCache {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &PDFCache{rdb: rdb, ttl: ttl}
}

// Key derives the cache key for req from its upload tree, declared entry
// and metadata. Paths are hashed in sanitized form, so uploads that
// materialize to the same workspace share a key. Item order matters because
// it decides the default entry.
func Key(req domain.Request) string {
	h := sha256.New()
	writeField := func(b []byte) {
		var n [8]byte
		binary.BigEndian.PutUint64(n[:], uint64(len(b)))
		h.Write(n[:])
		h.Write(b)
	}
	for _, item := range req.Items {
		rel, ok := workspace.Sanitize(item.Path)
		if !ok {
			continue
		}
		sum := sha256.Sum256(item.Data)
		writeField([]byte(rel))
		writeField(sum[:])
	}
	entry, _ := workspace.Sanitize(req.Entry)
	writeField([]byte(entry))
	for _, m := range req.Metadata {
		writeField([]byte(m.Key))
		writeField([]byte(m.Value))
	}
	return keyPrefix + hex.EncodeToString(h.Sum(nil))
}

// Entry is a cached conversion.
type Entry struct {
	PDF      []byte
	Filename string
}

// Get returns the cached entry for key, or nil on a miss.
func (c *PDFCache) Get(ctx context.Context, key string) *Entry {
	ctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()

	vals, err := c.rdb.HMGet(ctx, key, "pdf", "filename").Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			logging.Warn("Redis read failed", "error", err)
		}
		return nil
	}
	pdf, ok1 := vals[0].(string)
	name, ok2 := vals[1].(string)
	if !ok1 || !ok2 {
		return nil
	}
	logging.Info("PDF cache hit", "key", key)
	return &Entry{PDF: []byte(pdf), Filename: name}
}

// Set stores e under key with the configured TTL.
func (c *PDFCache) Set(ctx context.Context, key string, e Entry) {
	ctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()

	_, err := c.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.HSet(ctx, key, "pdf", e.PDF, "filename", e.Filename)
		p.Expire(ctx, key, c.ttl)
		return nil
	})
	if err != nil {
		logging.Warn("Redis write failed", "error", err)
	}
}

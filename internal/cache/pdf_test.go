package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"md2pdf/internal/domain"
)

func newTestCache(t *testing.T, ttl time.Duration) (*PDFCache, *miniredis.Miniredis) {
	t.Helper()
	mrs, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mrs.Close)
	rdb := redis.NewClient(&redis.Options{Addr: mrs.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return New(rdb, ttl), mrs
}

func TestKey_DependsOnTreeEntryAndMetadata(t *testing.T) {
	base := domain.Request{
		Items: []domain.UploadItem{{Path: "a.md", Data: []byte("# a")}, {Path: "b.md", Data: []byte("# b")}},
	}
	k := Key(base)
	assert.Equal(t, k, Key(base))
	assert.Contains(t, k, keyPrefix)

	reordered := base
	reordered.Items = []domain.UploadItem{base.Items[1], base.Items[0]}
	assert.NotEqual(t, k, Key(reordered))

	changed := base
	changed.Items = []domain.UploadItem{{Path: "a.md", Data: []byte("# A")}, base.Items[1]}
	assert.NotEqual(t, k, Key(changed))

	withEntry := base
	withEntry.Entry = "b.md"
	assert.NotEqual(t, k, Key(withEntry))

	withMeta := base
	withMeta.Metadata = domain.Metadata{{Key: "title", Value: "x"}}
	assert.NotEqual(t, k, Key(withMeta))

	// field boundaries are length-prefixed
	a := domain.Request{Items: []domain.UploadItem{{Path: "ab", Data: nil}}, Entry: "c"}
	b := domain.Request{Items: []domain.UploadItem{{Path: "a", Data: nil}}, Entry: "bc"}
	assert.NotEqual(t, Key(a), Key(b))
}

func TestKey_UsesSanitizedPaths(t *testing.T) {
	plain := domain.Request{Items: []domain.UploadItem{{Path: "doc/a.md", Data: []byte("# a")}}, Entry: "doc/a.md"}
	odd := domain.Request{
		Items: []domain.UploadItem{
			{Path: "/doc//./a.md", Data: []byte("# a")},
			{Path: "../escape.md", Data: []byte("# x")},
		},
		Entry: `\doc\a.md`,
	}
	assert.Equal(t, Key(plain), Key(odd))

	noEntry := domain.Request{Items: plain.Items}
	badEntry := domain.Request{Items: plain.Items, Entry: "../../etc/passwd"}
	assert.Equal(t, Key(noEntry), Key(badEntry))
}

func TestSetGet_RoundTripAndTTL(t *testing.T) {
	c, mrs := newTestCache(t, 0)
	ctx := context.Background()

	assert.Nil(t, c.Get(ctx, "md2pdf:pdf:missing"))

	c.Set(ctx, "md2pdf:pdf:k", Entry{PDF: []byte("%PDF-1.4"), Filename: "raport.pdf"})
	got := c.Get(ctx, "md2pdf:pdf:k")
	require.NotNil(t, got)
	assert.Equal(t, "%PDF-1.4", string(got.PDF))
	assert.Equal(t, "raport.pdf", got.Filename)

	ttl := mrs.TTL("md2pdf:pdf:k")
	assert.True(t, ttl > 50*time.Second && ttl <= time.Minute, "expected default ttl around 1m, got %v", ttl)
}

func TestGet_RedisDownIsAMiss(t *testing.T) {
	mrs, err := miniredis.Run()
	require.NoError(t, err)
	rdb := redis.NewClient(&redis.Options{Addr: mrs.Addr(), MaxRetries: -1})
	defer rdb.Close()
	c := New(rdb, time.Minute)
	mrs.Close()

	c.Set(context.Background(), "k", Entry{PDF: []byte("x"), Filename: "x.pdf"})
	assert.Nil(t, c.Get(context.Background(), "k"))
}

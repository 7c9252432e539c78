package llm

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCacheKeyDeterministic(t *testing.T) {
	a := CacheKey("analyze_text", "gemini-2.0-flash", "same prompt", nil)
	b := CacheKey("analyze_text", "gemini-2.0-flash", "same prompt", nil)
	assert.Equal(t, a, b)
}

func TestCacheKeyDiscriminates(t *testing.T) {
	base := CacheKey("analyze_text", "gemini-2.0-flash", "prompt", nil)
	assert.NotEqual(t, base, CacheKey("analyze_image", "gemini-2.0-flash", "prompt", nil))
	assert.NotEqual(t, base, CacheKey("analyze_text", "other-model", "prompt", nil))
	assert.NotEqual(t, base, CacheKey("analyze_text", "gemini-2.0-flash", "prompt!", nil))
	assert.NotEqual(t, base, CacheKey("analyze_text", "gemini-2.0-flash", "prompt", []byte{1}))
}

func TestResponseCacheRoundTrip(t *testing.T) {
	cache := NewResponseCache(10)
	ctx := context.Background()

	_, ok := cache.Get(ctx, "missing")
	assert.False(t, ok)

	cache.Set(ctx, "k", &Result{Text: "hello"})
	res, ok := cache.Get(ctx, "k")
	require.True(t, ok)
	assert.Equal(t, "hello", res.Text)
}

func TestResponseCacheEvictsOldest(t *testing.T) {
	cache := NewResponseCache(3)
	ctx := context.Background()
	for i := 0; i < 4; i++ {
		cache.Set(ctx, fmt.Sprintf("k%d", i), &Result{Text: fmt.Sprintf("v%d", i)})
	}

	assert.Equal(t, 3, cache.Len())
	_, ok := cache.Get(ctx, "k0")
	assert.False(t, ok, "oldest entry should be evicted")
	_, ok = cache.Get(ctx, "k3")
	assert.True(t, ok)
}

type recordingMirror struct {
	entries map[string]*Result
	sets    int
	gets    int
}

func newRecordingMirror() *recordingMirror {
	return &recordingMirror{entries: make(map[string]*Result)}
}

func (m *recordingMirror) Get(_ context.Context, key string) (*Result, bool) {
	m.gets++
	res, ok := m.entries[key]
	return res, ok
}

func (m *recordingMirror) Set(_ context.Context, key string, res *Result) {
	m.sets++
	m.entries[key] = res
}

func TestResponseCacheMirrorWriteThrough(t *testing.T) {
	mirror := newRecordingMirror()
	cache := NewResponseCache(10).WithMirror(mirror)
	ctx := context.Background()

	cache.Set(ctx, "k", &Result{Text: "v"})
	assert.Equal(t, 1, mirror.sets)

	// Local hit must not consult the mirror.
	_, ok := cache.Get(ctx, "k")
	assert.True(t, ok)
	assert.Equal(t, 0, mirror.gets)
}

func TestResponseCacheMirrorBackfill(t *testing.T) {
	mirror := newRecordingMirror()
	mirror.entries["warm"] = &Result{Text: "from mirror"}
	cache := NewResponseCache(10).WithMirror(mirror)
	ctx := context.Background()

	res, ok := cache.Get(ctx, "warm")
	require.True(t, ok)
	assert.Equal(t, "from mirror", res.Text)

	// Backfilled locally; the second lookup stays in memory.
	_, ok = cache.Get(ctx, "warm")
	assert.True(t, ok)
	assert.Equal(t, 1, mirror.gets)
}

package embcache

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/lattice-vc/scout/internal/db"
	"github.com/lattice-vc/scout/internal/domain"
)

func TestEmbed_CacheMissCallsInnerAndStores(t *testing.T) {
	inner := &mockEmbedder{result: domain.EmbeddingResult{
		Embedding:   []float32{0.1, 0.2},
		TotalTokens: 7,
	}}
	ce, ms := newTestCachedEmbedder(t, inner)

	var storedKey string
	var storedValue []byte
	var storedTTL time.Duration
	ms.setFn = func(_ context.Context, key string, value []byte, ttl time.Duration) error {
		storedKey = key
		storedValue = value
		storedTTL = ttl
		return nil
	}

	res, err := ce.Embed(context.Background(), "fintech startups")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inner.calls != 1 {
		t.Errorf("inner calls = %d, want 1", inner.calls)
	}
	if len(res.Embedding) != 2 || res.TotalTokens != 7 {
		t.Errorf("unexpected result: %+v", res)
	}
	if !strings.HasPrefix(storedKey, "scout:emb_cache:") {
		t.Errorf("cache key = %q, want prefixed", storedKey)
	}
	if len(storedValue) != 8 {
		t.Errorf("stored %d bytes, want 8 for two float32s", len(storedValue))
	}
	if storedTTL != time.Hour {
		t.Errorf("ttl = %v, want 1h", storedTTL)
	}
}

func TestEmbed_CacheHitSkipsInner(t *testing.T) {
	inner := &mockEmbedder{}
	ce, ms := newTestCachedEmbedder(t, inner)
	ms.getFn = func(_ context.Context, _ string) ([]byte, error) {
		return db.EncodeVector([]float32{0.5, 0.25}), nil
	}

	res, err := ce.Embed(context.Background(), "fintech startups")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inner.calls != 0 {
		t.Error("inner embedder should not be called on a hit")
	}
	if len(res.Embedding) != 2 || res.Embedding[0] != 0.5 || res.Embedding[1] != 0.25 {
		t.Errorf("unexpected vector: %v", res.Embedding)
	}
	if res.TotalTokens != 0 {
		t.Errorf("cache hit should report zero tokens, got %d", res.TotalTokens)
	}
}

func TestEmbed_CorruptCacheFallsThrough(t *testing.T) {
	inner := &mockEmbedder{result: domain.EmbeddingResult{Embedding: []float32{0.1}}}
	ce, ms := newTestCachedEmbedder(t, inner)
	ms.getFn = func(_ context.Context, _ string) ([]byte, error) {
		return []byte("abc"), nil // not a multiple of 4 bytes
	}

	res, err := ce.Embed(context.Background(), "q")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inner.calls != 1 {
		t.Error("corrupt cache entry should fall through to the inner embedder")
	}
	if len(res.Embedding) != 1 {
		t.Errorf("unexpected vector: %v", res.Embedding)
	}
}

func TestEmbed_StoreErrorsAreNonFatal(t *testing.T) {
	inner := &mockEmbedder{result: domain.EmbeddingResult{Embedding: []float32{0.1}}}
	ce, ms := newTestCachedEmbedder(t, inner)
	ms.getFn = func(_ context.Context, _ string) ([]byte, error) {
		return nil, errors.New("connection refused")
	}
	ms.setFn = func(_ context.Context, _ string, _ []byte, _ time.Duration) error {
		return errors.New("connection refused")
	}

	if _, err := ce.Embed(context.Background(), "q"); err != nil {
		t.Fatalf("cache failures must not fail the embed: %v", err)
	}
	if inner.calls != 1 {
		t.Errorf("inner calls = %d, want 1", inner.calls)
	}
}

func TestEmbed_InnerErrorPropagates(t *testing.T) {
	inner := &mockEmbedder{err: domain.ErrEmbeddingProviderError}
	ce, _ := newTestCachedEmbedder(t, inner)

	_, err := ce.Embed(context.Background(), "q")
	if !errors.Is(err, domain.ErrEmbeddingProviderError) {
		t.Fatalf("expected provider error, got %v", err)
	}
}

func TestCacheKey_Deterministic(t *testing.T) {
	if cacheKey("fintech") != cacheKey("fintech") {
		t.Error("identical text must produce identical keys")
	}
	if cacheKey("fintech") == cacheKey("biotech") {
		t.Error("different text must produce different keys")
	}
}

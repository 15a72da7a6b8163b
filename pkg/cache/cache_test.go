package cache

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
)

// testBackend runs the behaviour every Cache must share.
func testBackend(t *testing.T, c Cache) {
	t.Helper()
	ctx := context.Background()
	key := "test:" + uuid.NewString()

	if _, hit, err := c.Get(ctx, key); err != nil || hit {
		t.Fatalf("Get(missing) = hit %v, err %v; want miss", hit, err)
	}

	if err := c.Set(ctx, key, []byte(`{"root":{}}`), time.Hour); err != nil {
		t.Fatalf("Set error: %v", err)
	}
	data, hit, err := c.Get(ctx, key)
	if err != nil || !hit {
		t.Fatalf("Get after Set = hit %v, err %v", hit, err)
	}
	if string(data) != `{"root":{}}` {
		t.Errorf("Get = %q", data)
	}

	// Overwrite
	if err := c.Set(ctx, key, []byte("v2"), 0); err != nil {
		t.Fatalf("Set error: %v", err)
	}
	data, _, _ = c.Get(ctx, key)
	if string(data) != "v2" {
		t.Errorf("Get after overwrite = %q, want v2", data)
	}

	if err := c.Delete(ctx, key); err != nil {
		t.Fatalf("Delete error: %v", err)
	}
	if _, hit, _ := c.Get(ctx, key); hit {
		t.Error("entry still present after Delete")
	}
	if err := c.Delete(ctx, key); err != nil {
		t.Errorf("Delete(missing) error: %v", err)
	}

	// Expiry
	short := key + ":short"
	if err := c.Set(ctx, short, []byte("x"), time.Second); err != nil {
		t.Fatalf("Set error: %v", err)
	}
	time.Sleep(1100 * time.Millisecond)
	if _, hit, _ := c.Get(ctx, short); hit {
		t.Error("expired entry returned")
	}

	if cl, ok := c.(Clearer); ok {
		_ = c.Set(ctx, key, []byte("x"), 0)
		if err := cl.Clear(ctx); err != nil {
			t.Fatalf("Clear error: %v", err)
		}
		if _, hit, _ := c.Get(ctx, key); hit {
			t.Error("entry present after Clear")
		}
	}
}

func TestFileCache(t *testing.T) {
	c, err := NewFileCache(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()
	testBackend(t, c)
}

func TestFileCacheLayout(t *testing.T) {
	dir := t.TempDir()
	c, _ := NewFileCache(dir)
	ctx := context.Background()

	if err := c.Set(ctx, "layout:abc", []byte("data"), 0); err != nil {
		t.Fatal(err)
	}
	h := Hash([]byte("layout:abc"))
	if _, err := os.Stat(filepath.Join(dir, h[:2], h[2:]+".json")); err != nil {
		t.Errorf("entry not sharded by hash prefix: %v", err)
	}

	entries, _ := os.ReadDir(filepath.Join(dir, h[:2]))
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".tmp-") {
			t.Errorf("temp file left behind: %s", e.Name())
		}
	}
}

func TestFileCacheCorruptEntry(t *testing.T) {
	dir := t.TempDir()
	c, _ := NewFileCache(dir)
	ctx := context.Background()

	_ = c.Set(ctx, "k", []byte("v"), 0)
	if err := os.WriteFile(c.path("k"), []byte("{broken"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, hit, err := c.Get(ctx, "k")
	if err != nil || hit {
		t.Errorf("Get(corrupt) = hit %v, err %v; want miss", hit, err)
	}
	if _, err := os.Stat(c.path("k")); !os.IsNotExist(err) {
		t.Error("corrupt entry should be removed")
	}
}

func TestNullCache(t *testing.T) {
	ctx := context.Background()
	c := NewNullCache()
	defer c.Close()

	if err := c.Set(ctx, "key", []byte("value"), time.Hour); err != nil {
		t.Errorf("Set error: %v", err)
	}
	data, hit, err := c.Get(ctx, "key")
	if err != nil || hit || data != nil {
		t.Errorf("Get = %q, %v, %v; want miss", data, hit, err)
	}
	if err := c.Delete(ctx, "key"); err != nil {
		t.Errorf("Delete error: %v", err)
	}
}

func TestRedisCache(t *testing.T) {
	addr := os.Getenv("ELK_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("ELK_TEST_REDIS_ADDR not set")
	}
	c, err := NewRedisCache(context.Background(), RedisConfig{Addr: addr, Prefix: "elk-test:" + uuid.NewString() + ":"})
	if err != nil {
		t.Fatalf("NewRedisCache: %v", err)
	}
	defer c.Close()
	testBackend(t, c)
}

func TestRedisCacheUnreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if _, err := NewRedisCache(ctx, RedisConfig{Addr: "127.0.0.1:1"}); err == nil {
		t.Error("expected ping error for unreachable redis")
	}
}

func TestMongoCache(t *testing.T) {
	uri := os.Getenv("ELK_TEST_MONGO_URI")
	if uri == "" {
		t.Skip("ELK_TEST_MONGO_URI not set")
	}
	c, err := NewMongoCache(context.Background(), MongoConfig{
		URI:        uri,
		Database:   "elk_test",
		Collection: "layouts_" + strings.ReplaceAll(uuid.NewString(), "-", ""),
	})
	if err != nil {
		t.Fatalf("NewMongoCache: %v", err)
	}
	defer c.Close()
	testBackend(t, c)
}

func TestHash(t *testing.T) {
	h1 := Hash([]byte("hello"))
	if h1 != Hash([]byte("hello")) {
		t.Error("Hash should be deterministic")
	}
	if h1 == Hash([]byte("world")) {
		t.Error("Different inputs should produce different hashes")
	}
	if len(h1) != 64 {
		t.Errorf("Hash length should be 64, got %d", len(h1))
	}
}

func TestDefaultKeyer(t *testing.T) {
	k := NewDefaultKeyer()

	tests := []struct {
		name string
		a, b string
	}{
		{
			"server version",
			k.LayoutKey("hash", LayoutKeyOpts{ServerVersion: "0.2.0"}),
			k.LayoutKey("hash", LayoutKeyOpts{ServerVersion: "0.3.0"}),
		},
		{
			"algorithm",
			k.LayoutKey("hash", LayoutKeyOpts{ServerVersion: "0.2.0", Algorithm: "layered"}),
			k.LayoutKey("hash", LayoutKeyOpts{ServerVersion: "0.2.0", Algorithm: "stress"}),
		},
		{
			"graph hash",
			k.LayoutKey("a", LayoutKeyOpts{}),
			k.LayoutKey("b", LayoutKeyOpts{}),
		},
		{
			"artifact format",
			k.ArtifactKey("hash", ArtifactKeyOpts{Format: "svg"}),
			k.ArtifactKey("hash", ArtifactKeyOpts{Format: "json"}),
		},
		{
			"kind",
			k.LayoutKey("hash", LayoutKeyOpts{}),
			k.ArtifactKey("hash", ArtifactKeyOpts{}),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.a == tt.b {
				t.Errorf("keys should differ: %s", tt.a)
			}
		})
	}

	lk := k.LayoutKey("hash", LayoutKeyOpts{ServerVersion: "0.2.0"})
	if !strings.HasPrefix(lk, "layout:") || len(lk) != len("layout:")+64 {
		t.Errorf("LayoutKey format unexpected: %s", lk)
	}
	if lk != k.LayoutKey("hash", LayoutKeyOpts{ServerVersion: "0.2.0"}) {
		t.Error("LayoutKey should be deterministic")
	}
}

func TestScopedKeyer(t *testing.T) {
	inner := NewDefaultKeyer()
	scoped := NewScopedKeyer(inner, "api:")
	opts := LayoutKeyOpts{ServerVersion: "0.2.0"}

	if got, want := scoped.LayoutKey("h", opts), "api:"+inner.LayoutKey("h", opts); got != want {
		t.Errorf("LayoutKey = %s, want %s", got, want)
	}
	aopts := ArtifactKeyOpts{Format: "svg"}
	if got, want := scoped.ArtifactKey("h", aopts), "api:"+inner.ArtifactKey("h", aopts); got != want {
		t.Errorf("ArtifactKey = %s, want %s", got, want)
	}
}

func TestScopedKeyerNilInner(t *testing.T) {
	scoped := NewScopedKeyer(nil, "prefix:")
	key := scoped.LayoutKey("h", LayoutKeyOpts{})
	if key != "prefix:"+NewDefaultKeyer().LayoutKey("h", LayoutKeyOpts{}) {
		t.Errorf("Unexpected key with nil inner: %s", key)
	}
}

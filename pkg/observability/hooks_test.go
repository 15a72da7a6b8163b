package observability

import (
	"context"
	"sync"
	"testing"
	"time"
)

// recorder implements AllHooks and counts layout starts.
type recorder struct {
	NoopLayoutHooks
	NoopServerHooks
	NoopCacheHooks
	NoopHTTPHooks

	mu     sync.Mutex
	starts []string
}

func (r *recorder) OnLayoutStart(_ context.Context, graphID string, _ int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.starts = append(r.starts, graphID)
}

func TestDefaultsAreNoop(t *testing.T) {
	Reset()

	if _, ok := Layout().(NoopLayoutHooks); !ok {
		t.Errorf("Layout() = %T", Layout())
	}
	if _, ok := Server().(NoopServerHooks); !ok {
		t.Errorf("Server() = %T", Server())
	}
	if _, ok := Cache().(NoopCacheHooks); !ok {
		t.Errorf("Cache() = %T", Cache())
	}
	if _, ok := HTTP().(NoopHTTPHooks); !ok {
		t.Errorf("HTTP() = %T", HTTP())
	}

	ctx := context.Background()
	Layout().OnLayoutComplete(ctx, "root", time.Second, false, nil)
	Server().OnServerStderr(ctx, "warning")
	HTTP().OnDownload(ctx, "elk-server-0.2.0.zip", 1024)
}

func TestSetAllAndReset(t *testing.T) {
	t.Cleanup(Reset)
	r := &recorder{}
	SetAll(r)

	for name, got := range map[string]any{"layout": Layout(), "server": Server(), "cache": Cache(), "http": HTTP()} {
		if got != any(r) {
			t.Errorf("%s hooks = %T, want the recorder", name, got)
		}
	}

	Layout().OnLayoutStart(context.Background(), "g1", 3)
	if len(r.starts) != 1 || r.starts[0] != "g1" {
		t.Errorf("starts = %v", r.starts)
	}

	Reset()
	if _, ok := Cache().(NoopCacheHooks); !ok {
		t.Errorf("Cache() after Reset = %T", Cache())
	}
}

func TestSetIndividualCategories(t *testing.T) {
	t.Cleanup(Reset)
	r := &recorder{}
	SetServerHooks(r)

	if Server() != ServerHooks(r) {
		t.Error("SetServerHooks did not register")
	}
	if _, ok := Layout().(NoopLayoutHooks); !ok {
		t.Error("other categories should stay untouched")
	}
}

func TestSetNilIsIgnored(t *testing.T) {
	t.Cleanup(Reset)
	r := &recorder{}
	SetLayoutHooks(r)

	SetLayoutHooks(nil)
	SetAll(nil)

	if Layout() != LayoutHooks(r) {
		t.Error("nil registration replaced the hooks")
	}
}

func TestConcurrentAccess(t *testing.T) {
	t.Cleanup(Reset)
	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if i%2 == 0 {
				SetCacheHooks(&recorder{})
			}
			Cache().OnCacheHit(context.Background(), "layout")
		}()
	}
	wg.Wait()
}

// Package observability lets the library report what it does without
// depending on a metrics or tracing backend.
//
// Library code emits events through the package-level accessors:
//
//	observability.Layout().OnLayoutStart(ctx, graphID, nodeCount)
//	observability.Server().OnServerStart(ctx, pid)
//
// Every category starts out as a no-op. Binaries install a backend once at
// startup; [PrometheusHooks] covers all categories and is what `elk serve`
// registers:
//
//	observability.SetAll(observability.NewPrometheusHooks(reg))
package observability

import (
	"context"
	"sync/atomic"
	"time"
)

// LayoutHooks receives one start and one completion event per layout
// request, cached or not.
type LayoutHooks interface {
	OnLayoutStart(ctx context.Context, graphID string, nodeCount int)
	OnLayoutComplete(ctx context.Context, graphID string, duration time.Duration, cached bool, err error)
}

// ServerHooks follows the lifecycle of elk-server processes.
type ServerHooks interface {
	OnServerStart(ctx context.Context, pid int)
	// err is nil for a clean stop.
	OnServerExit(ctx context.Context, pid int, err error)
	// OnServerStderr sees every stderr line except the benign end-of-input
	// notice the server prints when its stdin closes.
	OnServerStderr(ctx context.Context, line string)
}

// CacheHooks counts cache traffic. keyType is "layout" or "artifact".
type CacheHooks interface {
	OnCacheHit(ctx context.Context, keyType string)
	OnCacheMiss(ctx context.Context, keyType string)
	OnCacheSet(ctx context.Context, keyType string, size int)
}

// HTTPHooks observes release downloads.
type HTTPHooks interface {
	OnRequest(ctx context.Context, method, host, path string)
	OnResponse(ctx context.Context, method, host, path string, statusCode int, duration time.Duration)
	// OnError fires for transport failures, not for error status codes.
	OnError(ctx context.Context, method, host, path string, err error)
	OnDownload(ctx context.Context, name string, bytes int64)
}

// AllHooks is implemented by backends that handle every category.
type AllHooks interface {
	LayoutHooks
	ServerHooks
	CacheHooks
	HTTPHooks
}

type (
	NoopLayoutHooks struct{}
	NoopServerHooks struct{}
	NoopCacheHooks  struct{}
	NoopHTTPHooks   struct{}
)

func (NoopLayoutHooks) OnLayoutStart(context.Context, string, int)                           {}
func (NoopLayoutHooks) OnLayoutComplete(context.Context, string, time.Duration, bool, error) {}

func (NoopServerHooks) OnServerStart(context.Context, int)       {}
func (NoopServerHooks) OnServerExit(context.Context, int, error) {}
func (NoopServerHooks) OnServerStderr(context.Context, string)   {}

func (NoopCacheHooks) OnCacheHit(context.Context, string)      {}
func (NoopCacheHooks) OnCacheMiss(context.Context, string)     {}
func (NoopCacheHooks) OnCacheSet(context.Context, string, int) {}

func (NoopHTTPHooks) OnRequest(context.Context, string, string, string)                      {}
func (NoopHTTPHooks) OnResponse(context.Context, string, string, string, int, time.Duration) {}
func (NoopHTTPHooks) OnError(context.Context, string, string, string, error)                 {}
func (NoopHTTPHooks) OnDownload(context.Context, string, int64)                              {}

// slot holds the registered hooks of one category. Reads are lock-free so
// hot paths such as the per-line stderr hook pay only an atomic load.
type slot[T any] struct {
	p    atomic.Pointer[T]
	noop T
}

func (s *slot[T]) get() T {
	if h := s.p.Load(); h != nil {
		return *h
	}
	return s.noop
}

func (s *slot[T]) set(h T) { s.p.Store(&h) }

func (s *slot[T]) reset() { s.p.Store(nil) }

var (
	layoutSlot = slot[LayoutHooks]{noop: NoopLayoutHooks{}}
	serverSlot = slot[ServerHooks]{noop: NoopServerHooks{}}
	cacheSlot  = slot[CacheHooks]{noop: NoopCacheHooks{}}
	httpSlot   = slot[HTTPHooks]{noop: NoopHTTPHooks{}}
)

// The setters ignore nil so a missing backend never disables the no-ops.

func SetLayoutHooks(h LayoutHooks) {
	if h != nil {
		layoutSlot.set(h)
	}
}

func SetServerHooks(h ServerHooks) {
	if h != nil {
		serverSlot.set(h)
	}
}

func SetCacheHooks(h CacheHooks) {
	if h != nil {
		cacheSlot.set(h)
	}
}

func SetHTTPHooks(h HTTPHooks) {
	if h != nil {
		httpSlot.set(h)
	}
}

// SetAll registers h for every category.
func SetAll(h AllHooks) {
	if h == nil {
		return
	}
	SetLayoutHooks(h)
	SetServerHooks(h)
	SetCacheHooks(h)
	SetHTTPHooks(h)
}

func Layout() LayoutHooks { return layoutSlot.get() }
func Server() ServerHooks { return serverSlot.get() }
func Cache() CacheHooks   { return cacheSlot.get() }
func HTTP() HTTPHooks     { return httpSlot.get() }

// Reset restores the no-op defaults. Tests call it in cleanup.
func Reset() {
	layoutSlot.reset()
	serverSlot.reset()
	cacheSlot.reset()
	httpSlot.reset()
}

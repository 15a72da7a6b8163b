// Package layout runs ELK layouts with caching, tracing and metrics.
//
// [Runner] is what the CLI and the HTTP API share: it validates a graph,
// looks the layout up in a [cache.Cache], asks a [Layouter] (a server
// Client or Pool) on a miss and stores the result.
package layout

import (
	"context"
	"encoding/json"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/matzehuels/elk/pkg/cache"
	"github.com/matzehuels/elk/pkg/graph"
	"github.com/matzehuels/elk/pkg/observability"
	"github.com/matzehuels/elk/pkg/render/svg"
)

const tracerName = "github.com/matzehuels/elk/pkg/layout"

// Layouter computes a layout. *server.Client and *server.Pool implement it.
type Layouter interface {
	Layout(ctx context.Context, g *graph.Graph) (graph.LayoutData, error)
}

// Runner computes layouts through a Layouter with caching.
//
// A Runner holds no per-request state; one Runner may serve many
// goroutines as long as its Layouter does.
type Runner struct {
	Layouter Layouter
	Cache    cache.Cache
	Keyer    cache.Keyer
	Logger   *log.Logger
	Tracer   trace.Tracer

	// ServerVersion is part of every cache key so that upgrading the
	// server invalidates old layouts.
	ServerVersion string
	TTL           time.Duration
}

// NewRunner creates a Runner. A nil cache disables caching, a nil keyer
// uses cache.DefaultKeyer and a nil logger uses log.Default().
func NewRunner(l Layouter, c cache.Cache, keyer cache.Keyer, logger *log.Logger) *Runner {
	if c == nil {
		c = cache.NewNullCache()
	}
	if keyer == nil {
		keyer = cache.NewDefaultKeyer()
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Runner{
		Layouter: l,
		Cache:    c,
		Keyer:    keyer,
		Logger:   logger,
		Tracer:   otel.Tracer(tracerName),
		TTL:      cache.TTLLayout,
	}
}

// Result is a computed (or cached) layout.
type Result struct {
	RequestID string           `json:"request_id"`
	GraphID   string           `json:"graph_id"`
	GraphHash string           `json:"graph_hash"`
	Layout    graph.LayoutData `json:"layout"`
	Cached    bool             `json:"cached"`
	Duration  time.Duration    `json:"duration"`
}

// Compute returns the layout of g.
func (r *Runner) Compute(ctx context.Context, g *graph.Graph) (res *Result, err error) {
	start := time.Now()
	reqID := uuid.NewString()
	logger := r.Logger.With("request", reqID[:8])

	ctx, span := r.tracer().Start(ctx, "elk.layout", trace.WithAttributes(
		attribute.String("elk.request_id", reqID),
	))
	defer span.End()

	var graphID string
	var stats graph.Stats
	if g != nil {
		graphID, stats = g.ID, g.Stats()
	}
	span.SetAttributes(
		attribute.String("elk.graph.id", graphID),
		attribute.Int("elk.graph.nodes", stats.Nodes),
		attribute.Int("elk.graph.edges", stats.Edges),
	)

	hooks := observability.Layout()
	hooks.OnLayoutStart(ctx, graphID, stats.Nodes)
	cached := false
	defer func() {
		span.SetAttributes(attribute.Bool("elk.cached", cached))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		hooks.OnLayoutComplete(ctx, graphID, time.Since(start), cached, err)
	}()

	if err := graph.Validate(g); err != nil {
		return nil, err
	}

	hash, err := graph.Hash(g)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("elk.graph.hash", hash))
	key := r.Keyer.LayoutKey(hash, cache.LayoutKeyOpts{
		ServerVersion: r.ServerVersion,
		Algorithm:     g.Algorithm(),
	})

	res = &Result{RequestID: reqID, GraphID: g.ID, GraphHash: hash}

	if data, ok := r.lookup(ctx, key); ok {
		cached = true
		res.Layout, res.Cached = data, true
		res.Duration = time.Since(start)
		logger.Debug("Layout cache hit", "graph", g.ID, "hash", hash[:12])
		return res, nil
	}

	logger.Debug("Computing layout", "graph", g.ID, "nodes", stats.Nodes, "edges", stats.Edges)
	data, err := r.Layouter.Layout(ctx, g)
	if err != nil {
		return nil, err
	}
	if missing := data.Missing(g); len(missing) > 0 {
		logger.Warn("Layout is missing elements", "graph", g.ID, "missing", missing)
	}
	r.store(ctx, key, data)

	res.Layout = data
	res.Duration = time.Since(start)
	logger.Info("Computed layout", "graph", g.ID, "duration", res.Duration.Round(time.Millisecond))
	return res, nil
}

// lookup returns a cached layout. Backend and decode failures count as
// misses.
func (r *Runner) lookup(ctx context.Context, key string) (graph.LayoutData, bool) {
	raw, ok, err := r.Cache.Get(ctx, key)
	if err != nil {
		r.Logger.Warn("Layout cache read failed", "error", err)
	}
	if err != nil || !ok {
		observability.Cache().OnCacheMiss(ctx, "layout")
		return nil, false
	}
	data, err := graph.UnmarshalLayout(raw)
	if err != nil {
		observability.Cache().OnCacheMiss(ctx, "layout")
		return nil, false
	}
	observability.Cache().OnCacheHit(ctx, "layout")
	return data, true
}

func (r *Runner) store(ctx context.Context, key string, data graph.LayoutData) {
	raw, err := graph.MarshalLayout(data)
	if err != nil {
		return
	}
	if err := r.Cache.Set(ctx, key, raw, r.TTL); err != nil {
		r.Logger.Warn("Layout cache write failed", "error", err)
		return
	}
	observability.Cache().OnCacheSet(ctx, "layout", len(raw))
}

// RenderSVG draws res as SVG, caching the artifact under the layout's
// content hash.
func (r *Runner) RenderSVG(ctx context.Context, g *graph.Graph, res *Result, opts svg.Options) ([]byte, error) {
	layoutJSON, err := json.Marshal(res.Layout)
	if err != nil {
		return nil, err
	}
	style, _ := json.Marshal(opts)
	key := r.Keyer.ArtifactKey(cache.Hash(append(layoutJSON, []byte(res.GraphHash)...)), cache.ArtifactKeyOpts{
		Format: "svg",
		Style:  string(style),
	})

	if raw, ok, err := r.Cache.Get(ctx, key); err == nil && ok {
		observability.Cache().OnCacheHit(ctx, "artifact")
		return raw, nil
	}
	observability.Cache().OnCacheMiss(ctx, "artifact")

	out, err := svg.Render(g, res.Layout, opts)
	if err != nil {
		return nil, err
	}
	if err := r.Cache.Set(ctx, key, out, cache.TTLArtifact); err == nil {
		observability.Cache().OnCacheSet(ctx, "artifact", len(out))
	}
	return out, nil
}

func (r *Runner) tracer() trace.Tracer {
	if r.Tracer == nil {
		return otel.Tracer(tracerName)
	}
	return r.Tracer
}

package server

import (
	"context"

	"golang.org/x/sync/errgroup"

	elkerrors "github.com/matzehuels/elk/pkg/errors"
	"github.com/matzehuels/elk/pkg/graph"
)

// Pool hands out a fixed number of Clients so that up to Size layouts run
// in parallel, each on its own server process.
type Pool struct {
	clients []*Client
	idle    chan *Client
	closed  chan struct{}
}

// NewPool creates size clients sharing opts. Processes start lazily.
func NewPool(size int, opts Options) *Pool {
	size = max(size, 1)
	p := &Pool{
		clients: make([]*Client, size),
		idle:    make(chan *Client, size),
		closed:  make(chan struct{}),
	}
	for i := range p.clients {
		p.clients[i] = NewClient(opts)
		p.idle <- p.clients[i]
	}
	return p
}

// Size returns the number of clients in the pool.
func (p *Pool) Size() int { return len(p.clients) }

// Acquire waits for an idle client. The caller must Release it.
func (p *Pool) Acquire(ctx context.Context) (*Client, error) {
	select {
	case <-p.closed:
		return nil, elkerrors.New(elkerrors.ErrCodeServerUnavailable, "ELK server pool is closed")
	default:
	}
	select {
	case c := <-p.idle:
		return c, nil
	case <-p.closed:
		return nil, elkerrors.New(elkerrors.ErrCodeServerUnavailable, "ELK server pool is closed")
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Release returns a client obtained from Acquire.
func (p *Pool) Release(c *Client) {
	p.idle <- c
}

// Layout runs one layout on an idle client.
func (p *Pool) Layout(ctx context.Context, g *graph.Graph) (graph.LayoutData, error) {
	c, err := p.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer p.Release(c)
	return c.Layout(ctx, g)
}

// LayoutRaw runs one pre-encoded layout on an idle client.
func (p *Pool) LayoutRaw(ctx context.Context, payload []byte) ([]byte, error) {
	c, err := p.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer p.Release(c)
	return c.LayoutRaw(ctx, payload)
}

// Close stops every server process. In-flight requests finish first.
func (p *Pool) Close() error {
	select {
	case <-p.closed:
		return nil
	default:
		close(p.closed)
	}
	var g errgroup.Group
	for _, c := range p.clients {
		g.Go(c.Close)
	}
	return g.Wait()
}

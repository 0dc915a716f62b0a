package api

import (
	"context"

	"github.com/rotisserie/eris"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// ErrBusy is returned when a render cannot start before the request ends.
var ErrBusy = eris.New("render capacity exhausted")

// RenderGate bounds how many documents render at once and how fast new
// renders start. Renders run on their own goroutine so a slow document never
// holds a request past its context.
type RenderGate struct {
	sem     *semaphore.Weighted
	limiter *rate.Limiter
}

// NewRenderGate allows concurrency parallel renders started at no more than
// perSecond per second. perSecond <= 0 disables the rate limit.
func NewRenderGate(concurrency int, perSecond float64) *RenderGate {
	if concurrency < 1 {
		concurrency = 1
	}
	limit := rate.Inf
	burst := concurrency
	if perSecond > 0 {
		limit = rate.Limit(perSecond)
	}
	return &RenderGate{
		sem:     semaphore.NewWeighted(int64(concurrency)),
		limiter: rate.NewLimiter(limit, burst),
	}
}

// Do runs fn once a slot is free. If ctx ends first, Do returns and fn sees
// a cancelled context.
func (g *RenderGate) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := g.limiter.Wait(ctx); err != nil {
		return eris.Wrap(ErrBusy, err.Error())
	}
	if err := g.sem.Acquire(ctx, 1); err != nil {
		return eris.Wrap(ErrBusy, err.Error())
	}

	done := make(chan error, 1)
	go func() {
		defer g.sem.Release(1)
		done <- fn(ctx)
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

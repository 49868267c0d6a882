package platform

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/sync/singleflight"
)

// RefreshMode selects how 401s from concurrent requests are refreshed.
type RefreshMode string

const (
	// RefreshCoalesce shares one in-flight refresh between all requests that
	// were rejected with the same token.
	RefreshCoalesce RefreshMode = "coalesce"

	// RefreshPerRequest lets every rejected request issue its own refresh.
	// Concurrent refreshes race on the token store and the last write wins.
	RefreshPerRequest RefreshMode = "per-request"
)

// ParseRefreshMode parses a configured refresh mode. Empty means coalesce.
func ParseRefreshMode(s string) (RefreshMode, error) {
	switch RefreshMode(strings.ToLower(strings.TrimSpace(s))) {
	case "", RefreshCoalesce:
		return RefreshCoalesce, nil
	case RefreshPerRequest:
		return RefreshPerRequest, nil
	default:
		return "", fmt.Errorf("unknown refresh mode %q (want %q or %q)", s, RefreshCoalesce, RefreshPerRequest)
	}
}

// refresher runs the refresh protocol for a request whose attempt carrying
// rejected was answered with 401.
type refresher interface {
	refresh(ctx context.Context, rejected string) error
}

func newRefresher(p *Pipeline, mode RefreshMode) refresher {
	if mode == RefreshPerRequest {
		return perRequestRefresher{p: p}
	}
	return &coalescingRefresher{p: p}
}

type perRequestRefresher struct {
	p *Pipeline
}

func (r perRequestRefresher) refresh(ctx context.Context, _ string) error {
	_, err := r.p.Refresh(ctx)
	return err
}

// coalescingRefresher keys every refresh on one singleflight slot. The shared
// call runs detached from the caller that started it, so one caller giving up
// does not fail the others.
type coalescingRefresher struct {
	p     *Pipeline
	group singleflight.Group
}

func (r *coalescingRefresher) refresh(ctx context.Context, rejected string) error {
	if r.superseded(rejected) {
		return nil
	}

	ch := r.group.DoChan("refresh", func() (any, error) {
		// A refresh that finished between the check above and joining the
		// group has already replaced the rejected token.
		if r.superseded(rejected) {
			return nil, nil
		}
		return r.p.Refresh(context.WithoutCancel(ctx))
	})

	select {
	case <-ctx.Done():
		return ctx.Err()
	case res := <-ch:
		return res.Err
	}
}

// superseded reports whether the store already holds a token other than the
// one the server rejected, in which case the request can simply be resent.
func (r *coalescingRefresher) superseded(rejected string) bool {
	current, ok := r.p.store.Read()
	if !ok || current == rejected {
		return false
	}
	r.p.metrics.RecordRefreshSkipped()
	r.p.logger.Debug("refresh skipped, token already replaced")
	return true
}

package engine

import (
	"context"
	"fmt"

	"github.com/vietddude/avatar/internal/core/domain"
	"github.com/vietddude/avatar/internal/core/source"
	"github.com/vietddude/avatar/internal/metrics"
)

// startFetchLocked issues the single outstanding request for an async
// source. The generation number is the cancellation token: a completion
// carrying an older generation is discarded.
func (a *Avatar) startFetchLocked(src *source.Source) {
	a.fetchGen++
	gen := a.fetchGen
	size := a.opts.Size
	url := src.Avatar(size)

	if a.fetcher == nil {
		a.log.Warn("No fetcher configured for async source", "source", src.Type())
		a.fetchAvatarSourceLocked(true, domain.FailureFetch)
		return
	}

	ctx, cancel := context.WithCancel(a.ctx)
	a.fetchCancel = cancel

	a.log.Debug("Fetching async avatar source", "source", src.Type(), "url", url)
	go a.runFetch(ctx, gen, src, url, size)
}

func (a *Avatar) runFetch(ctx context.Context, gen uint64, src *source.Source, url string, size int) {
	payload, err := a.fetcher.Fetch(ctx, url)
	var result string
	if err == nil {
		result, err = src.ProcessResponse(payload, size)
	}
	if err != nil {
		err = fmt.Errorf("fetch %s avatar: %w", src.Type(), err)
	}
	a.completeFetch(gen, result, err)
}

func (a *Avatar) completeFetch(gen uint64, result string, err error) {
	if a.storeFetchResult(gen, result, err) {
		a.flush()
	}
}

func (a *Avatar) storeFetchResult(gen uint64, result string, err error) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed || gen != a.fetchGen {
		metrics.FetchDiscardedTotal.Inc()
		return false
	}
	if a.fetchCancel != nil {
		a.fetchCancel()
		a.fetchCancel = nil
	}

	if err != nil {
		a.log.Debug("Async avatar source failed", "error", err)
		a.fetchAvatarSourceLocked(true, domain.FailureFetch)
	} else {
		a.state = domain.StateResolved
		a.avatarSrc = result
		metrics.ResolutionsTotal.WithLabelValues("image").Inc()
		a.emitLocked()
	}
	return true
}

// invalidateFetchLocked cancels the in-flight fetch, if any.
func (a *Avatar) invalidateFetchLocked() {
	a.fetchGen++
	if a.fetchCancel != nil {
		a.fetchCancel()
		a.fetchCancel = nil
	}
}

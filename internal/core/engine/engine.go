// Package engine implements the fallback resolution walk for one avatar.
//
// # Lifecycle
//
// An Avatar owns an ordered candidate list and a cursor. Every configuration
// change rebuilds the list, sorts it by policy priority and walks forward from
// the first candidate that is not in the failure registry:
//
//	Idle ──Apply──▶ Walking ──text/image──▶ Resolved
//	                   │  ▲                    │
//	             async │  │ fetch/render error │
//	                   ▼  │                    ▼
//	              (fetch pipeline)        Exhausted
//
// The cursor only moves forward and a failed candidate is never retried,
// so one walk makes at most len(candidates) attempts.
//
// # Concurrency
//
// All events (Apply, RenderFailed, fetch completion, Close) are serialized
// by the avatar's mutex. At most one fetch is in flight; a configuration
// change or Close invalidates it and its completion is dropped.
//
// Observers registered with Subscribe run outside the lock, in the order the
// views were produced, and may call back into the Avatar.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/vietddude/avatar/internal/core/display"
	"github.com/vietddude/avatar/internal/core/domain"
	"github.com/vietddude/avatar/internal/core/source"
	"github.com/vietddude/avatar/internal/metrics"
)

var (
	// ErrClosed is returned by operations on a torn down avatar.
	ErrClosed = errors.New("avatar session closed")

	// ErrUnknownField is returned by Apply for fields that are neither
	// sources nor display options.
	ErrUnknownField = errors.New("unknown avatar field")
)

// Policy is the subset of the source policy the engine consults.
type Policy interface {
	IsSource(field string) bool
	SourceForField(field string) (domain.SourceType, bool)
	IsTextAvatar(t domain.SourceType) bool
	CompareSources(a, b domain.SourceType) int
	RandomColor(key string) string
	MarkSourceAsFailed(ctx context.Context, src *source.Source, reason domain.FailureReason)
	SourceHasFailedBefore(ctx context.Context, src *source.Source) bool
}

// Factory builds candidates.
type Factory interface {
	NewInstance(t domain.SourceType, id string) (*source.Source, error)
}

// Fetcher performs the network round trip for async sources.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// Change sets one configuration field. An empty value clears it.
type Change struct {
	Field string
	Value string
}

// View is the renderable state of an avatar at one point in time.
type View struct {
	Seq         uint64                 `json:"seq"`
	State       domain.ResolutionState `json:"state"`
	Src         string                 `json:"src,omitempty"`
	Text        string                 `json:"text,omitempty"`
	Placeholder string                 `json:"placeholder,omitempty"`
	Source      *source.Ref            `json:"source,omitempty"`
	Style       display.Style          `json:"style,omitempty"`
	HostStyle   display.Style          `json:"host_style,omitempty"`
}

type observer struct {
	id uint64
	fn func(View)
}

// Avatar is one resolution session.
type Avatar struct {
	id      string
	policy  Policy
	factory Factory
	fetcher Fetcher
	log     *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu           sync.Mutex
	opts         display.Options
	sources      []*source.Source
	currentIndex int
	state        domain.ResolutionState
	avatarSrc    string
	avatarText   string
	style        display.Style
	hostStyle    display.Style
	closed       bool
	seq          uint64
	changed      chan struct{}

	fetchGen    uint64
	fetchCancel context.CancelFunc

	pending   []View
	flushing  bool
	observers []observer
	clicks    []func(source.Ref)
	nextObsID uint64
}

// Option configures an Avatar.
type Option func(*Avatar)

// WithLogger sets the logger.
func WithLogger(log *slog.Logger) Option {
	return func(a *Avatar) {
		if log != nil {
			a.log = log
		}
	}
}

// WithDisplay sets the initial display options.
func WithDisplay(opts display.Options) Option {
	return func(a *Avatar) {
		a.opts = opts.Normalize()
	}
}

// WithID overrides the generated session id.
func WithID(id string) Option {
	return func(a *Avatar) {
		a.id = id
	}
}

// New creates an idle avatar session.
func New(policy Policy, factory Factory, fetcher Fetcher, opts ...Option) *Avatar {
	ctx, cancel := context.WithCancel(context.Background())
	a := &Avatar{
		id:           uuid.NewString(),
		policy:       policy,
		factory:      factory,
		fetcher:      fetcher,
		log:          slog.Default(),
		ctx:          ctx,
		cancel:       cancel,
		opts:         display.DefaultOptions(),
		currentIndex: -1,
		state:        domain.StateIdle,
		changed:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.log = a.log.With("session", a.id)
	metrics.ActiveSessions.Inc()
	return a
}

// ID returns the session id.
func (a *Avatar) ID() string {
	return a.id
}

// Apply applies configuration changes and restarts the walk. Invalid fields
// are reported in the returned error; valid ones are still applied.
func (a *Avatar) Apply(changes ...Change) error {
	err := a.applyAll(changes)
	if errors.Is(err, ErrClosed) {
		return err
	}
	a.flush()
	return err
}

func (a *Avatar) applyAll(changes []Change) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return ErrClosed
	}

	var errs []error
	for _, c := range changes {
		if err := a.applyLocked(c); err != nil {
			errs = append(errs, err)
		}
	}
	a.initializeLocked()
	return errors.Join(errs...)
}

// Set is a shorthand for Apply with a single change.
func (a *Avatar) Set(field, value string) error {
	return a.Apply(Change{Field: field, Value: value})
}

func (a *Avatar) applyLocked(c Change) error {
	if a.policy.IsSource(c.Field) {
		t, _ := a.policy.SourceForField(c.Field)
		if c.Value == "" {
			a.removeSourceLocked(t)
			return nil
		}
		return a.addSourceLocked(t, c.Value)
	}
	if display.IsField(c.Field) {
		return a.opts.Set(c.Field, c.Value)
	}
	return fmt.Errorf("%w: %s", ErrUnknownField, c.Field)
}

// addSourceLocked updates the id in place when a candidate of this type
// exists, keeping its position.
func (a *Avatar) addSourceLocked(t domain.SourceType, value string) error {
	for _, s := range a.sources {
		if s.Type() == t {
			s.SetID(value)
			return nil
		}
	}
	s, err := a.factory.NewInstance(t, value)
	if err != nil {
		return err
	}
	a.sources = append(a.sources, s)
	return nil
}

func (a *Avatar) removeSourceLocked(t domain.SourceType) {
	a.sources = slices.DeleteFunc(a.sources, func(s *source.Source) bool {
		return s.Type() == t
	})
}

// initializeLocked resets the cursor and restarts the fallback walk.
func (a *Avatar) initializeLocked() {
	a.invalidateFetchLocked()
	a.currentIndex = -1
	a.hostStyle = a.opts.HostStyle()

	if len(a.sources) == 0 {
		a.state = domain.StateIdle
		a.clearRenderLocked()
		a.emitLocked()
		return
	}

	slices.SortStableFunc(a.sources, func(x, y *source.Source) int {
		return a.policy.CompareSources(x.Type(), y.Type())
	})
	a.fetchAvatarSourceLocked(false, "")
}

// fetchAvatarSourceLocked optionally marks the current candidate as failed
// and moves to the next one that has not failed before.
func (a *Avatar) fetchAvatarSourceLocked(markCurrent bool, reason domain.FailureReason) {
	if markCurrent {
		if prev := a.currentLocked(); prev != nil {
			a.policy.MarkSourceAsFailed(a.ctx, prev, reason)
			metrics.SourceFailuresTotal.WithLabelValues(string(prev.Type()), string(reason)).Inc()
			a.log.Debug("Avatar source failed", "source", prev.Type(), "reason", reason)
		}
	}

	src := a.findNextSourceLocked()
	if src == nil {
		a.state = domain.StateExhausted
		a.clearRenderLocked()
		metrics.ResolutionsTotal.WithLabelValues("exhausted").Inc()
		a.emitLocked()
		return
	}

	if a.policy.IsTextAvatar(src.Type()) {
		a.buildTextAvatarLocked(src)
	} else {
		a.buildImageAvatarLocked(src)
	}
}

func (a *Avatar) findNextSourceLocked() *source.Source {
	for a.currentIndex++; a.currentIndex < len(a.sources); a.currentIndex++ {
		src := a.sources[a.currentIndex]
		if !a.policy.SourceHasFailedBefore(a.ctx, src) {
			return src
		}
		metrics.SourcesSkippedTotal.WithLabelValues(string(src.Type())).Inc()
	}
	return nil
}

func (a *Avatar) currentLocked() *source.Source {
	if a.currentIndex < 0 || a.currentIndex >= len(a.sources) {
		return nil
	}
	return a.sources[a.currentIndex]
}

func (a *Avatar) buildTextAvatarLocked(src *source.Source) {
	a.state = domain.StateResolved
	a.avatarText = src.Avatar(a.opts.InitialsSize)
	a.avatarSrc = ""
	a.style = a.opts.InitialsStyle(a.policy.RandomColor(src.ID()))
	metrics.ResolutionsTotal.WithLabelValues("text").Inc()
	a.emitLocked()
}

func (a *Avatar) buildImageAvatarLocked(src *source.Source) {
	a.style = a.opts.ImageStyle()
	a.avatarText = ""
	if src.IsAsync() {
		a.state = domain.StateWalking
		a.avatarSrc = ""
		a.emitLocked()
		a.startFetchLocked(src)
		return
	}

	a.state = domain.StateResolved
	a.avatarSrc = src.Avatar(a.opts.Size)
	metrics.ResolutionsTotal.WithLabelValues("image").Inc()
	a.emitLocked()
}

func (a *Avatar) clearRenderLocked() {
	a.avatarSrc = ""
	a.avatarText = ""
	a.style = nil
}

// RenderFailed is the rendering surface's error signal for src. Signals for
// anything other than the currently rendered URL are stale and ignored.
func (a *Avatar) RenderFailed(src string) {
	if a.renderFailed(src) {
		a.flush()
	}
}

func (a *Avatar) renderFailed(src string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed || a.state != domain.StateResolved || a.avatarSrc == "" {
		return false
	}
	if src != "" && src != a.avatarSrc {
		return false
	}
	a.fetchAvatarSourceLocked(true, domain.FailureRender)
	return true
}

// Click reports the candidate currently rendered and notifies OnClick
// observers. ok is false when nothing is rendered.
func (a *Avatar) Click() (ref source.Ref, ok bool) {
	a.mu.Lock()
	cur := a.currentLocked()
	if a.closed || cur == nil || a.state != domain.StateResolved {
		a.mu.Unlock()
		return source.Ref{}, false
	}
	ref = cur.Ref()
	fns := slices.Clone(a.clicks)
	a.mu.Unlock()

	for _, fn := range fns {
		fn(ref)
	}
	return ref, true
}

// OnClick registers a click observer.
func (a *Avatar) OnClick(fn func(source.Ref)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.clicks = append(a.clicks, fn)
}

// Subscribe registers fn to receive every new view. The returned function
// removes the subscription.
func (a *Avatar) Subscribe(fn func(View)) (unsubscribe func()) {
	a.mu.Lock()
	a.nextObsID++
	id := a.nextObsID
	a.observers = append(a.observers, observer{id: id, fn: fn})
	a.mu.Unlock()

	return func() {
		a.mu.Lock()
		defer a.mu.Unlock()
		a.observers = slices.DeleteFunc(a.observers, func(o observer) bool {
			return o.id == id
		})
	}
}

// View returns the current view.
func (a *Avatar) View() View {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.viewLocked()
}

// State returns the current resolution state.
func (a *Avatar) State() domain.ResolutionState {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// Candidates returns the ordered candidate list.
func (a *Avatar) Candidates() []source.Ref {
	a.mu.Lock()
	defer a.mu.Unlock()
	refs := make([]source.Ref, len(a.sources))
	for i, s := range a.sources {
		refs[i] = s.Ref()
	}
	return refs
}

// Wait blocks until the walk is settled (idle, resolved or exhausted) and
// returns the view.
func (a *Avatar) Wait(ctx context.Context) (View, error) {
	for {
		a.mu.Lock()
		if a.closed {
			v := a.viewLocked()
			a.mu.Unlock()
			return v, ErrClosed
		}
		if a.state.Settled() {
			v := a.viewLocked()
			a.mu.Unlock()
			return v, nil
		}
		ch := a.changed
		a.mu.Unlock()

		select {
		case <-ctx.Done():
			return a.View(), ctx.Err()
		case <-ch:
		}
	}
}

// Close tears the session down. An in-flight fetch is canceled and its
// result dropped. Close is idempotent.
func (a *Avatar) Close() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return
	}
	a.closed = true
	a.invalidateFetchLocked()
	a.cancel()
	close(a.changed)
	metrics.ActiveSessions.Dec()
}

func (a *Avatar) viewLocked() View {
	v := View{
		Seq:       a.seq,
		State:     a.state,
		Src:       a.avatarSrc,
		Text:      a.avatarText,
		Style:     a.style,
		HostStyle: a.hostStyle,
	}
	if cur := a.currentLocked(); cur != nil && a.state != domain.StateExhausted {
		ref := cur.Ref()
		v.Source = &ref
	}
	if a.state == domain.StateWalking {
		v.Placeholder = a.opts.Placeholder
	}
	return v
}

func (a *Avatar) emitLocked() {
	a.seq++
	a.pending = append(a.pending, a.viewLocked())
	close(a.changed)
	a.changed = make(chan struct{})
}

// flush delivers pending views. Only one goroutine delivers at a time; a
// re-entrant or concurrent caller leaves its views to the active one.
func (a *Avatar) flush() {
	a.mu.Lock()
	if a.flushing {
		a.mu.Unlock()
		return
	}
	a.flushing = true
	for len(a.pending) > 0 {
		batch := a.pending
		a.pending = nil
		obs := slices.Clone(a.observers)
		a.mu.Unlock()

		for _, v := range batch {
			for _, o := range obs {
				o.fn(v)
			}
		}

		a.mu.Lock()
	}
	a.flushing = false
	a.mu.Unlock()
}

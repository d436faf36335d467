package quest

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/starford/questcard/internal/node"
)

// State is the resolution state of a View.
type State int

// View states.
const (
	StateIdle State = iota
	StateLoading
	StateLoaded
	StateFailed
	// StateCancelled is only reported to commit hooks, for fetches dropped
	// by Close. A view never rests in it.
	StateCancelled
)

// String returns the lowercase state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	case StateLoaded:
		return "loaded"
	case StateFailed:
		return "failed"
	case StateCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Commit describes one settled fetch.
type Commit struct {
	QuestID  string
	State    State
	Err      error
	Duration time.Duration
}

// CommitHook observes settled fetches, including those dropped by Close,
// which are reported with StateCancelled. Hooks run outside the view's lock.
type CommitHook func(Commit)

// Snapshot is a consistent read of a View.
type Snapshot struct {
	Props node.ViewProps
	State State
	// ResolvedID is the id of the payload that last committed.
	ResolvedID string
	Detail     Detail
	HasData    bool
}

// ViewOption configures a View.
type ViewOption func(*View)

// WithLogger sets the sink for fetch failures.
func WithLogger(l *slog.Logger) ViewOption {
	return func(v *View) { v.logger = l }
}

// WithLocation sets the zone used for the period's calendar day.
func WithLocation(loc *time.Location) ViewOption {
	return func(v *View) { v.memo = NewMemo(loc) }
}

// WithCommitHook registers an observer of settled fetches.
func WithCommitHook(h CommitHook) ViewOption {
	return func(v *View) { v.hooks = append(v.hooks, h) }
}

// View resolves one mounted quest card.
//
// A fetch is issued whenever the props carry a non-empty quest id that
// differs from the last requested one. In-flight fetches are never cancelled
// on an id change and every resolution commits, so when ids change quickly
// the last fetch to resolve wins, not the last one issued. Failures are
// logged and leave the detail empty; they never reach the caller.
type View struct {
	fetcher Fetcher
	logger  *slog.Logger
	memo    *Memo
	hooks   []CommitHook

	ctx    context.Context
	cancel context.CancelFunc

	mu         sync.Mutex
	props      node.ViewProps
	requested  string
	resolvedID string
	state      State
	data       *Data
	detail     Detail
	pending    int
	settled    chan struct{}
	closed     bool
}

// NewView creates an unmounted view. Call Update to mount it with props.
func NewView(f Fetcher, opts ...ViewOption) *View {
	ctx, cancel := context.WithCancel(context.Background())
	settled := make(chan struct{})
	close(settled)
	v := &View{
		fetcher: f,
		logger:  slog.Default(),
		memo:    NewMemo(time.UTC),
		ctx:     ctx,
		cancel:  cancel,
		settled: settled,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Mount creates a view and applies props.
func Mount(f Fetcher, props node.ViewProps, opts ...ViewOption) *View {
	v := NewView(f, opts...)
	v.Update(props)
	return v
}

// Update applies new props and starts a fetch when the quest id changed.
// It never blocks on I/O.
func (v *View) Update(props node.ViewProps) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return
	}
	v.props = props
	id := props.QuestID
	if id == "" || id == v.requested {
		return
	}
	v.requested = id
	v.state = StateLoading
	if v.pending == 0 {
		v.settled = make(chan struct{})
	}
	v.pending++
	go v.load(id)
}

func (v *View) load(id string) {
	start := time.Now()
	data, err := v.fetcher.Fetch(v.ctx, id)
	commit := Commit{QuestID: id, Err: err, Duration: time.Since(start)}

	v.mu.Lock()
	if v.closed {
		hooks := v.hooks
		v.mu.Unlock()
		commit.State = StateCancelled
		for _, h := range hooks {
			h(commit)
		}
		return
	}
	v.pending--
	v.resolvedID = id
	if err != nil {
		v.logger.Error("failed to fetch quest",
			slog.String("quest_id", id),
			slog.String("error", err.Error()))
		v.data = nil
		v.detail = Detail{}
		v.state = StateFailed
	} else {
		v.data = data
		detail, derr := v.memo.Detail(data)
		v.detail = detail
		v.state = StateLoaded
		if derr != nil {
			v.logger.Warn("failed to derive quest detail",
				slog.String("quest_id", id),
				slog.String("error", derr.Error()))
			v.state = StateFailed
			commit.Err = derr
		}
	}
	commit.State = v.state
	var settled chan struct{}
	if v.pending == 0 {
		settled = v.settled
	}
	hooks := v.hooks
	v.mu.Unlock()

	for _, h := range hooks {
		h(commit)
	}
	if settled != nil {
		close(settled)
	}
}

// Snapshot returns the current state and derived detail.
func (v *View) Snapshot() Snapshot {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.snapshotLocked()
}

func (v *View) snapshotLocked() Snapshot {
	return Snapshot{
		Props:      v.props,
		State:      v.state,
		ResolvedID: v.resolvedID,
		Detail:     v.detail,
		HasData:    v.data != nil,
	}
}

// State returns the current state.
func (v *View) State() State {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.state
}

// Detail returns the derived detail of the last committed payload.
func (v *View) Detail() Detail {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.detail
}

// Await blocks until no fetch is in flight or ctx is done.
func (v *View) Await(ctx context.Context) (Snapshot, error) {
	v.mu.Lock()
	ch := v.settled
	v.mu.Unlock()

	select {
	case <-ch:
		return v.Snapshot(), nil
	case <-ctx.Done():
		return v.Snapshot(), ctx.Err()
	}
}

// Close unmounts the view. Detail is discarded and in-flight fetches are
// cancelled; their results are dropped and reported to hooks as cancelled.
func (v *View) Close() {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return
	}
	v.closed = true
	v.cancel()
	v.data = nil
	v.detail = Detail{}
	v.state = StateIdle
	if v.pending > 0 {
		v.pending = 0
		close(v.settled)
	}
}

package quest

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/starford/questcard/internal/node"
)

// gatedFetcher blocks each fetch until its id is released.
type gatedFetcher struct {
	mu      sync.Mutex
	calls   []string
	gates   map[string]chan struct{}
	payload map[string]*Data
	errs    map[string]error
}

func newGatedFetcher() *gatedFetcher {
	return &gatedFetcher{
		gates:   make(map[string]chan struct{}),
		payload: make(map[string]*Data),
		errs:    make(map[string]error),
	}
}

func (f *gatedFetcher) gate(id string) chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch, ok := f.gates[id]
	if !ok {
		ch = make(chan struct{})
		f.gates[id] = ch
	}
	return ch
}

func (f *gatedFetcher) release(id string) { close(f.gate(id)) }

func (f *gatedFetcher) Fetch(ctx context.Context, id string) (*Data, error) {
	f.mu.Lock()
	f.calls = append(f.calls, id)
	f.mu.Unlock()
	select {
	case <-f.gate(id):
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.payload[id], f.errs[id]
}

func (f *gatedFetcher) callCount(id string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c == id {
			n++
		}
	}
	return n
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func await(t *testing.T, v *View) Snapshot {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	s, err := v.Await(ctx)
	if err != nil {
		t.Fatalf("Await: %v", err)
	}
	return s
}

func TestView_IdleWithoutID(t *testing.T) {
	f := newGatedFetcher()
	v := Mount(f, node.ViewProps{}, WithLogger(quietLogger()))
	defer v.Close()
	if v.State() != StateIdle {
		t.Errorf("state = %s", v.State())
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.calls) != 0 {
		t.Errorf("fetches = %v", f.calls)
	}
}

func TestView_LoadsOnce(t *testing.T) {
	f := newGatedFetcher()
	f.payload["A"] = &Data{Quest: &Quest{Title: "Alpha"}}
	v := Mount(f, node.ViewProps{QuestID: "A"}, WithLogger(quietLogger()))
	defer v.Close()

	if v.State() != StateLoading {
		t.Errorf("state before resolve = %s", v.State())
	}
	v.Update(node.ViewProps{QuestID: "A", Format: node.FormatCenter})
	f.release("A")
	s := await(t, v)

	if s.State != StateLoaded || s.Detail.Title != "Alpha" {
		t.Errorf("snapshot = %+v", s)
	}
	if n := f.callCount("A"); n != 1 {
		t.Errorf("fetches for A = %d, want 1", n)
	}
	if s.Props.Format != node.FormatCenter {
		t.Errorf("props not updated: %+v", s.Props)
	}
}

func TestView_ReidentifyKeepsOldDetailUntilCommit(t *testing.T) {
	f := newGatedFetcher()
	f.payload["A"] = &Data{Quest: &Quest{Title: "Alpha"}}
	f.payload["B"] = &Data{Quest: &Quest{Title: "Beta"}}
	v := Mount(f, node.ViewProps{QuestID: "A"}, WithLogger(quietLogger()))
	defer v.Close()
	f.release("A")
	await(t, v)

	v.Update(node.ViewProps{QuestID: "B"})
	if n := f.callCount("B"); n != 1 {
		// The goroutine may not have called Fetch yet; give it a moment.
		time.Sleep(50 * time.Millisecond)
		if n = f.callCount("B"); n != 1 {
			t.Fatalf("fetches for B = %d, want 1", n)
		}
	}
	s := v.Snapshot()
	if s.State != StateLoading || s.Detail.Title != "Alpha" {
		t.Errorf("before B resolves: %+v", s)
	}

	f.release("B")
	s = await(t, v)
	if s.Detail.Title != "Beta" || s.ResolvedID != "B" {
		t.Errorf("after B resolves: %+v", s)
	}
	if n := f.callCount("A"); n != 1 {
		t.Errorf("fetches for A = %d, want 1", n)
	}
}

func TestView_LastResolvingWins(t *testing.T) {
	f := newGatedFetcher()
	f.payload["A"] = &Data{Quest: &Quest{Title: "Alpha"}}
	f.payload["B"] = &Data{Quest: &Quest{Title: "Beta"}}
	v := Mount(f, node.ViewProps{QuestID: "A"}, WithLogger(quietLogger()))
	defer v.Close()
	v.Update(node.ViewProps{QuestID: "B"})

	f.release("B")
	time.Sleep(50 * time.Millisecond)
	f.release("A")
	s := await(t, v)

	if s.ResolvedID != "A" || s.Detail.Title != "Alpha" {
		t.Errorf("stale response should commit last: %+v", s)
	}
}

func TestView_FailureDegrades(t *testing.T) {
	f := newGatedFetcher()
	f.errs["A"] = errors.New("network down")

	var mu sync.Mutex
	var commits []Commit
	v := Mount(f, node.ViewProps{QuestID: "A"},
		WithLogger(quietLogger()),
		WithCommitHook(func(c Commit) {
			mu.Lock()
			commits = append(commits, c)
			mu.Unlock()
		}))
	defer v.Close()
	f.release("A")
	s := await(t, v)

	if s.State != StateFailed {
		t.Errorf("state = %s", s.State)
	}
	if s.Detail != (Detail{}) {
		t.Errorf("detail = %+v, want empty", s.Detail)
	}
	var sb strings.Builder
	if err := v.Render(&sb); err != nil {
		t.Fatalf("Render: %v", err)
	}
	mu.Lock()
	defer mu.Unlock()
	if len(commits) != 1 || commits[0].Err == nil || commits[0].State != StateFailed {
		t.Errorf("commits = %+v", commits)
	}
}

func TestView_CloseDropsResults(t *testing.T) {
	f := newGatedFetcher()
	f.payload["A"] = &Data{Quest: &Quest{Title: "Alpha"}}
	v := Mount(f, node.ViewProps{QuestID: "A"}, WithLogger(quietLogger()))
	v.Close()
	f.release("A")

	s := await(t, v)
	if s.State != StateIdle || s.HasData {
		t.Errorf("closed view = %+v", s)
	}
	v.Update(node.ViewProps{QuestID: "B"})
	if f.callCount("B") != 0 {
		t.Error("closed view must not fetch")
	}
}

func TestView_CloseReportsCancelledFetch(t *testing.T) {
	f := newGatedFetcher()
	commits := make(chan Commit, 1)
	v := Mount(f, node.ViewProps{QuestID: "A"},
		WithLogger(quietLogger()),
		WithCommitHook(func(c Commit) { commits <- c }))
	v.Close()

	select {
	case c := <-commits:
		if c.QuestID != "A" || c.State != StateCancelled || !errors.Is(c.Err, context.Canceled) {
			t.Errorf("commit = %+v", c)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no commit for the cancelled fetch")
	}
	if s := v.Snapshot(); s.State != StateIdle {
		t.Errorf("state after close = %s", s.State)
	}
}

package quest

import (
	"context"
	"time"

	"github.com/starford/questcard/internal/node"
)

// Resolver renders one-shot cards outside an editor: it mounts a view for a
// quest, waits for the fetch to settle within Timeout and unmounts it.
type Resolver struct {
	Fetcher Fetcher
	Theme   node.Theme
	// Timeout bounds the wait; zero waits until ctx is done.
	Timeout time.Duration
	Options []ViewOption
}

// Resolve returns the settled snapshot for id. When the wait times out the
// returned snapshot is still loading and the error is the context error.
func (r *Resolver) Resolve(ctx context.Context, id string, format node.Format) (Snapshot, error) {
	n, err := node.NewQuestNode(id, node.WithFormat(format))
	if err != nil {
		return Snapshot{}, err
	}
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}
	v := Mount(r.Fetcher, n.Render(node.RenderContext{Theme: r.Theme}), r.Options...)
	defer v.Close()
	return v.Await(ctx)
}

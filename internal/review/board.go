package review

import (
	"context"
	"sync"

	"github.com/aimerfeng/StarReviews/internal/logging"
	"github.com/aimerfeng/StarReviews/internal/models"
	"github.com/aimerfeng/StarReviews/internal/monitoring"
	"github.com/rs/zerolog"
)

// Renderer paints a display model somewhere
type Renderer interface {
	Render(ctx context.Context, view DisplayModel) error
}

// RendererFunc adapts a function to Renderer
type RendererFunc func(ctx context.Context, view DisplayModel) error

func (f RendererFunc) Render(ctx context.Context, view DisplayModel) error {
	return f(ctx, view)
}

// Notifier is told about every accepted review
type Notifier interface {
	Notify(ctx context.Context, r models.Review, summary Summary) error
}

// MetricsRenderer mirrors the board summary into Prometheus gauges
var MetricsRenderer = RendererFunc(func(_ context.Context, view DisplayModel) error {
	monitoring.SetBoardState(view.Count, view.Average)
	return nil
})

// Board ties the store to its renderers: every load and every accepted
// submission re-renders. Renderer and notifier failures are logged only.
type Board struct {
	store     *Store
	renderers []Renderer
	notifiers []Notifier
	logger    zerolog.Logger

	// update orders store changes with their renders
	update sync.Mutex
	mu     sync.RWMutex
	view   DisplayModel
}

// NewBoard creates a board over store
func NewBoard(store *Store, renderers ...Renderer) *Board {
	return &Board{
		store:     store,
		renderers: renderers,
		logger:    logging.NewLogger("review_board"),
		view:      Render(nil),
	}
}

// AddNotifier registers n for accepted reviews
func (b *Board) AddNotifier(n Notifier) {
	b.notifiers = append(b.notifiers, n)
}

// Init loads the stored reviews and renders them
func (b *Board) Init(ctx context.Context) DisplayModel {
	b.update.Lock()
	defer b.update.Unlock()
	return b.render(ctx, b.store.Load(ctx))
}

// Submit appends a review and re-renders. A validation error leaves the
// board unchanged.
func (b *Board) Submit(ctx context.Context, sub Submission) (DisplayModel, error) {
	b.update.Lock()
	defer b.update.Unlock()

	c, err := b.store.Append(ctx, sub)
	if err != nil {
		return b.View(), err
	}

	view := b.render(ctx, c)

	added := c[len(c)-1]
	for _, n := range b.notifiers {
		if err := n.Notify(ctx, added, view.Summary); err != nil {
			b.logger.Warn().Err(err).Msg("Review notification failed")
		}
	}
	return view, nil
}

// View returns the last rendered display model
func (b *Board) View() DisplayModel {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.view
}

func (b *Board) render(ctx context.Context, c models.Collection) DisplayModel {
	view := Render(c)

	b.mu.Lock()
	b.view = view
	b.mu.Unlock()

	for _, r := range b.renderers {
		if err := r.Render(ctx, view); err != nil {
			b.logger.Warn().Err(err).Msg("Render failed")
		}
	}
	return view
}

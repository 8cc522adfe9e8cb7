package history

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"swapflow/pkg/flow"
)

// Recorder writes a record whenever the observed swap changes stage.
type Recorder struct {
	store  *Store
	engine string
	logger *slog.Logger

	last map[string]string // swap uuid -> stage and error last written
}

// NewRecorder returns a recorder tagging records with the engine name.
func NewRecorder(store *Store, engine string, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{
		store:  store,
		engine: engine,
		logger: logger.With(slog.String("component", "history")),
		last:   make(map[string]string),
	}
}

// Observe folds one flow snapshot into the history. Snapshots without a
// running or finished swap are ignored.
func (r *Recorder) Observe(st flow.State) error {
	p := st.Progress
	if p == nil || p.SwapUUID == "" {
		return nil
	}
	key := p.Stage.String() + "|" + p.Error
	if r.last[p.SwapUUID] == key {
		return nil
	}

	rec, err := r.store.Get(p.SwapUUID)
	if err != nil {
		rec = Record{
			ID:        uuid.NewString(),
			SwapUUID:  p.SwapUUID,
			Engine:    r.engine,
			StartedAt: p.StartedAt,
		}
	}
	if st.Quote != nil {
		rec.OrderUUID = st.Quote.OrderUUID
	}
	rec.SourceTicker = p.SourceTicker
	rec.TargetTicker = p.TargetTicker
	rec.SourceAmount = p.SourceAmount
	rec.TargetAmount = p.TargetAmount
	rec.Stage = p.Stage
	rec.Error = p.Error
	rec.UpdatedAt = p.UpdatedAt
	if p.IsTerminal() && rec.FinishedAt == nil {
		finished := p.UpdatedAt
		rec.FinishedAt = &finished
	}

	if err := r.store.Put(rec); err != nil {
		return err
	}
	r.last[p.SwapUUID] = key
	r.logger.Debug("swap recorded",
		slog.String("swap_uuid", p.SwapUUID),
		slog.String("stage", p.Stage.String()),
	)
	return nil
}

// Run records every snapshot from updates until the channel closes or ctx
// ends. Write failures are logged and do not stop recording.
func (r *Recorder) Run(ctx context.Context, updates <-chan flow.State) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case st, ok := <-updates:
			if !ok {
				return nil
			}
			if err := r.Observe(st); err != nil {
				r.logger.Error("failed to record swap", slog.String("error", err.Error()))
			}
		}
	}
}

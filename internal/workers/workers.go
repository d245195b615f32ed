// Package workers holds the background jobs run by cmd/worker.
package workers

import (
	"context"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"taskboard/internal/engine/position"
	"taskboard/internal/pkg/logger"
	"taskboard/internal/platform/database"
)

// Sweeper renumbers ordered scopes whose positions have crowded together.
// Writes already rebalance the scope they touch, so the sweep only catches
// scopes left crowded by imports or manual edits.
type Sweeper struct {
	db  *sqlx.DB
	log zerolog.Logger
}

func NewSweeper(db *sqlx.DB) *Sweeper {
	return &Sweeper{db: db, log: logger.Component("rebalance_sweep")}
}

// Parents of every ordered scope, paired with the scope they own.
var sweeps = []struct {
	query string
	scope func(string) position.Scope
}{
	{`SELECT id FROM boards ORDER BY id`, position.ListsOf},
	{`SELECT id FROM lists ORDER BY id`, position.CardsOf},
	{`SELECT DISTINCT card_id FROM checklists ORDER BY card_id`, position.ChecklistsOf},
	{`SELECT id FROM checklists ORDER BY id`, position.ItemsOf},
}

// Rebalance checks every scope, each in its own transaction, and returns how
// many were renumbered.
func (s *Sweeper) Rebalance(ctx context.Context) (int, error) {
	renumbered := 0
	for _, sw := range sweeps {
		var ids []string
		if err := s.db.SelectContext(ctx, &ids, sw.query); err != nil {
			return renumbered, errors.Wrap(err, "list sweep parents")
		}

		for _, id := range ids {
			if err := ctx.Err(); err != nil {
				return renumbered, err
			}
			scope := sw.scope(id)
			var changed bool
			err := database.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
				var err error
				changed, err = position.RebalanceIfNeeded(ctx, tx, scope)
				return err
			})
			if err != nil {
				return renumbered, err
			}
			if changed {
				renumbered++
				s.log.Info().Str("scope", scope.String()).Msg("scope renumbered")
			}
		}
	}
	return renumbered, nil
}

func (s *Sweeper) run(ctx context.Context) {
	start := time.Now()
	n, err := s.Rebalance(ctx)
	if err != nil {
		s.log.Error().Err(err).Int("renumbered", n).Msg("rebalance sweep failed")
		return
	}
	s.log.Info().Int("renumbered", n).Dur("took", time.Since(start)).Msg("rebalance sweep finished")
}

// Schedule registers the sweep every interval on a new UTC scheduler. The
// first run happens as soon as the scheduler starts, and runs never overlap.
func (s *Sweeper) Schedule(ctx context.Context, interval time.Duration) (*gocron.Scheduler, error) {
	scheduler := gocron.NewScheduler(time.UTC)
	_, err := scheduler.Every(interval).SingletonMode().Do(s.run, ctx)
	if err != nil {
		return nil, errors.Wrap(err, "schedule rebalance sweep")
	}
	return scheduler, nil
}

// Package scheduler runs the background sweeps that move applications
// forward without a user action, currently the move-in day occupancy sweep.
package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	applicationdomain "github.com/rentstack/rentflow/internal/application/domain"
	"github.com/rentstack/rentflow/internal/clock"
	"github.com/rentstack/rentflow/internal/config"
	workflowdomain "github.com/rentstack/rentflow/internal/workflow/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	Clock    clock.Clock
	Cfg      config.Config
	Workflow workflowdomain.Service
}

// Scheduler periodically flips countersigned applications to occupied once
// their move-in date arrives. It is safe to run on several replicas: every
// transition re-reads the row and the state machine rejects a row another
// replica already moved, so losers of the race get ErrInvalidTransition.
type Scheduler struct {
	db       *gorm.DB
	log      *zap.Logger
	clk      clock.Clock
	cfg      config.Config
	workflow workflowdomain.Service
}

func New(p Params) *Scheduler {
	return &Scheduler{
		db:       p.DB,
		log:      p.Log.Named("scheduler.occupancy"),
		clk:      p.Clock,
		cfg:      p.Cfg,
		workflow: p.Workflow,
	}
}

// WorkApplication is one row of the occupancy sweep.
type WorkApplication struct {
	ID         snowflake.ID
	OrgID      snowflake.ID
	MoveInDate time.Time
}

// RunForever polls until the context is canceled.
func (s *Scheduler) RunForever(ctx context.Context) {
	interval := s.cfg.OccupancyPoll
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.log.Info("occupancy sweep started", zap.Duration("interval", interval))
	for {
		select {
		case <-ctx.Done():
			s.log.Info("occupancy sweep stopped")
			return
		case <-ticker.C:
			if err := s.ProcessBatch(ctx); err != nil {
				s.log.Error("occupancy sweep batch failed", zap.Error(err))
			}
		}
	}
}

// ProcessBatch advances one batch of due applications and returns the first
// hard error. Per-application transition failures are logged and skipped so
// one bad row cannot wedge the sweep.
func (s *Scheduler) ProcessBatch(ctx context.Context) error {
	due, err := s.fetchDueApplications(ctx, s.cfg.OccupancyBatchSize)
	if err != nil {
		return err
	}

	for _, app := range due {
		_, err := s.workflow.Transition(ctx, app.ID, applicationdomain.EventOccupy, "")
		switch {
		case err == nil:
			s.log.Info("application occupied",
				zap.String("application_id", app.ID.String()),
				zap.Time("move_in_date", app.MoveInDate),
			)
		case errors.Is(err, applicationdomain.ErrInvalidTransition):
			// Another replica won the race or the app moved; nothing to do.
		default:
			s.log.Error("occupancy transition failed",
				zap.String("application_id", app.ID.String()),
				zap.Error(err),
			)
		}
	}
	return nil
}

func (s *Scheduler) fetchDueApplications(ctx context.Context, limit int) ([]WorkApplication, error) {
	if limit <= 0 {
		limit = 50
	}

	// The fetch is a plain snapshot read. Concurrent replicas may pick up
	// the same rows, but Transition re-checks the state inside its own
	// transaction, so duplicates fail with ErrInvalidTransition instead of
	// double-advancing.
	query := `SELECT id, org_id, move_in_date
	 FROM applications
	 WHERE state = ? AND move_in_date IS NOT NULL AND move_in_date <= ?
	 ORDER BY move_in_date ASC, id ASC
	 LIMIT ?`

	var due []WorkApplication
	err := s.db.WithContext(ctx).Raw(
		query,
		applicationdomain.StateCountersigned,
		s.clk.Now(),
		limit,
	).Scan(&due).Error
	if err != nil {
		return nil, err
	}
	return due, nil
}

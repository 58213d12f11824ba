package scheduler

import (
	"context"
	"crypto/rand"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

// JobRun is the persisted record of one scheduler job execution, kept
// for operator audit. Counts land in Stats as a JSON document so the
// two jobs can share one table.
type JobRun struct {
	ID         string `gorm:"primaryKey"`
	JobName    string `gorm:"index"`
	StartedAt  time.Time
	FinishedAt *time.Time
	Stats      datatypes.JSONMap
	Error      *string

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (JobRun) TableName() string {
	return "scheduler_job_runs"
}

func (s *Scheduler) beginRun(ctx context.Context, job string) *JobRun {
	now := s.clock.Now(ctx)
	run := &JobRun{
		ID:        ulid.MustNew(ulid.Timestamp(now), rand.Reader).String(),
		JobName:   job,
		StartedAt: now,
	}
	if err := s.db.WithContext(ctx).Create(run).Error; err != nil {
		s.log.Warn("failed to record job run", zap.String("job", job), zap.Error(err))
	}
	return run
}

func (s *Scheduler) finishRun(ctx context.Context, run *JobRun, stats map[string]any, runErr error) {
	now := s.clock.Now(ctx)
	run.FinishedAt = &now
	run.Stats = datatypes.JSONMap(stats)
	if runErr != nil {
		msg := runErr.Error()
		run.Error = &msg
	}
	if err := s.db.WithContext(ctx).Save(run).Error; err != nil {
		s.log.Warn("failed to finalize job run", zap.String("job", run.JobName), zap.Error(err))
	}
}

package jobs

import (
	"context"
	"encoding/json"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Queue is what the worker needs from job storage.
type Queue interface {
	Claim(ctx context.Context, workerID string) (*Job, error)
	MarkDone(ctx context.Context, id uint64) error
	MarkFailed(ctx context.Context, id uint64, errMsg string) error
	RetryLater(ctx context.Context, id uint64, attempts int, runAt time.Time, errMsg string) error
	Schedule(ctx context.Context, typ string, payload map[string]any, runAt time.Time) (bool, error)
}

type Repo struct {
	DB *gorm.DB
}

// Schedule inserts a pending job unless one of the same type is already
// pending or running. It reports whether a row was inserted.
func (r *Repo) Schedule(ctx context.Context, typ string, payload map[string]any, runAt time.Time) (bool, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return false, err
	}
	j := Job{
		Type:        typ,
		Payload:     datatypes.JSON(b),
		RunAt:       runAt,
		Status:      StatusPending,
		MaxAttempts: 8,
	}
	res := r.DB.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&j)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// Claim one due job atomically using SKIP LOCKED.
// Works on Postgres.
func (r *Repo) Claim(ctx context.Context, workerID string) (*Job, error) {
	var job Job
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// requeue stuck RUNNING jobs
		if err := tx.Exec(`
update jobs
set status='PENDING', locked_by=null, locked_at=null, updated_at=now()
where status='RUNNING' and locked_at is not null and locked_at < now() - interval '5 minutes'
`).Error; err != nil {
			return err
		}

		// FOR UPDATE SKIP LOCKED ensures no double-claim across replicas
		q := tx.Raw(`
with cte as (
  select id
  from jobs
  where status='PENDING' and run_at <= now()
  order by run_at asc
  for update skip locked
  limit 1
)
update jobs
set status='RUNNING', locked_by=?, locked_at=now(), updated_at=now()
where id in (select id from cte)
returning *;
`, workerID)

		return q.Scan(&job).Error
	})
	if err != nil {
		return nil, err
	}
	if job.ID == 0 {
		return nil, nil
	}
	return &job, nil
}

func (r *Repo) MarkDone(ctx context.Context, id uint64) error {
	return r.update(ctx, id, map[string]any{
		"status":    StatusDone,
		"locked_by": nil,
		"locked_at": nil,
	})
}

func (r *Repo) MarkFailed(ctx context.Context, id uint64, errMsg string) error {
	return r.update(ctx, id, map[string]any{
		"status":     StatusFailed,
		"last_error": errMsg,
		"locked_by":  nil,
		"locked_at":  nil,
	})
}

func (r *Repo) RetryLater(ctx context.Context, id uint64, attempts int, runAt time.Time, errMsg string) error {
	return r.update(ctx, id, map[string]any{
		"status":     StatusPending,
		"attempts":   attempts,
		"run_at":     runAt,
		"locked_by":  nil,
		"locked_at":  nil,
		"last_error": errMsg,
	})
}

func (r *Repo) update(ctx context.Context, id uint64, fields map[string]any) error {
	fields["updated_at"] = time.Now()
	return r.DB.WithContext(ctx).Model(&Job{}).Where("id = ?", id).Updates(fields).Error
}

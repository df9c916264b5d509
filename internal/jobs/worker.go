package jobs

import (
	"context"
	"math"
	"time"

	"studyforest/internal/model"

	"github.com/rs/zerolog"
)

type HabitResetter interface {
	ResetTodayChecks(ctx context.Context, now time.Time) (model.ResetSummary, error)
}

type Worker struct {
	ID       string
	Queue    Queue
	Habits   HabitResetter
	Location *time.Location
	Poll     time.Duration
	Log      zerolog.Logger
	Now      func() time.Time
}

func (w *Worker) Run(ctx context.Context) {
	poll := w.Poll
	if poll <= 0 {
		poll = 800 * time.Millisecond
	}
	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.Tick(ctx)
		}
	}
}

// Tick claims at most one due job and runs it. It reports whether a job ran.
func (w *Worker) Tick(ctx context.Context) bool {
	job, err := w.Queue.Claim(ctx, w.ID)
	if err != nil {
		w.Log.Error().Err(err).Str("worker", w.ID).Msg("worker claim error")
		return false
	}
	if job == nil {
		return false
	}
	w.handle(ctx, job)
	return true
}

// EnsureScheduled seeds the next habit reset unless one is already queued.
func (w *Worker) EnsureScheduled(ctx context.Context) error {
	return w.scheduleNextReset(ctx)
}

func (w *Worker) handle(ctx context.Context, job *Job) {
	switch job.Type {
	case TypeHabitCheckReset:
		w.handleHabitReset(ctx, job)
	default:
		_ = w.Queue.MarkFailed(ctx, job.ID, "unknown job type")
	}
}

func (w *Worker) handleHabitReset(ctx context.Context, job *Job) {
	res, err := w.Habits.ResetTodayChecks(ctx, w.now())
	if err != nil {
		w.Log.Error().Err(err).Uint64("job", job.ID).Msg("habit check reset failed")
		w.retry(ctx, job, err.Error())
		return
	}

	w.Log.Info().
		Uint64("job", job.ID).
		Str("day", res.Day).
		Int("scanned", res.Scanned).
		Int("reset", res.Reset).
		Int("failed", res.Failed).
		Msg("habit checks reset")

	if err := w.Queue.MarkDone(ctx, job.ID); err != nil {
		w.Log.Error().Err(err).Uint64("job", job.ID).Msg("mark done failed")
		return
	}
	if err := w.scheduleNextReset(ctx); err != nil {
		w.Log.Error().Err(err).Msg("schedule next habit reset failed")
	}
}

func (w *Worker) scheduleNextReset(ctx context.Context) error {
	next := NextMidnight(w.now(), w.location())
	ok, err := w.Queue.Schedule(ctx, TypeHabitCheckReset, map[string]any{
		"scheduled_for": next.Format(time.RFC3339),
	}, next)
	if err != nil {
		return err
	}
	if ok {
		w.Log.Info().Time("run_at", next).Msg("habit reset scheduled")
	}
	return nil
}

func (w *Worker) retry(ctx context.Context, job *Job, errMsg string) {
	attempts := job.Attempts + 1
	if attempts >= job.MaxAttempts {
		_ = w.Queue.MarkFailed(ctx, job.ID, errMsg)
		// keep the daily cycle alive even when one occurrence gives up
		if err := w.scheduleNextReset(ctx); err != nil {
			w.Log.Error().Err(err).Msg("schedule next habit reset failed")
		}
		return
	}

	sec := math.Min(math.Pow(2, float64(attempts)), 600)
	next := w.now().Add(time.Duration(sec) * time.Second)

	_ = w.Queue.RetryLater(ctx, job.ID, attempts, next, errMsg)
}

func (w *Worker) now() time.Time {
	if w.Now != nil {
		return w.Now()
	}
	return time.Now()
}

func (w *Worker) location() *time.Location {
	if w.Location != nil {
		return w.Location
	}
	return time.Local
}

// NextMidnight returns the start of the day after now in loc.
func NextMidnight(now time.Time, loc *time.Location) time.Time {
	y, m, d := now.In(loc).Date()
	return time.Date(y, m, d+1, 0, 0, 0, 0, loc)
}

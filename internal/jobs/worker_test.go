package jobs_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"studyforest/internal/jobs"
	"studyforest/internal/model"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scheduled struct {
	typ   string
	runAt time.Time
}

type retried struct {
	id       uint64
	attempts int
	runAt    time.Time
}

type fakeQueue struct {
	pending   []*jobs.Job
	done      []uint64
	failed    []uint64
	retries   []retried
	schedules []scheduled
}

func (q *fakeQueue) Claim(context.Context, string) (*jobs.Job, error) {
	if len(q.pending) == 0 {
		return nil, nil
	}
	j := q.pending[0]
	q.pending = q.pending[1:]
	return j, nil
}

func (q *fakeQueue) MarkDone(_ context.Context, id uint64) error {
	q.done = append(q.done, id)
	return nil
}

func (q *fakeQueue) MarkFailed(_ context.Context, id uint64, _ string) error {
	q.failed = append(q.failed, id)
	return nil
}

func (q *fakeQueue) RetryLater(_ context.Context, id uint64, attempts int, runAt time.Time, _ string) error {
	q.retries = append(q.retries, retried{id: id, attempts: attempts, runAt: runAt})
	return nil
}

func (q *fakeQueue) Schedule(_ context.Context, typ string, _ map[string]any, runAt time.Time) (bool, error) {
	q.schedules = append(q.schedules, scheduled{typ: typ, runAt: runAt})
	return true, nil
}

type fakeResetter struct {
	calls []time.Time
	err   error
}

func (f *fakeResetter) ResetTodayChecks(_ context.Context, now time.Time) (model.ResetSummary, error) {
	f.calls = append(f.calls, now)
	if f.err != nil {
		return model.ResetSummary{}, f.err
	}
	return model.ResetSummary{Day: "월", Scanned: 3, Reset: 2}, nil
}

var seoul = time.FixedZone("KST", 9*60*60)

func newWorker(q *fakeQueue, r *fakeResetter, now time.Time) *jobs.Worker {
	return &jobs.Worker{
		ID:       "w1",
		Queue:    q,
		Habits:   r,
		Location: seoul,
		Log:      zerolog.Nop(),
		Now:      func() time.Time { return now },
	}
}

func TestTickRunsResetAndSchedulesNext(t *testing.T) {
	now := time.Date(2024, 5, 6, 0, 0, 2, 0, seoul)
	q := &fakeQueue{pending: []*jobs.Job{{ID: 7, Type: jobs.TypeHabitCheckReset, MaxAttempts: 8}}}
	r := &fakeResetter{}
	w := newWorker(q, r, now)

	require.True(t, w.Tick(context.Background()))

	require.Len(t, r.calls, 1)
	assert.Equal(t, []uint64{7}, q.done)
	require.Len(t, q.schedules, 1)
	assert.Equal(t, jobs.TypeHabitCheckReset, q.schedules[0].typ)
	assert.True(t, q.schedules[0].runAt.Equal(time.Date(2024, 5, 7, 0, 0, 0, 0, seoul)))

	assert.False(t, w.Tick(context.Background()))
}

func TestTickRetriesWithBackoff(t *testing.T) {
	now := time.Date(2024, 5, 6, 0, 0, 2, 0, seoul)
	q := &fakeQueue{pending: []*jobs.Job{{ID: 3, Type: jobs.TypeHabitCheckReset, Attempts: 2, MaxAttempts: 8}}}
	r := &fakeResetter{err: errors.New("db down")}
	w := newWorker(q, r, now)

	w.Tick(context.Background())

	require.Len(t, q.retries, 1)
	assert.Equal(t, 3, q.retries[0].attempts)
	assert.Equal(t, now.Add(8*time.Second), q.retries[0].runAt)
	assert.Empty(t, q.done)
	assert.Empty(t, q.schedules)
}

func TestTickGivesUpButKeepsDailyCycle(t *testing.T) {
	now := time.Date(2024, 5, 6, 0, 10, 0, 0, seoul)
	q := &fakeQueue{pending: []*jobs.Job{{ID: 4, Type: jobs.TypeHabitCheckReset, Attempts: 7, MaxAttempts: 8}}}
	r := &fakeResetter{err: errors.New("db down")}
	w := newWorker(q, r, now)

	w.Tick(context.Background())

	assert.Equal(t, []uint64{4}, q.failed)
	assert.Empty(t, q.retries)
	require.Len(t, q.schedules, 1)
	assert.True(t, q.schedules[0].runAt.Equal(time.Date(2024, 5, 7, 0, 0, 0, 0, seoul)))
}

func TestTickFailsUnknownJobType(t *testing.T) {
	q := &fakeQueue{pending: []*jobs.Job{{ID: 9, Type: "SOMETHING_ELSE"}}}
	r := &fakeResetter{}
	w := newWorker(q, r, time.Now())

	w.Tick(context.Background())

	assert.Equal(t, []uint64{9}, q.failed)
	assert.Empty(t, r.calls)
}

func TestEnsureScheduled(t *testing.T) {
	now := time.Date(2024, 5, 6, 23, 59, 0, 0, seoul)
	q := &fakeQueue{}
	w := newWorker(q, &fakeResetter{}, now)

	require.NoError(t, w.EnsureScheduled(context.Background()))
	require.Len(t, q.schedules, 1)
	assert.True(t, q.schedules[0].runAt.Equal(time.Date(2024, 5, 7, 0, 0, 0, 0, seoul)))
}

func TestNextMidnight(t *testing.T) {
	// 16:30 UTC is already 01:30 of the next day in Seoul
	now := time.Date(2024, 12, 31, 16, 30, 0, 0, time.UTC)
	got := jobs.NextMidnight(now, seoul)
	assert.True(t, got.Equal(time.Date(2025, 1, 2, 0, 0, 0, 0, seoul)))

	got = jobs.NextMidnight(time.Date(2024, 2, 28, 12, 0, 0, 0, time.UTC), time.UTC)
	assert.True(t, got.Equal(time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC)))
}

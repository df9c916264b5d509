package ledger

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"

	"studyforest/internal/db"
	"studyforest/internal/dbtest"
	"studyforest/internal/model"
	"studyforest/internal/points"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

func newService(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()
	gdb := dbtest.Open(t)
	return &Service{DB: gdb, Policy: points.DefaultThreshold}, gdb
}

func seedStudy(t *testing.T, gdb *gorm.DB) model.Study {
	t.Helper()
	st := model.Study{Title: "algorithms", Nickname: "kim", PasswordHash: "x"}
	require.NoError(t, gdb.Create(&st).Error)
	return st
}

func seedUser(t *testing.T, gdb *gorm.DB, name string) model.User {
	t.Helper()
	u := model.User{Username: name}
	require.NoError(t, gdb.Create(&u).Error)
	return u
}

func pointsOf(t *testing.T, gdb *gorm.DB, m any, id string) int64 {
	t.Helper()
	var p int64
	require.NoError(t, gdb.Model(m).Select("points").Where("id = ?", id).Row().Scan(&p))
	return p
}

func TestSessionLifecycleScenario(t *testing.T) {
	ctx := context.Background()
	svc, gdb := newService(t)
	st := seedStudy(t, gdb)

	tm, err := svc.CreateSession(ctx, CreateSessionInput{StudyID: st.ID, Duration: 650})
	require.NoError(t, err)
	assert.Equal(t, int64(4), tm.EarnedPoints)
	assert.Equal(t, int64(4), pointsOf(t, gdb, &model.Study{}, st.ID))

	tm, err = svc.UpdateSession(ctx, tm.ID, 1205)
	require.NoError(t, err)
	assert.Equal(t, int64(5), tm.EarnedPoints)
	assert.Equal(t, int64(1205), tm.Duration)
	assert.Equal(t, int64(5), pointsOf(t, gdb, &model.Study{}, st.ID))

	require.NoError(t, svc.DeleteSession(ctx, tm.ID))
	assert.Equal(t, int64(0), pointsOf(t, gdb, &model.Study{}, st.ID))

	_, err = svc.GetSession(ctx, tm.ID)
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestCreateSessionCreditsUser(t *testing.T) {
	ctx := context.Background()
	svc, gdb := newService(t)
	st := seedStudy(t, gdb)
	u := seedUser(t, gdb, "lee")

	_, err := svc.CreateSession(ctx, CreateSessionInput{StudyID: st.ID, UserID: &u.ID, Duration: 1800})
	require.NoError(t, err)

	assert.Equal(t, int64(6), pointsOf(t, gdb, &model.Study{}, st.ID))
	assert.Equal(t, int64(6), pointsOf(t, gdb, &model.User{}, u.ID))
}

func TestCreateSessionBelowThresholdStillRecorded(t *testing.T) {
	ctx := context.Background()
	svc, gdb := newService(t)
	st := seedStudy(t, gdb)

	tm, err := svc.CreateSession(ctx, CreateSessionInput{StudyID: st.ID, Duration: 120})
	require.NoError(t, err)
	assert.Equal(t, int64(0), tm.EarnedPoints)

	list, err := svc.ListSessions(ctx, ListFilter{StudyID: st.ID})
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestCreateSessionValidation(t *testing.T) {
	ctx := context.Background()
	svc, gdb := newService(t)
	st := seedStudy(t, gdb)

	_, err := svc.CreateSession(ctx, CreateSessionInput{StudyID: st.ID, Duration: -1})
	assert.True(t, model.IsValidation(err))

	_, err = svc.CreateSession(ctx, CreateSessionInput{StudyID: model.NewID(), Duration: 60})
	assert.ErrorIs(t, err, model.ErrNotFound)

	missing := model.NewID()
	_, err = svc.CreateSession(ctx, CreateSessionInput{StudyID: st.ID, UserID: &missing, Duration: 60})
	assert.ErrorIs(t, err, model.ErrNotFound)

	var n int64
	require.NoError(t, gdb.Model(&model.Timer{}).Count(&n).Error)
	assert.Zero(t, n)
}

func TestUpdateSessionNetEffectIsOrderInsensitive(t *testing.T) {
	ctx := context.Background()
	svc, gdb := newService(t)
	st := seedStudy(t, gdb)
	u := seedUser(t, gdb, "park")

	// unrelated session so the initial balance is not zero
	_, err := svc.CreateSession(ctx, CreateSessionInput{StudyID: st.ID, UserID: &u.ID, Duration: 3000})
	require.NoError(t, err)

	tm, err := svc.CreateSession(ctx, CreateSessionInput{StudyID: st.ID, UserID: &u.ID, Duration: 700})
	require.NoError(t, err)
	initialStudy := pointsOf(t, gdb, &model.Study{}, st.ID)
	initialUser := pointsOf(t, gdb, &model.User{}, u.ID)
	original := svc.Earned(700)

	for _, d := range []int64{5000, 0, 1300, 620, 9999, 2400} {
		_, err := svc.UpdateSession(ctx, tm.ID, d)
		require.NoError(t, err)
	}

	want := svc.Earned(2400) - original
	assert.Equal(t, initialStudy+want, pointsOf(t, gdb, &model.Study{}, st.ID))
	assert.Equal(t, initialUser+want, pointsOf(t, gdb, &model.User{}, u.ID))
}

func TestUpdateSessionMissing(t *testing.T) {
	svc, _ := newService(t)
	_, err := svc.UpdateSession(context.Background(), model.NewID(), 60)
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestDeleteThenRecreateRestoresBalance(t *testing.T) {
	ctx := context.Background()
	svc, gdb := newService(t)
	st := seedStudy(t, gdb)

	_, err := svc.CreateSession(ctx, CreateSessionInput{StudyID: st.ID, Duration: 900})
	require.NoError(t, err)
	tm, err := svc.CreateSession(ctx, CreateSessionInput{StudyID: st.ID, Duration: 1500})
	require.NoError(t, err)
	before := pointsOf(t, gdb, &model.Study{}, st.ID)

	require.NoError(t, svc.DeleteSession(ctx, tm.ID))
	_, err = svc.CreateSession(ctx, CreateSessionInput{StudyID: st.ID, Duration: 1500})
	require.NoError(t, err)

	assert.Equal(t, before, pointsOf(t, gdb, &model.Study{}, st.ID))
}

func TestDeleteSessionClampsAtZero(t *testing.T) {
	ctx := context.Background()
	svc, gdb := newService(t)
	st := seedStudy(t, gdb)

	tm, err := svc.CreateSession(ctx, CreateSessionInput{StudyID: st.ID, Duration: 3600})
	require.NoError(t, err)

	// drift: balance lower than what the session credited
	require.NoError(t, gdb.Model(&model.Study{}).Where("id = ?", st.ID).Update("points", 2).Error)

	require.NoError(t, svc.DeleteSession(ctx, tm.ID))
	assert.Equal(t, int64(0), pointsOf(t, gdb, &model.Study{}, st.ID))

	assert.ErrorIs(t, svc.DeleteSession(ctx, tm.ID), model.ErrNotFound)
}

func TestDeleteOwnerCascade(t *testing.T) {
	ctx := context.Background()
	svc, gdb := newService(t)
	st := seedStudy(t, gdb)
	other := seedStudy(t, gdb)
	a := seedUser(t, gdb, "a")
	b := seedUser(t, gdb, "b")

	_, err := svc.CreateSession(ctx, CreateSessionInput{StudyID: st.ID, UserID: &a.ID, Duration: 1200})
	require.NoError(t, err)
	_, err = svc.CreateSession(ctx, CreateSessionInput{StudyID: st.ID, UserID: &a.ID, Duration: 600})
	require.NoError(t, err)
	_, err = svc.CreateSession(ctx, CreateSessionInput{StudyID: st.ID, UserID: &b.ID, Duration: 3000})
	require.NoError(t, err)
	_, err = svc.CreateSession(ctx, CreateSessionInput{StudyID: st.ID, Duration: 3000})
	require.NoError(t, err)
	// a keeps the points earned in another study
	_, err = svc.CreateSession(ctx, CreateSessionInput{StudyID: other.ID, UserID: &a.ID, Duration: 600})
	require.NoError(t, err)

	h := model.Habit{StudyID: st.ID, Title: "read"}
	require.NoError(t, gdb.Create(&h).Error)
	e := model.Emoji{StudyID: st.ID, Emoji: "🔥", Count: 2}
	require.NoError(t, gdb.Create(&e).Error)

	require.NoError(t, svc.DeleteOwnerCascade(ctx, st.ID))

	for _, m := range []any{&model.Timer{}, &model.Habit{}, &model.Emoji{}} {
		var n int64
		require.NoError(t, gdb.Model(m).Where("study_id = ?", st.ID).Count(&n).Error)
		assert.Zero(t, n)
	}
	var n int64
	require.NoError(t, gdb.Model(&model.Study{}).Where("id = ?", st.ID).Count(&n).Error)
	assert.Zero(t, n)

	assert.Equal(t, svc.Earned(600), pointsOf(t, gdb, &model.User{}, a.ID))
	assert.Equal(t, int64(0), pointsOf(t, gdb, &model.User{}, b.ID))
	assert.Equal(t, svc.Earned(600), pointsOf(t, gdb, &model.Study{}, other.ID))

	assert.ErrorIs(t, svc.DeleteOwnerCascade(ctx, st.ID), model.ErrNotFound)
}

func TestDeleteOwnerCascadeRollsBackOnFailure(t *testing.T) {
	ctx := context.Background()
	svc, gdb := newService(t)
	st := seedStudy(t, gdb)
	u := seedUser(t, gdb, "a")

	_, err := svc.CreateSession(ctx, CreateSessionInput{StudyID: st.ID, UserID: &u.ID, Duration: 1200})
	require.NoError(t, err)
	h := model.Habit{StudyID: st.ID, Title: "read"}
	require.NoError(t, gdb.Create(&h).Error)
	e := model.Emoji{StudyID: st.ID, Emoji: "🔥", Count: 1}
	require.NoError(t, gdb.Create(&e).Error)

	// emojis are deleted after the user balances and the timer rows
	require.NoError(t, gdb.Callback().Delete().Before("gorm:delete").Register("test:fail_emojis", func(db *gorm.DB) {
		if db.Statement.Table == "emojis" {
			_ = db.AddError(errors.New("disk full"))
		}
	}))

	err = svc.DeleteOwnerCascade(ctx, st.ID)
	require.Error(t, err)

	assert.Equal(t, svc.Earned(1200), pointsOf(t, gdb, &model.User{}, u.ID))
	assert.Equal(t, svc.Earned(1200), pointsOf(t, gdb, &model.Study{}, st.ID))
	for _, m := range []any{&model.Timer{}, &model.Habit{}, &model.Emoji{}} {
		var n int64
		require.NoError(t, gdb.Model(m).Where("study_id = ?", st.ID).Count(&n).Error)
		assert.Equal(t, int64(1), n)
	}
}

func TestCreateSessionAfterCascade(t *testing.T) {
	ctx := context.Background()
	svc, gdb := newService(t)
	st := seedStudy(t, gdb)
	u := seedUser(t, gdb, "a")
	require.NoError(t, svc.DeleteOwnerCascade(ctx, st.ID))

	_, err := svc.CreateSession(ctx, CreateSessionInput{StudyID: st.ID, UserID: &u.ID, Duration: 1200})
	assert.ErrorIs(t, err, model.ErrNotFound)

	var n int64
	require.NoError(t, gdb.Model(&model.Timer{}).Count(&n).Error)
	assert.Zero(t, n)
	assert.Zero(t, pointsOf(t, gdb, &model.User{}, u.ID))
}

// Interleaving needs real concurrent transactions, so this runs against
// postgres only.
func TestCreateSessionRacingCascadePostgres(t *testing.T) {
	dsn := os.Getenv("STUDYFOREST_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("STUDYFOREST_TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	gdb, err := db.Connect(dsn, zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrateAndIndexes(gdb))
	svc := &Service{DB: gdb, Policy: points.DefaultThreshold}

	st := seedStudy(t, gdb)
	u := model.User{Username: "race-" + model.NewID()}
	require.NoError(t, gdb.Create(&u).Error)
	t.Cleanup(func() { gdb.Where("id = ?", u.ID).Delete(&model.User{}) })

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.CreateSession(ctx, CreateSessionInput{StudyID: st.ID, UserID: &u.ID, Duration: 1200})
			if err != nil {
				assert.ErrorIs(t, err, model.ErrNotFound)
			}
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		assert.NoError(t, svc.DeleteOwnerCascade(ctx, st.ID))
	}()
	wg.Wait()

	var n int64
	require.NoError(t, gdb.Model(&model.Timer{}).Where("study_id = ?", st.ID).Count(&n).Error)
	assert.Zero(t, n)
	assert.Zero(t, pointsOf(t, gdb, &model.User{}, u.ID))
}

func TestStats(t *testing.T) {
	ctx := context.Background()
	svc, gdb := newService(t)
	st := seedStudy(t, gdb)
	u := seedUser(t, gdb, "choi")

	_, err := svc.CreateSession(ctx, CreateSessionInput{StudyID: st.ID, UserID: &u.ID, Duration: 600})
	require.NoError(t, err)
	_, err = svc.CreateSession(ctx, CreateSessionInput{StudyID: st.ID, Duration: 1200})
	require.NoError(t, err)

	got, err := svc.Stats(ctx, ListFilter{StudyID: st.ID})
	require.NoError(t, err)
	assert.Equal(t, Stats{TotalDuration: 1800, TotalSessions: 2, TotalPoints: 9}, got)

	got, err = svc.Stats(ctx, ListFilter{UserID: u.ID})
	require.NoError(t, err)
	assert.Equal(t, Stats{TotalDuration: 600, TotalSessions: 1, TotalPoints: 4}, got)

	_, err = svc.Stats(ctx, ListFilter{StudyID: model.NewID()})
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestLinearPolicy(t *testing.T) {
	ctx := context.Background()
	gdb := dbtest.Open(t)
	svc := &Service{DB: gdb, Policy: points.Linear{}}
	st := seedStudy(t, gdb)

	tm, err := svc.CreateSession(ctx, CreateSessionInput{StudyID: st.ID, Duration: 650})
	require.NoError(t, err)
	assert.Equal(t, int64(10), tm.EarnedPoints)
	assert.Equal(t, int64(10), pointsOf(t, gdb, &model.Study{}, st.ID))
}

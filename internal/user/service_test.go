package user

import (
	"context"
	"testing"

	"studyforest/internal/dbtest"
	"studyforest/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateAndGet(t *testing.T) {
	ctx := context.Background()
	svc := &Service{DB: dbtest.Open(t)}

	u, err := svc.Create(ctx, " jin ", 5)
	require.NoError(t, err)
	assert.Equal(t, "jin", u.Username)

	got, err := svc.Get(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(5), got.Points)

	_, err = svc.Create(ctx, "jin", 0)
	assert.True(t, model.IsValidation(err))
	_, err = svc.Create(ctx, "", -1)
	assert.True(t, model.IsValidation(err))

	_, err = svc.Get(ctx, model.NewID())
	assert.ErrorIs(t, err, model.ErrNotFound)

	list, err := svc.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestPoints(t *testing.T) {
	ctx := context.Background()
	svc := &Service{DB: dbtest.Open(t)}
	u, err := svc.Create(ctx, "mina", 0)
	require.NoError(t, err)

	u, err = svc.SetPoints(ctx, u.ID, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(10), u.Points)

	u, err = svc.AddPoints(ctx, u.ID, 5)
	require.NoError(t, err)
	assert.Equal(t, int64(15), u.Points)

	u, err = svc.AddPoints(ctx, u.ID, -100)
	require.NoError(t, err)
	assert.Equal(t, int64(0), u.Points)

	_, err = svc.SetPoints(ctx, u.ID, -1)
	assert.True(t, model.IsValidation(err))
	_, err = svc.AddPoints(ctx, model.NewID(), 1)
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestDeleteKeepsSessions(t *testing.T) {
	ctx := context.Background()
	gdb := dbtest.Open(t)
	svc := &Service{DB: gdb}
	u, err := svc.Create(ctx, "ho", 0)
	require.NoError(t, err)

	st := model.Study{Title: "s", Nickname: "n", PasswordHash: "x"}
	require.NoError(t, gdb.Create(&st).Error)
	tm := model.Timer{StudyID: st.ID, UserID: &u.ID, Duration: 600, EarnedPoints: 4}
	require.NoError(t, gdb.Create(&tm).Error)

	require.NoError(t, svc.Delete(ctx, u.ID))

	var got model.Timer
	require.NoError(t, gdb.First(&got, "id = ?", tm.ID).Error)
	assert.Nil(t, got.UserID)

	assert.ErrorIs(t, svc.Delete(ctx, u.ID), model.ErrNotFound)
}

// Package ledger keeps study and user point balances equal to the sum of
// earned points of their timer sessions.
//
// Balances are adjusted by deltas inside the same transaction that writes
// the session row; sessions are never re-scanned to recompute a balance.
package ledger

import (
	"context"
	"errors"
	"fmt"

	"studyforest/internal/model"
	"studyforest/internal/points"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Service struct {
	DB     *gorm.DB
	Policy points.Policy
}

type CreateSessionInput struct {
	StudyID  string
	UserID   *string
	Duration int64
}

type ListFilter struct {
	StudyID string
	UserID  string
}

type Stats struct {
	TotalDuration int64
	TotalSessions int64
	TotalPoints   int64
}

// Earned exposes the configured policy.
func (s *Service) Earned(duration int64) int64 {
	return s.Policy.Earned(duration)
}

func (s *Service) CreateSession(ctx context.Context, in CreateSessionInput) (model.Timer, error) {
	if in.Duration < 0 {
		return model.Timer{}, model.Invalid("duration", "must be zero or greater")
	}

	t := model.Timer{
		StudyID:      in.StudyID,
		UserID:       in.UserID,
		Duration:     in.Duration,
		EarnedPoints: s.Policy.Earned(in.Duration),
	}

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// owners stay locked until commit so a concurrent delete cannot
		// remove them between the check and the credit
		if err := lockOwner(tx, &model.Study{}, in.StudyID, "study"); err != nil {
			return err
		}
		if in.UserID != nil {
			if err := lockOwner(tx, &model.User{}, *in.UserID, "user"); err != nil {
				return err
			}
		}

		if err := tx.Create(&t).Error; err != nil {
			return err
		}

		if err := applyDelta(tx, &model.Study{}, t.StudyID, t.EarnedPoints); err != nil {
			return err
		}
		if t.UserID != nil {
			return applyDelta(tx, &model.User{}, *t.UserID, t.EarnedPoints)
		}
		return nil
	})
	if err != nil {
		return model.Timer{}, err
	}
	return t, nil
}

// UpdateSession recomputes the earned points for a new duration and moves
// both balances by the difference.
func (s *Service) UpdateSession(ctx context.Context, id string, duration int64) (model.Timer, error) {
	if duration < 0 {
		return model.Timer{}, model.Invalid("duration", "must be zero or greater")
	}

	var t model.Timer
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", id).
			First(&t).Error; err != nil {
			return notFound(err, "timer", id)
		}

		earned := s.Policy.Earned(duration)
		delta := earned - t.EarnedPoints

		if err := tx.Model(&model.Timer{}).Where("id = ?", id).Updates(map[string]any{
			"duration":      duration,
			"earned_points": earned,
		}).Error; err != nil {
			return err
		}

		if delta != 0 {
			if err := applyDelta(tx, &model.Study{}, t.StudyID, delta); err != nil {
				return err
			}
			if t.UserID != nil {
				if err := applyDelta(tx, &model.User{}, *t.UserID, delta); err != nil {
					return err
				}
			}
		}

		return tx.Where("id = ?", id).First(&t).Error
	})
	if err != nil {
		return model.Timer{}, err
	}
	return t, nil
}

// DeleteSession removes a timer and takes its points back, never driving a
// balance below zero.
func (s *Service) DeleteSession(ctx context.Context, id string) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var t model.Timer
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", id).
			First(&t).Error; err != nil {
			return notFound(err, "timer", id)
		}

		if err := applyDelta(tx, &model.Study{}, t.StudyID, -t.EarnedPoints); err != nil {
			return err
		}
		if t.UserID != nil {
			if err := applyDelta(tx, &model.User{}, *t.UserID, -t.EarnedPoints); err != nil {
				return err
			}
		}

		return tx.Where("id = ?", id).Delete(&model.Timer{}).Error
	})
}

type userTotal struct {
	UserID string
	Total  int64
}

// DeleteOwnerCascade deletes a study with all of its habits, emojis and
// timers. Points the timers credited to users are taken back first. It is a
// single transaction: either everything is gone and corrected, or nothing is.
func (s *Service) DeleteOwnerCascade(ctx context.Context, studyID string) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var st model.Study
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", studyID).
			First(&st).Error; err != nil {
			return notFound(err, "study", studyID)
		}

		var totals []userTotal
		if err := tx.Model(&model.Timer{}).
			Select("user_id, sum(earned_points) as total").
			Where("study_id = ? AND user_id IS NOT NULL", studyID).
			Group("user_id").
			Scan(&totals).Error; err != nil {
			return err
		}
		for _, ut := range totals {
			if err := applyDelta(tx, &model.User{}, ut.UserID, -ut.Total); err != nil {
				return err
			}
		}

		for _, m := range []any{&model.Timer{}, &model.Habit{}, &model.Emoji{}} {
			if err := tx.Where("study_id = ?", studyID).Delete(m).Error; err != nil {
				return err
			}
		}
		return tx.Where("id = ?", studyID).Delete(&model.Study{}).Error
	})
}

func (s *Service) GetSession(ctx context.Context, id string) (model.Timer, error) {
	var t model.Timer
	if err := s.DB.WithContext(ctx).Where("id = ?", id).First(&t).Error; err != nil {
		return model.Timer{}, notFound(err, "timer", id)
	}
	return t, nil
}

// ListSessions returns sessions newest first.
func (s *Service) ListSessions(ctx context.Context, f ListFilter) ([]model.Timer, error) {
	var out []model.Timer
	err := s.filter(s.DB.WithContext(ctx).Model(&model.Timer{}), f).
		Order("created_at desc").
		Find(&out).Error
	return out, err
}

// Stats aggregates the sessions of a study or a user. The owner must exist.
func (s *Service) Stats(ctx context.Context, f ListFilter) (Stats, error) {
	db := s.DB.WithContext(ctx)
	if f.StudyID != "" {
		if err := exists(db, &model.Study{}, f.StudyID, "study"); err != nil {
			return Stats{}, err
		}
	}
	if f.UserID != "" {
		if err := exists(db, &model.User{}, f.UserID, "user"); err != nil {
			return Stats{}, err
		}
	}

	var st Stats
	err := s.filter(db.Model(&model.Timer{}), f).
		Select("coalesce(sum(duration), 0) as total_duration, count(*) as total_sessions, coalesce(sum(earned_points), 0) as total_points").
		Scan(&st).Error
	return st, err
}

func (s *Service) filter(q *gorm.DB, f ListFilter) *gorm.DB {
	if f.StudyID != "" {
		q = q.Where("study_id = ?", f.StudyID)
	}
	if f.UserID != "" {
		q = q.Where("user_id = ?", f.UserID)
	}
	return q
}

// applyDelta moves a points balance atomically. Negative deltas stop at zero.
func applyDelta(tx *gorm.DB, m any, id string, delta int64) error {
	var expr clause.Expr
	switch {
	case delta == 0:
		return nil
	case delta > 0:
		expr = gorm.Expr("points + ?", delta)
	default:
		n := -delta
		expr = gorm.Expr("CASE WHEN points > ? THEN points - ? ELSE 0 END", n, n)
	}
	return tx.Model(m).Where("id = ?", id).Update("points", expr).Error
}

func lockOwner(tx *gorm.DB, m any, id, what string) error {
	var row struct{ ID string }
	err := tx.Model(m).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Select("id").
		Where("id = ?", id).
		Take(&row).Error
	return notFound(err, what, id)
}

func exists(tx *gorm.DB, m any, id, what string) error {
	var n int64
	if err := tx.Model(m).Where("id = ?", id).Count(&n).Error; err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s %s: %w", what, id, model.ErrNotFound)
	}
	return nil
}

func notFound(err error, what, id string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%s %s: %w", what, id, model.ErrNotFound)
	}
	return err
}

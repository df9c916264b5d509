package habit

import (
	"context"
	"time"

	"studyforest/internal/model"

	"gorm.io/gorm"
)

const defaultResetBatch = 200

// ResetTodayChecks clears the checkbox of the current weekday on every active
// habit. Closed habits (end date set) are not visited and keep their checks
// as history. Rows are written one by one; a row that fails is logged,
// counted in Failed and skipped, and the sweep goes on.
func (s *Service) ResetTodayChecks(ctx context.Context, now time.Time) (model.ResetSummary, error) {
	loc := s.Location
	if loc == nil {
		loc = time.Local
	}
	sum := model.ResetSummary{Day: model.WeekdayName(now.In(loc).Weekday())}

	size := s.BatchSize
	if size <= 0 {
		size = defaultResetBatch
	}

	var batch []model.Habit
	res := s.DB.WithContext(ctx).
		Where("end_date IS NULL").
		FindInBatches(&batch, size, func(_ *gorm.DB, _ int) error {
			for i := range batch {
				sum.Scanned++
				h := &batch[i]
				if !h.Days()[sum.Day] {
					continue
				}

				if err := s.clearDay(ctx, h.ID, sum.Day); err != nil {
					sum.Failed++
					s.Log.Warn().Err(err).Str("habit", h.ID).Str("day", sum.Day).Msg("habit check reset failed")
					continue
				}
				sum.Reset++
			}
			return ctx.Err()
		})
	if res.Error != nil {
		return sum, res.Error
	}
	return sum, nil
}

func (s *Service) clearDay(ctx context.Context, id, day string) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var h model.Habit
		if err := lockHabit(tx, id, &h); err != nil {
			return err
		}
		days := h.Days()
		if !days[day] {
			return nil
		}
		days[day] = false
		return setDays(tx, id, days)
	})
}

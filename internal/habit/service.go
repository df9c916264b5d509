// Package habit manages the per-study habit checklist.
package habit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"studyforest/internal/auth"
	"studyforest/internal/model"
	"studyforest/internal/study"

	"github.com/rs/zerolog"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// RemovalPolicy decides what removing a habit does. One policy applies to the
// whole deployment.
type RemovalPolicy string

const (
	// RemoveClose stamps the end date and keeps the habit for history.
	RemoveClose RemovalPolicy = "close"
	// RemoveDelete deletes the row and drops it from the study.
	RemoveDelete RemovalPolicy = "delete"
)

func ParseRemovalPolicy(s string) (RemovalPolicy, error) {
	switch RemovalPolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", RemoveClose:
		return RemoveClose, nil
	case RemoveDelete:
		return RemoveDelete, nil
	}
	return "", fmt.Errorf("unknown habit removal policy %q", s)
}

type State int

const (
	Active State = iota
	Closed
)

func (s State) String() string {
	if s == Closed {
		return "closed"
	}
	return "active"
}

func StateOf(h *model.Habit) State {
	if h.EndDate != nil {
		return Closed
	}
	return Active
}

type Service struct {
	DB       *gorm.DB
	Policy   RemovalPolicy
	Location *time.Location
	Log      zerolog.Logger
	// BatchSize bounds the rows loaded per step of the reset sweep.
	BatchSize int
	Now       func() time.Time
}

type ListFilter struct {
	StudyID       string
	IncludeClosed bool
}

func (s *Service) Create(ctx context.Context, studyID, title string) (model.Habit, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return model.Habit{}, model.Invalid("title", "required")
	}

	h := model.Habit{ID: model.NewID(), StudyID: studyID, Title: title}
	h.SetDays(model.NewCheckedDays())

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := study.AddChild(tx, studyID, h.ID, study.HabitChild); err != nil {
			return err
		}
		return tx.Create(&h).Error
	})
	if err != nil {
		return model.Habit{}, err
	}
	return h, nil
}

func (s *Service) Get(ctx context.Context, id string) (model.Habit, error) {
	var h model.Habit
	if err := s.DB.WithContext(ctx).Where("id = ?", id).First(&h).Error; err != nil {
		return model.Habit{}, notFound(err, "habit", id)
	}
	return h, nil
}

func (s *Service) List(ctx context.Context, f ListFilter) ([]model.Habit, error) {
	q := s.DB.WithContext(ctx).Model(&model.Habit{})
	if f.StudyID != "" {
		q = q.Where("study_id = ?", f.StudyID)
	}
	if !f.IncludeClosed {
		q = q.Where("end_date IS NULL")
	}
	out := []model.Habit{}
	err := q.Order("created_at asc, id asc").Find(&out).Error
	return out, err
}

// Update renames an active habit. A nil title leaves it unchanged.
func (s *Service) Update(ctx context.Context, id string, title *string) (model.Habit, error) {
	var t string
	if title != nil {
		t = strings.TrimSpace(*title)
		if t == "" {
			return model.Habit{}, model.Invalid("title", "must not be empty")
		}
	}

	var h model.Habit
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockActive(tx, id, &h); err != nil {
			return err
		}
		if title == nil {
			return nil
		}
		if err := tx.Model(&model.Habit{}).Where("id = ?", id).Update("title", t).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", id).First(&h).Error
	})
	if err != nil {
		return model.Habit{}, err
	}
	return h, nil
}

// Toggle flips the checkbox of one weekday.
func (s *Service) Toggle(ctx context.Context, id, day string) (model.Habit, error) {
	if !model.IsWeekdayName(day) {
		return model.Habit{}, model.Invalid("day", "must be one of "+strings.Join(model.WeekdayNames[:], ","))
	}

	var h model.Habit
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockActive(tx, id, &h); err != nil {
			return err
		}
		days := h.Days()
		days[day] = !days[day]
		if err := setDays(tx, id, days); err != nil {
			return err
		}
		return tx.Where("id = ?", id).First(&h).Error
	})
	if err != nil {
		return model.Habit{}, err
	}
	return h, nil
}

// Remove applies the removal policy to one habit.
func (s *Service) Remove(ctx context.Context, id string) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var h model.Habit
		if s.Policy == RemoveDelete {
			if err := lockHabit(tx, id, &h); err != nil {
				return err
			}
			if err := tx.Where("id = ?", id).Delete(&model.Habit{}).Error; err != nil {
				return err
			}
			return study.RemoveChild(tx, h.StudyID, id, study.HabitChild)
		}

		if err := lockActive(tx, id, &h); err != nil {
			return err
		}
		return tx.Model(&model.Habit{}).Where("id = ?", id).Update("end_date", s.now()).Error
	})
}

// ReplaceAll removes the study's current habits by policy and creates one
// habit per title, in order.
func (s *Service) ReplaceAll(ctx context.Context, studyID string, titles []string) ([]model.Habit, error) {
	clean := make([]string, 0, len(titles))
	for i, t := range titles {
		t = strings.TrimSpace(t)
		if t == "" {
			return nil, model.Invalid(fmt.Sprintf("titles[%d]", i), "must not be empty")
		}
		clean = append(clean, t)
	}

	out := make([]model.Habit, 0, len(clean))
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var st model.Study
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", studyID).
			First(&st).Error; err != nil {
			return notFound(err, "study", studyID)
		}

		if s.Policy == RemoveDelete {
			if err := tx.Where("study_id = ?", studyID).Delete(&model.Habit{}).Error; err != nil {
				return err
			}
			if err := tx.Model(&model.Study{}).Where("id = ?", studyID).
				Update("habit_ids", model.IDList{}).Error; err != nil {
				return err
			}
		} else {
			if err := tx.Model(&model.Habit{}).
				Where("study_id = ? AND end_date IS NULL", studyID).
				Update("end_date", s.now()).Error; err != nil {
				return err
			}
		}

		for _, t := range clean {
			h := model.Habit{ID: model.NewID(), StudyID: studyID, Title: t}
			h.SetDays(model.NewCheckedDays())
			if err := tx.Create(&h).Error; err != nil {
				return err
			}
			if err := study.AddChild(tx, studyID, h.ID, study.HabitChild); err != nil {
				return err
			}
			out = append(out, h)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Today returns the active habits of a study, in collection order, after
// checking the study password.
func (s *Service) Today(ctx context.Context, studyID, password string) ([]model.Habit, error) {
	db := s.DB.WithContext(ctx)

	var st model.Study
	if err := db.Where("id = ?", studyID).First(&st).Error; err != nil {
		return nil, notFound(err, "study", studyID)
	}
	if !auth.ComparePassword(st.PasswordHash, password) {
		return nil, model.ErrUnauthorized
	}

	out := []model.Habit{}
	if len(st.HabitIDs) == 0 {
		return out, nil
	}
	var rows []model.Habit
	if err := db.Where("id IN ? AND end_date IS NULL", []string(st.HabitIDs)).Find(&rows).Error; err != nil {
		return nil, err
	}
	byID := make(map[string]model.Habit, len(rows))
	for _, h := range rows {
		byID[h.ID] = h
	}
	for _, id := range st.HabitIDs {
		if h, ok := byID[id]; ok {
			out = append(out, h)
		}
	}
	return out, nil
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func lockHabit(tx *gorm.DB, id string, h *model.Habit) error {
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(h).Error; err != nil {
		return notFound(err, "habit", id)
	}
	return nil
}

func lockActive(tx *gorm.DB, id string, h *model.Habit) error {
	if err := lockHabit(tx, id, h); err != nil {
		return err
	}
	if StateOf(h) == Closed {
		return model.Invalid("id", "habit is closed")
	}
	return nil
}

func setDays(tx *gorm.DB, id string, days model.CheckedDays) error {
	return tx.Model(&model.Habit{}).Where("id = ?", id).
		Update("checked_days", datatypes.NewJSONType(days.Normalize())).Error
}

func notFound(err error, what, id string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%s %s: %w", what, id, model.ErrNotFound)
	}
	return err
}

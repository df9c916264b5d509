// Package emoji keeps per-study reaction counters.
package emoji

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"studyforest/internal/model"
	"studyforest/internal/study"

	"golang.org/x/text/unicode/norm"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const maxTokenRunes = 32

type Action string

const (
	Increase Action = "increase"
	Decrease Action = "decrease"
)

func ParseAction(s string) (Action, error) {
	switch a := Action(strings.ToLower(strings.TrimSpace(s))); a {
	case Increase, Decrease:
		return a, nil
	}
	return "", model.Invalid("action", "must be increase or decrease")
}

// Normalize trims a reaction token and puts it in NFC form so the same
// emoji typed on different platforms counts once.
func Normalize(token string) (string, error) {
	if !utf8.ValidString(token) {
		return "", model.Invalid("emoji", "invalid utf-8")
	}
	t := norm.NFC.String(strings.TrimSpace(token))
	if t == "" {
		return "", model.Invalid("emoji", "required")
	}
	if utf8.RuneCountInString(t) > maxTokenRunes {
		return "", model.Invalid("emoji", fmt.Sprintf("at most %d characters", maxTokenRunes))
	}
	return t, nil
}

type Service struct {
	DB *gorm.DB
}

type UpdateInput struct {
	Emoji *string
	Count *int64
}

// React counts one reaction up or down. A decrease never goes below zero and
// a decrease on an unseen token leaves it at zero.
func (s *Service) React(ctx context.Context, studyID, token string, action Action) (model.Emoji, error) {
	var expr clause.Expr
	initial := int64(0)
	switch action {
	case Increase:
		expr = gorm.Expr("emojis.count + 1")
		initial = 1
	case Decrease:
		expr = gorm.Expr("CASE WHEN emojis.count > 0 THEN emojis.count - 1 ELSE 0 END")
	default:
		return model.Emoji{}, model.Invalid("action", "must be increase or decrease")
	}

	return s.upsert(ctx, studyID, token, initial, clause.OnConflict{
		Columns: []clause.Column{{Name: "study_id"}, {Name: "emoji"}},
		DoUpdates: clause.Assignments(map[string]any{
			"count":      expr,
			"updated_at": time.Now(),
		}),
	})
}

// Create registers a token with a zero count, or returns the existing one.
func (s *Service) Create(ctx context.Context, studyID, token string) (model.Emoji, error) {
	return s.upsert(ctx, studyID, token, 0, clause.OnConflict{
		Columns:   []clause.Column{{Name: "study_id"}, {Name: "emoji"}},
		DoNothing: true,
	})
}

func (s *Service) upsert(ctx context.Context, studyID, token string, initial int64, onConflict clause.OnConflict) (model.Emoji, error) {
	token, err := Normalize(token)
	if err != nil {
		return model.Emoji{}, err
	}

	var e model.Emoji
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var st model.Study
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Select("id").
			Where("id = ?", studyID).
			Take(&st).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("study %s: %w", studyID, model.ErrNotFound)
			}
			return err
		}

		row := model.Emoji{ID: model.NewID(), StudyID: studyID, Emoji: token, Count: initial}
		if err := tx.Clauses(onConflict).Create(&row).Error; err != nil {
			return err
		}
		if err := tx.Where("study_id = ? AND emoji = ?", studyID, token).First(&e).Error; err != nil {
			return err
		}

		if e.ID == row.ID {
			return study.AddChild(tx, studyID, e.ID, study.EmojiChild)
		}
		return nil
	})
	if err != nil {
		return model.Emoji{}, err
	}
	return e, nil
}

// List returns every counter of a study, or only those above zero ordered by
// count when activeOnly is set.
func (s *Service) List(ctx context.Context, studyID string, activeOnly bool) ([]model.Emoji, error) {
	q := s.DB.WithContext(ctx).Model(&model.Emoji{})
	if studyID != "" {
		q = q.Where("study_id = ?", studyID)
	}
	if activeOnly {
		q = q.Where("count > 0").Order("count desc, created_at asc")
	} else {
		q = q.Order("created_at asc, id asc")
	}
	out := []model.Emoji{}
	err := q.Find(&out).Error
	return out, err
}

func (s *Service) Get(ctx context.Context, id string) (model.Emoji, error) {
	var e model.Emoji
	if err := s.DB.WithContext(ctx).Where("id = ?", id).First(&e).Error; err != nil {
		return model.Emoji{}, notFound(err, id)
	}
	return e, nil
}

func (s *Service) Update(ctx context.Context, id string, in UpdateInput) (model.Emoji, error) {
	updates := map[string]any{}
	if in.Count != nil {
		if *in.Count < 0 {
			return model.Emoji{}, model.Invalid("count", "must be zero or greater")
		}
		updates["count"] = *in.Count
	}
	var token string
	if in.Emoji != nil {
		t, err := Normalize(*in.Emoji)
		if err != nil {
			return model.Emoji{}, err
		}
		token = t
		updates["emoji"] = t
	}

	var e model.Emoji
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", id).
			First(&e).Error; err != nil {
			return notFound(err, id)
		}
		if len(updates) == 0 {
			return nil
		}

		if token != "" && token != e.Emoji {
			var n int64
			if err := tx.Model(&model.Emoji{}).
				Where("study_id = ? AND emoji = ? AND id <> ?", e.StudyID, token, id).
				Count(&n).Error; err != nil {
				return err
			}
			if n > 0 {
				return model.Invalid("emoji", "already used in this study")
			}
		}

		if err := tx.Model(&model.Emoji{}).Where("id = ?", id).Updates(updates).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", id).First(&e).Error
	})
	if err != nil {
		return model.Emoji{}, err
	}
	return e, nil
}

// Delete removes the counter and drops it from its study.
func (s *Service) Delete(ctx context.Context, id string) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var e model.Emoji
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", id).
			First(&e).Error; err != nil {
			return notFound(err, id)
		}
		if err := tx.Where("id = ?", id).Delete(&model.Emoji{}).Error; err != nil {
			return err
		}
		return study.RemoveChild(tx, e.StudyID, id, study.EmojiChild)
	})
}

func notFound(err error, id string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("emoji %s: %w", id, model.ErrNotFound)
	}
	return err
}

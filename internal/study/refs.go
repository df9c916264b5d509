package study

import (
	"errors"
	"fmt"

	"studyforest/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ChildKind selects which id collection of a study is touched.
type ChildKind int

const (
	HabitChild ChildKind = iota
	EmojiChild
)

func (k ChildKind) column() string {
	if k == EmojiChild {
		return "emoji_ids"
	}
	return "habit_ids"
}

func (k ChildKind) list(st *model.Study) model.IDList {
	if k == EmojiChild {
		return st.EmojiIDs
	}
	return st.HabitIDs
}

// AddChild appends childID to the study's collection. It must run inside the
// transaction that creates the child row. Adding an id twice is a no-op.
func AddChild(tx *gorm.DB, studyID, childID string, kind ChildKind) error {
	var st model.Study
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", studyID).
		First(&st).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("study %s: %w", studyID, model.ErrNotFound)
		}
		return err
	}

	next, changed := kind.list(&st).With(childID)
	if !changed {
		return nil
	}
	return tx.Model(&model.Study{}).Where("id = ?", studyID).Update(kind.column(), next).Error
}

// RemoveChild pulls childID from the study's collection. A missing study or
// id is not an error.
func RemoveChild(tx *gorm.DB, studyID, childID string, kind ChildKind) error {
	var st model.Study
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", studyID).
		First(&st).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	next, changed := kind.list(&st).Without(childID)
	if !changed {
		return nil
	}
	return tx.Model(&model.Study{}).Where("id = ?", studyID).Update(kind.column(), next).Error
}

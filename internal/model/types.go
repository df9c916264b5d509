package model

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type User struct {
	ID        string    `gorm:"primaryKey;size:36"`
	Username  string    `gorm:"uniqueIndex;not null"`
	Points    int64     `gorm:"not null;default:0"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

// Study is the root aggregate. HabitIDs and EmojiIDs mirror the child rows
// so a study can be rendered without a join.
type Study struct {
	ID           string    `gorm:"primaryKey;size:36"`
	Title        string    `gorm:"not null"`
	Description  string    `gorm:"not null;default:''"`
	Nickname     string    `gorm:"not null"`
	PasswordHash string    `gorm:"not null"`
	Bg           int       `gorm:"not null;default:0"`
	Points       int64     `gorm:"index;not null;default:0"`
	HabitIDs     IDList    `gorm:"not null;default:'{}'"`
	EmojiIDs     IDList    `gorm:"not null;default:'{}'"`
	CreatedAt    time.Time `gorm:"index;not null"`
	UpdatedAt    time.Time `gorm:"not null"`
}

type Habit struct {
	ID          string                           `gorm:"primaryKey;size:36"`
	StudyID     string                           `gorm:"index;size:36;not null"`
	Title       string                           `gorm:"not null"`
	CheckedDays datatypes.JSONType[CheckedDays] `gorm:"not null"`
	EndDate     *time.Time
	CreatedAt   time.Time `gorm:"not null"`
	UpdatedAt   time.Time `gorm:"not null"`
}

// Days returns the checkbox state with every weekday key present.
func (h *Habit) Days() CheckedDays {
	return h.CheckedDays.Data().Normalize()
}

func (h *Habit) SetDays(d CheckedDays) {
	h.CheckedDays = datatypes.NewJSONType(d.Normalize())
}

// Emoji is a reaction counter. (study_id, emoji) is unique.
type Emoji struct {
	ID        string    `gorm:"primaryKey;size:36"`
	StudyID   string    `gorm:"uniqueIndex:uq_emojis_study_emoji;size:36;not null"`
	Emoji     string    `gorm:"uniqueIndex:uq_emojis_study_emoji;not null"`
	Count     int64     `gorm:"not null;default:0"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

// Timer is a recorded study session. EarnedPoints is the amount actually
// credited to the owners, not a derived value.
type Timer struct {
	ID           string    `gorm:"primaryKey;size:36"`
	StudyID      string    `gorm:"index;size:36;not null"`
	UserID       *string   `gorm:"index;size:36"`
	Duration     int64     `gorm:"not null"`
	EarnedPoints int64     `gorm:"not null;default:0"`
	CreatedAt    time.Time `gorm:"index;not null"`
	UpdatedAt    time.Time `gorm:"not null"`
}

func (u *User) BeforeCreate(*gorm.DB) error {
	if u.ID == "" {
		u.ID = NewID()
	}
	return nil
}

func (s *Study) BeforeCreate(*gorm.DB) error {
	if s.ID == "" {
		s.ID = NewID()
	}
	return nil
}

func (h *Habit) BeforeCreate(*gorm.DB) error {
	if h.ID == "" {
		h.ID = NewID()
	}
	h.SetDays(h.CheckedDays.Data())
	return nil
}

func (e *Emoji) BeforeCreate(*gorm.DB) error {
	if e.ID == "" {
		e.ID = NewID()
	}
	return nil
}

func (t *Timer) BeforeCreate(*gorm.DB) error {
	if t.ID == "" {
		t.ID = NewID()
	}
	return nil
}

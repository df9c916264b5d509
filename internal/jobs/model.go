package jobs

import (
	"time"

	"gorm.io/datatypes"
)

const (
	TypeHabitCheckReset = "HABIT_CHECK_RESET"

	StatusPending = "PENDING"
	StatusRunning = "RUNNING"
	StatusDone    = "DONE"
	StatusFailed  = "FAILED"
)

type Job struct {
	ID uint64 `gorm:"primaryKey"`

	Type    string         `gorm:"not null"` // HABIT_CHECK_RESET
	Payload datatypes.JSON `gorm:"not null"`

	RunAt  time.Time `gorm:"index;not null"`
	Status string    `gorm:"index;not null;default:'PENDING'"` // PENDING/RUNNING/DONE/FAILED

	Attempts    int `gorm:"not null;default:0"`
	MaxAttempts int `gorm:"not null;default:8"`

	LockedBy *string
	LockedAt *time.Time

	LastError *string

	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

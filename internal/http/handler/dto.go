package handler

import (
	"time"

	"studyforest/internal/habit"
	"studyforest/internal/model"
)

type studyDTO struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Nickname    string    `json:"nickname"`
	Bg          int       `json:"bg"`
	Points      int64     `json:"points"`
	HabitIDs    []string  `json:"habitIds"`
	EmojiIDs    []string  `json:"emojiIds"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

type studyDetailDTO struct {
	studyDTO
	Habits []habitDTO `json:"habits"`
	Emojis []emojiDTO `json:"emojis"`
}

type habitDTO struct {
	ID          string            `json:"id"`
	StudyID     string            `json:"studyId"`
	Title       string            `json:"title"`
	CheckedDays model.CheckedDays `json:"checkedDays"`
	State       string            `json:"state"`
	EndDate     *time.Time        `json:"endDate"`
	CreatedAt   time.Time         `json:"createdAt"`
	UpdatedAt   time.Time         `json:"updatedAt"`
}

type emojiDTO struct {
	ID        string    `json:"id"`
	StudyID   string    `json:"studyId"`
	Emoji     string    `json:"emoji"`
	Count     int64     `json:"count"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type timerDTO struct {
	ID           string    `json:"id"`
	StudyID      string    `json:"studyId"`
	UserID       *string   `json:"userId"`
	Duration     int64     `json:"duration"`
	EarnedPoints int64     `json:"earnedPoints"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

type userDTO struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Points    int64     `json:"points"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type statsDTO struct {
	TotalDuration int64 `json:"totalDuration"`
	TotalSessions int64 `json:"totalSessions"`
	TotalPoints   int64 `json:"totalPoints"`
}

func toStudyDTO(s model.Study) studyDTO {
	habits := []string(s.HabitIDs)
	if habits == nil {
		habits = []string{}
	}
	emojis := []string(s.EmojiIDs)
	if emojis == nil {
		emojis = []string{}
	}
	return studyDTO{
		ID:          s.ID,
		Title:       s.Title,
		Description: s.Description,
		Nickname:    s.Nickname,
		Bg:          s.Bg,
		Points:      s.Points,
		HabitIDs:    habits,
		EmojiIDs:    emojis,
		CreatedAt:   s.CreatedAt,
		UpdatedAt:   s.UpdatedAt,
	}
}

func toStudyDTOs(in []model.Study) []studyDTO {
	out := make([]studyDTO, 0, len(in))
	for _, s := range in {
		out = append(out, toStudyDTO(s))
	}
	return out
}

func toHabitDTO(h model.Habit) habitDTO {
	return habitDTO{
		ID:          h.ID,
		StudyID:     h.StudyID,
		Title:       h.Title,
		CheckedDays: h.Days(),
		State:       habit.StateOf(&h).String(),
		EndDate:     h.EndDate,
		CreatedAt:   h.CreatedAt,
		UpdatedAt:   h.UpdatedAt,
	}
}

func toHabitDTOs(in []model.Habit) []habitDTO {
	out := make([]habitDTO, 0, len(in))
	for _, h := range in {
		out = append(out, toHabitDTO(h))
	}
	return out
}

func toEmojiDTO(e model.Emoji) emojiDTO {
	return emojiDTO{
		ID:        e.ID,
		StudyID:   e.StudyID,
		Emoji:     e.Emoji,
		Count:     e.Count,
		CreatedAt: e.CreatedAt,
		UpdatedAt: e.UpdatedAt,
	}
}

func toEmojiDTOs(in []model.Emoji) []emojiDTO {
	out := make([]emojiDTO, 0, len(in))
	for _, e := range in {
		out = append(out, toEmojiDTO(e))
	}
	return out
}

func toTimerDTO(t model.Timer) timerDTO {
	return timerDTO{
		ID:           t.ID,
		StudyID:      t.StudyID,
		UserID:       t.UserID,
		Duration:     t.Duration,
		EarnedPoints: t.EarnedPoints,
		CreatedAt:    t.CreatedAt,
		UpdatedAt:    t.UpdatedAt,
	}
}

func toUserDTO(u model.User) userDTO {
	return userDTO{
		ID:        u.ID,
		Username:  u.Username,
		Points:    u.Points,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

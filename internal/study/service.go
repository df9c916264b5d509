package study

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"studyforest/internal/auth"
	"studyforest/internal/ledger"
	"studyforest/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	DefaultLimit = 6
	MaxLimit     = 100
	maxRecent    = 100
)

type Service struct {
	DB     *gorm.DB
	Ledger *ledger.Service
}

type CreateInput struct {
	Title       string
	Description string
	Nickname    string
	Password    string
	Bg          int
}

// UpdateInput carries optional fields; nil means unchanged.
type UpdateInput struct {
	Title       *string
	Description *string
	Nickname    *string
	Password    *string
	Bg          *int
}

type ListInput struct {
	Offset  int
	Limit   int
	Keyword string
	SortKey string
}

type Page struct {
	Items      []model.Study
	TotalCount int64
}

// Detail is a study with its active habits, in collection order, and its
// active emojis, most used first.
type Detail struct {
	Study  model.Study
	Habits []model.Habit
	Emojis []model.Emoji
}

var sortOrders = map[string]string{
	"":            "created_at desc, id desc",
	"newest":      "created_at desc, id desc",
	"oldest":      "created_at asc, id asc",
	"mostPoints":  "points desc, created_at desc",
	"leastPoints": "points asc, created_at desc",
}

func (s *Service) Create(ctx context.Context, in CreateInput) (model.Study, error) {
	in.Title = strings.TrimSpace(in.Title)
	in.Nickname = strings.TrimSpace(in.Nickname)
	in.Description = strings.TrimSpace(in.Description)

	verr := &model.ValidationError{}
	if in.Title == "" {
		verr.Add("title", "required")
	}
	if in.Nickname == "" {
		verr.Add("nickname", "required")
	}
	if in.Password == "" {
		verr.Add("password", "required")
	} else if len(in.Password) > auth.MaxPasswordBytes {
		verr.Add("password", "at most 72 bytes")
	}
	if !validBg(in.Bg) {
		verr.Add("bg", "unknown theme")
	}
	if verr.HasErrors() {
		return model.Study{}, verr
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return model.Study{}, err
	}

	st := model.Study{
		Title:        in.Title,
		Description:  in.Description,
		Nickname:     in.Nickname,
		PasswordHash: hash,
		Bg:           in.Bg,
		HabitIDs:     model.IDList{},
		EmojiIDs:     model.IDList{},
	}
	if err := s.DB.WithContext(ctx).Create(&st).Error; err != nil {
		return model.Study{}, err
	}
	return st, nil
}

func (s *Service) Get(ctx context.Context, id string) (Detail, error) {
	db := s.DB.WithContext(ctx)

	var st model.Study
	if err := db.Where("id = ?", id).First(&st).Error; err != nil {
		return Detail{}, notFound(err, id)
	}

	d := Detail{Study: st, Habits: []model.Habit{}, Emojis: []model.Emoji{}}

	if len(st.HabitIDs) > 0 {
		var habits []model.Habit
		if err := db.Where("id IN ? AND end_date IS NULL", []string(st.HabitIDs)).
			Find(&habits).Error; err != nil {
			return Detail{}, err
		}
		byID := make(map[string]model.Habit, len(habits))
		for _, h := range habits {
			byID[h.ID] = h
		}
		for _, hid := range st.HabitIDs {
			if h, ok := byID[hid]; ok {
				d.Habits = append(d.Habits, h)
			}
		}
	}

	if err := db.Where("study_id = ? AND count > 0", id).
		Order("count desc, created_at asc").
		Find(&d.Emojis).Error; err != nil {
		return Detail{}, err
	}
	return d, nil
}

func (s *Service) List(ctx context.Context, in ListInput) (Page, error) {
	verr := &model.ValidationError{}
	if in.Offset < 0 {
		verr.Add("offset", "must be zero or greater")
	}
	if in.Limit < 0 || in.Limit > MaxLimit {
		verr.Add("limit", fmt.Sprintf("must be between 1 and %d", MaxLimit))
	}
	order, ok := sortOrders[in.SortKey]
	if !ok {
		verr.Add("sortKey", "must be one of newest, oldest, mostPoints, leastPoints")
	}
	if verr.HasErrors() {
		return Page{}, verr
	}
	if in.Limit == 0 {
		in.Limit = DefaultLimit
	}

	q := s.DB.WithContext(ctx).Model(&model.Study{})
	if kw := strings.TrimSpace(in.Keyword); kw != "" {
		pat := "%" + escapeLike(strings.ToLower(kw)) + "%"
		q = q.Where(
			`lower(title) LIKE ? ESCAPE '\' OR lower(nickname) LIKE ? ESCAPE '\' OR lower(description) LIKE ? ESCAPE '\'`,
			pat, pat, pat,
		)
	}

	q = q.Session(&gorm.Session{})

	var p Page
	if err := q.Count(&p.TotalCount).Error; err != nil {
		return Page{}, err
	}
	if err := q.Order(order).Offset(in.Offset).Limit(in.Limit).Find(&p.Items).Error; err != nil {
		return Page{}, err
	}
	return p, nil
}

func (s *Service) Update(ctx context.Context, id string, in UpdateInput) (model.Study, error) {
	updates := map[string]any{}
	verr := &model.ValidationError{}

	if in.Title != nil {
		if t := strings.TrimSpace(*in.Title); t == "" {
			verr.Add("title", "must not be empty")
		} else {
			updates["title"] = t
		}
	}
	if in.Nickname != nil {
		if n := strings.TrimSpace(*in.Nickname); n == "" {
			verr.Add("nickname", "must not be empty")
		} else {
			updates["nickname"] = n
		}
	}
	if in.Description != nil {
		updates["description"] = strings.TrimSpace(*in.Description)
	}
	if in.Bg != nil {
		if !validBg(*in.Bg) {
			verr.Add("bg", "unknown theme")
		} else {
			updates["bg"] = *in.Bg
		}
	}
	if in.Password != nil {
		if *in.Password == "" {
			verr.Add("password", "must not be empty")
		} else if len(*in.Password) > auth.MaxPasswordBytes {
			verr.Add("password", "at most 72 bytes")
		} else {
			hash, err := auth.HashPassword(*in.Password)
			if err != nil {
				return model.Study{}, err
			}
			updates["password_hash"] = hash
		}
	}
	if verr.HasErrors() {
		return model.Study{}, verr
	}

	var st model.Study
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", id).
			First(&st).Error; err != nil {
			return notFound(err, id)
		}
		if len(updates) == 0 {
			return nil
		}
		if err := tx.Model(&model.Study{}).Where("id = ?", id).Updates(updates).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", id).First(&st).Error
	})
	if err != nil {
		return model.Study{}, err
	}
	return st, nil
}

// Delete removes the study and everything it owns.
func (s *Service) Delete(ctx context.Context, id string) error {
	return s.Ledger.DeleteOwnerCascade(ctx, id)
}

// CheckPassword returns model.ErrUnauthorized when password does not match.
func (s *Service) CheckPassword(ctx context.Context, id, password string) error {
	var st model.Study
	if err := s.DB.WithContext(ctx).
		Select("id", "password_hash").
		Where("id = ?", id).
		First(&st).Error; err != nil {
		return notFound(err, id)
	}
	if !auth.ComparePassword(st.PasswordHash, password) {
		return model.ErrUnauthorized
	}
	return nil
}

// Recent looks up studies by id in request order. Unknown ids are skipped.
func (s *Service) Recent(ctx context.Context, ids []string) ([]model.Study, error) {
	if len(ids) > maxRecent {
		return nil, model.Invalid("ids", fmt.Sprintf("at most %d ids", maxRecent))
	}
	out := []model.Study{}
	if len(ids) == 0 {
		return out, nil
	}

	var rows []model.Study
	if err := s.DB.WithContext(ctx).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, err
	}
	byID := make(map[string]model.Study, len(rows))
	for _, st := range rows {
		byID[st.ID] = st
	}

	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		st, ok := byID[id]
		if !ok || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, st)
	}
	return out, nil
}

func validBg(bg int) bool {
	return bg >= 0 && bg < len(themes)
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

func notFound(err error, id string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("study %s: %w", id, model.ErrNotFound)
	}
	return err
}

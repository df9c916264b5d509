package user

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"studyforest/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Service struct {
	DB *gorm.DB
}

func (s *Service) Create(ctx context.Context, username string, points int64) (model.User, error) {
	username = strings.TrimSpace(username)
	verr := &model.ValidationError{}
	if username == "" {
		verr.Add("username", "required")
	}
	if points < 0 {
		verr.Add("points", "must be zero or greater")
	}
	if verr.HasErrors() {
		return model.User{}, verr
	}

	u := model.User{Username: username, Points: points}
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&model.User{}).Where("username = ?", username).Count(&n).Error; err != nil {
			return err
		}
		if n > 0 {
			return model.Invalid("username", "already taken")
		}
		return tx.Create(&u).Error
	})
	if err != nil {
		return model.User{}, err
	}
	return u, nil
}

func (s *Service) Get(ctx context.Context, id string) (model.User, error) {
	var u model.User
	if err := s.DB.WithContext(ctx).Where("id = ?", id).First(&u).Error; err != nil {
		return model.User{}, notFound(err, id)
	}
	return u, nil
}

func (s *Service) List(ctx context.Context) ([]model.User, error) {
	out := []model.User{}
	err := s.DB.WithContext(ctx).Order("created_at asc, id asc").Find(&out).Error
	return out, err
}

// SetPoints overwrites the balance. It is an administrative correction and
// bypasses the session ledger.
func (s *Service) SetPoints(ctx context.Context, id string, points int64) (model.User, error) {
	if points < 0 {
		return model.User{}, model.Invalid("points", "must be zero or greater")
	}
	return s.update(ctx, id, points)
}

// AddPoints moves the balance by delta, stopping at zero.
func (s *Service) AddPoints(ctx context.Context, id string, delta int64) (model.User, error) {
	var expr clause.Expr
	if delta >= 0 {
		expr = gorm.Expr("points + ?", delta)
	} else {
		expr = gorm.Expr("CASE WHEN points > ? THEN points - ? ELSE 0 END", -delta, -delta)
	}
	return s.update(ctx, id, expr)
}

func (s *Service) update(ctx context.Context, id string, points any) (model.User, error) {
	var u model.User
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&model.User{}).Where("id = ?", id).Update("points", points)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("user %s: %w", id, model.ErrNotFound)
		}
		return tx.Where("id = ?", id).First(&u).Error
	})
	if err != nil {
		return model.User{}, err
	}
	return u, nil
}

// Delete removes the user. Their sessions stay with the study, unowned.
func (s *Service) Delete(ctx context.Context, id string) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var u model.User
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", id).
			First(&u).Error; err != nil {
			return notFound(err, id)
		}
		if err := tx.Model(&model.Timer{}).Where("user_id = ?", id).
			Update("user_id", nil).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", id).Delete(&model.User{}).Error
	})
}

func notFound(err error, id string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("user %s: %w", id, model.ErrNotFound)
	}
	return err
}

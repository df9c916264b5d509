package db

import (
	"fmt"

	"studyforest/internal/jobs"
	"studyforest/internal/model"

	"github.com/rs/zerolog"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func Connect(dsn string, log zerolog.Logger) (*gorm.DB, error) {
	return Open(postgres.Open(dsn), log)
}

func Open(dialector gorm.Dialector, log zerolog.Logger) (*gorm.DB, error) {
	gdb, err := gorm.Open(dialector, &gorm.Config{
		Logger: newQueryLogger(log),
	})
	if err != nil {
		return nil, err
	}
	return gdb, nil
}

func AutoMigrateAndIndexes(gdb *gorm.DB) error {
	// Tables
	if err := gdb.AutoMigrate(
		&model.User{},
		&model.Study{},
		&model.Habit{},
		&model.Emoji{},
		&model.Timer{},
		&jobs.Job{},
	); err != nil {
		return err
	}

	stmts := []string{
		`create index if not exists idx_timers_study_created on timers(study_id, created_at desc);`,
		`create index if not exists idx_timers_user_created on timers(user_id, created_at desc);`,
		`create index if not exists idx_habits_study_created on habits(study_id, created_at);`,
		`create index if not exists idx_jobs_due on jobs(status, run_at);`,
		`create index if not exists idx_jobs_lock on jobs(status, locked_at);`,
		// one live occurrence per recurring job type
		`create unique index if not exists uq_jobs_live_type on jobs(type) where status in ('PENDING','RUNNING');`,
	}

	if gdb.Dialector.Name() == "postgres" {
		stmts = append(stmts,
			`create index if not exists idx_studies_title_lower on studies(lower(title));`,
		)
	}

	for _, s := range stmts {
		if err := gdb.Exec(s).Error; err != nil {
			return fmt.Errorf("index exec failed: %w (sql=%s)", err, s)
		}
	}

	return nil
}

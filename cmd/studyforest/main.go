package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"studyforest/internal/auth"
	"studyforest/internal/config"
	"studyforest/internal/db"
	"studyforest/internal/emoji"
	"studyforest/internal/habit"
	httpx "studyforest/internal/http"
	"studyforest/internal/jobs"
	"studyforest/internal/ledger"
	"studyforest/internal/logger"
	"studyforest/internal/points"
	"studyforest/internal/study"
	"studyforest/internal/user"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

const serviceName = "studyforest"

func main() {
	rootCmd := &cobra.Command{
		Use:           serviceName,
		Short:         "Study and habit tracking backend",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Run the HTTP API and the habit reset worker",
			RunE: func(cmd *cobra.Command, args []string) error {
				return runServe()
			},
		},
		&cobra.Command{
			Use:   "migrate",
			Short: "Create or update tables and indexes",
			RunE: func(cmd *cobra.Command, args []string) error {
				return runMigrate()
			},
		},
	)

	var at string
	resetCmd := &cobra.Command{
		Use:   "reset-checks",
		Short: "Clear today's habit checks once",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runResetChecks(at)
		},
	}
	resetCmd.Flags().StringVar(&at, "at", "", "RFC3339 instant that decides the weekday (default now)")
	rootCmd.AddCommand(resetCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type app struct {
	cfg config.Config
	log zerolog.Logger
	db  *gorm.DB
	loc *time.Location
}

func setup() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	log := logger.New(serviceName, cfg.LogLevel)

	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	gdb, err := db.Connect(cfg.DatabaseURL, log)
	if err != nil {
		return nil, fmt.Errorf("connect db: %w", err)
	}
	return &app{cfg: cfg, log: log, db: gdb, loc: loc}, nil
}

func (a *app) services() (httpx.Services, error) {
	policy, err := points.ByName(a.cfg.PointsPolicy)
	if err != nil {
		return httpx.Services{}, err
	}
	removal, err := habit.ParseRemovalPolicy(a.cfg.HabitRemovalPolicy)
	if err != nil {
		return httpx.Services{}, err
	}

	led := &ledger.Service{DB: a.db, Policy: policy}
	return httpx.Services{
		Studies: &study.Service{DB: a.db, Ledger: led},
		Habits: &habit.Service{
			DB:       a.db,
			Policy:   removal,
			Location: a.loc,
			Log:      a.log.With().Str("component", "habit").Logger(),
		},
		Emojis: &emoji.Service{DB: a.db},
		Ledger: led,
		Users:  &user.Service{DB: a.db},
	}, nil
}

func runMigrate() error {
	a, err := setup()
	if err != nil {
		return err
	}
	if err := db.AutoMigrateAndIndexes(a.db); err != nil {
		return err
	}
	a.log.Info().Msg("migrations applied")
	return nil
}

func runResetChecks(at string) error {
	a, err := setup()
	if err != nil {
		return err
	}
	svc, err := a.services()
	if err != nil {
		return err
	}

	now := time.Now()
	if at != "" {
		now, err = time.Parse(time.RFC3339, at)
		if err != nil {
			return fmt.Errorf("invalid --at: %w", err)
		}
	}

	sum, err := svc.Habits.ResetTodayChecks(context.Background(), now)
	if err != nil {
		return err
	}
	a.log.Info().
		Str("day", sum.Day).
		Int("scanned", sum.Scanned).
		Int("reset", sum.Reset).
		Int("failed", sum.Failed).
		Msg("habit checks reset")
	return nil
}

func runServe() error {
	a, err := setup()
	if err != nil {
		return err
	}
	if err := db.AutoMigrateAndIndexes(a.db); err != nil {
		return err
	}
	svc, err := a.services()
	if err != nil {
		return err
	}
	a.log.Info().
		Str("points_policy", svc.Ledger.Policy.Name()).
		Str("habit_removal", string(svc.Habits.Policy)).
		Str("reset_tz", a.loc.String()).
		Msg("services ready")

	jwtSvc := auth.NewJWT(a.cfg.JWTSecret)
	r := httpx.NewRouter(a.cfg, svc, jwtSvc, a.log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// worker
	host, _ := os.Hostname()
	worker := &jobs.Worker{
		ID:       fmt.Sprintf("%s-%d", host, os.Getpid()),
		Queue:    &jobs.Repo{DB: a.db},
		Habits:   svc.Habits,
		Location: a.loc,
		Poll:     a.cfg.WorkerPollInterval,
		Log:      a.log.With().Str("component", "worker").Logger(),
	}
	if err := worker.EnsureScheduled(ctx); err != nil {
		return fmt.Errorf("schedule habit reset: %w", err)
	}
	go worker.Run(ctx)

	srv := &http.Server{
		Addr:              a.cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.log.Info().Str("addr", a.cfg.HTTPAddr).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// graceful shutdown
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-ch:
	case err := <-errCh:
		return err
	}

	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	a.log.Info().Msg("shutdown complete")
	return nil
}

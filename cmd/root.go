package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/example/reviewplanner/internal/cache"
	"github.com/example/reviewplanner/internal/config"
	"github.com/example/reviewplanner/internal/database"
	"github.com/example/reviewplanner/internal/logging"
	"github.com/example/reviewplanner/internal/scheduler"
	"github.com/example/reviewplanner/internal/service"
	sr "github.com/example/reviewplanner/internal/spaced_repetition"
)

var envFile string

var rootCmd = &cobra.Command{
	Use:           "reviewplanner",
	Short:         "Spaced repetition review planner with a Telegram front end",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "path to a .env file (default: ./.env if present)")
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// app holds the wired components shared by the commands.
type app struct {
	cfg     *config.Config
	log     *logrus.Logger
	db      *sqlx.DB
	users   *database.UserRepository
	planner *scheduler.Planner
	cache   cache.PlanCache
	svc     *service.Service
}

func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load(envFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	log, err := logging.New(cfg.Log, os.Stderr)
	if err != nil {
		return nil, err
	}

	loc, err := cfg.Scheduling.Location()
	if err != nil {
		return nil, err
	}
	planner, err := scheduler.NewPlanner(scheduler.PlannerConfig{
		MaxLookaheadDays: cfg.Scheduling.MaxLookaheadDays,
		Location:         loc,
	})
	if err != nil {
		return nil, err
	}
	engine, err := sr.NewSM2(cfg.SM2, nil)
	if err != nil {
		return nil, err
	}

	db, err := database.Connect(cfg.Database)
	if err != nil {
		return nil, err
	}
	planCache, err := cache.New(ctx, cache.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		TTL:      cfg.Redis.TTL,
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	users := database.NewUserRepository(db)
	svc := service.New(
		database.NewItemRepository(db),
		users,
		database.NewReviewLogRepository(db),
		engine,
		planner,
		planCache,
		service.Options{MaxItemsPerDay: cfg.Scheduling.MaxItemsPerDay, PlanDays: cfg.Scheduling.PlanDays},
		log,
	)
	log.WithFields(logrus.Fields{
		"driver":   cfg.Database.Driver,
		"timezone": loc.String(),
		"cache":    cfg.Redis.Addr != "",
	}).Debug("application wired")

	return &app{
		cfg:     cfg,
		log:     log,
		db:      db,
		users:   users,
		planner: planner,
		cache:   planCache,
		svc:     svc,
	}, nil
}

func (a *app) Close() {
	if err := a.cache.Close(); err != nil {
		a.log.WithError(err).Warn("failed to close plan cache")
	}
	if err := a.db.Close(); err != nil {
		a.log.WithError(err).Warn("failed to close database")
	}
}

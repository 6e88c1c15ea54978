package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"medrecords/pkg/db"
	"medrecords/pkg/telemetry"
	"medrecords/services/api/internal/config"
	"medrecords/services/audit"
	"medrecords/services/identity"
)

const serviceName = "medrecords"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "medrecords",
		Short:         "Medical records service with an append-only audit trail",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.AddCommand(newServeCommand())
	cmd.AddCommand(newMigrateCommand())
	cmd.AddCommand(newAdminCommand())
	cmd.AddCommand(newTrailCommand())
	cmd.AddCommand(newAuditCommand())
	return cmd
}

// app bundles what every command needs: configuration, a logger and the database.
type app struct {
	cfg      config.Config
	logger   zerolog.Logger
	pool     *pgxpool.Pool
	orm      *gorm.DB
	recorder *audit.Recorder
}

func bootstrap(ctx context.Context) (*app, error) {
	cfg, err := config.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	lg, err := telemetry.NewLogger(serviceName, cfg.LogFormat, cfg.LogLevel, os.Stderr)
	if err != nil {
		return nil, err
	}
	log.Logger = lg

	pool, err := db.Open(ctx, cfg.DBDSN)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	orm, err := db.ORM(pool, gormLogLevel(cfg.DBLogLevel))
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("open orm: %w", err)
	}
	recorder, err := audit.NewRecorder(orm)
	if err != nil {
		pool.Close()
		return nil, err
	}

	return &app{cfg: cfg, logger: lg, pool: pool, orm: orm, recorder: recorder}, nil
}

func (a *app) identity() (*identity.Service, error) {
	return identity.NewService(a.orm, a.recorder, identity.Config{
		SigningKey: []byte(a.cfg.SessionKey),
		SessionTTL: a.cfg.SessionTTL,
		SetupKey:   a.cfg.AdminSetupKey,
	})
}

func (a *app) Close() {
	if err := db.Close(a.orm); err != nil {
		a.logger.Error().Err(err).Msg("close orm")
	}
	a.pool.Close()
}

func gormLogLevel(level string) logger.LogLevel {
	switch strings.ToLower(level) {
	case "silent":
		return logger.Silent
	case "error":
		return logger.Error
	case "info":
		return logger.Info
	default:
		return logger.Warn
	}
}

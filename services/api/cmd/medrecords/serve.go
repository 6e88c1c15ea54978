package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/spf13/cobra"

	"medrecords/pkg/bus"
	"medrecords/pkg/db"
	"medrecords/pkg/render"
	gos3 "medrecords/pkg/s3"
	"medrecords/pkg/telemetry"
	"medrecords/services/api"
	"medrecords/services/audit"
	"medrecords/services/evidence"
	"medrecords/services/records"
)

func newServeCommand() *cobra.Command {
	var migrate bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the audit event relay",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context(), migrate)
		},
	}

	cmd.Flags().BoolVar(&migrate, "migrate", true, "Apply pending migrations before serving")
	return cmd
}

func serve(ctx context.Context, migrate bool) error {
	a, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer a.Close()
	logger := a.logger

	cleanup, err := telemetry.Init(ctx, serviceName, a.cfg.OTLPEndpoint)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := cleanup(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("shutdown otel")
		}
	}()

	if migrate {
		if err := db.Migrate(ctx, a.pool); err != nil {
			return err
		}
	}

	idSvc, err := a.identity()
	if err != nil {
		return err
	}
	viewer, err := audit.NewViewer(a.orm)
	if err != nil {
		return err
	}

	var opts []records.Option
	if a.cfg.S3.Endpoint != "" {
		store, err := evidenceStore(ctx, a)
		if err != nil {
			return err
		}
		opts = append(opts, records.WithEvidence(store))
	} else {
		logger.Warn().Msg("S3_ENDPOINT not set; lab slip uploads are disabled")
	}
	recSvc, err := records.NewService(a.orm, a.recorder, opts...)
	if err != nil {
		return err
	}

	if a.cfg.Audit.NATSURL != "" {
		b, err := bus.New(a.cfg.Audit.NATSURL, nats.Name(serviceName))
		if err != nil {
			return err
		}
		defer b.Close()
		if err := b.EnsureStream(ctx, bus.StreamConfig{
			Name:     a.cfg.Audit.Stream,
			Subjects: []string{audit.SubjectRecorded},
			MaxAge:   a.cfg.Audit.StreamMaxAge,
		}); err != nil {
			return err
		}
		relay, err := audit.NewRelay(a.orm, b, audit.RelayConfig{
			Interval: a.cfg.Audit.RelayInterval,
			Batch:    a.cfg.Audit.RelayBatch,
		}, logger.With().Str("component", "audit-relay").Logger())
		if err != nil {
			return err
		}
		go func() { _ = relay.Run(ctx) }()
	} else {
		logger.Warn().Msg("AUDIT_NATS_URL not set; audit events stay in the outbox")
	}

	engine, err := render.New()
	if err != nil {
		return err
	}
	handlers, err := api.New(api.Deps{
		Identity: idSvc,
		Records:  recSvc,
		Trail:    viewer,
		Renderer: engine,
		Ready:    func(ctx context.Context) error { return db.Ping(ctx, a.pool) },
		Logger:   logger,
	}, api.Config{
		AllowedOrigins: a.cfg.AllowedOrigins,
		LoginLimit:     a.cfg.LoginRateLimit,
	})
	if err != nil {
		return err
	}
	router, err := handlers.Routes()
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              a.cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", a.cfg.Addr).Msg("starting medrecords api")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("shutdown server")
	}
	return nil
}

func evidenceStore(ctx context.Context, a *app) (*evidence.Store, error) {
	cfg := a.cfg.S3
	client, err := gos3.New(ctx, gos3.Config{
		Endpoint:       cfg.Endpoint,
		AccessKey:      cfg.AccessKey,
		SecretKey:      cfg.SecretKey,
		Region:         cfg.Region,
		DisableTLS:     cfg.DisableTLS,
		ForcePathStyle: cfg.ForcePathStyle,
		PublicBaseURL:  cfg.PublicBaseURL,
	})
	if err != nil {
		return nil, err
	}
	if err := client.EnsureBucket(ctx, cfg.Bucket); err != nil {
		return nil, err
	}
	return evidence.NewStore(client, evidence.Config{Bucket: cfg.Bucket, PresignTTL: cfg.PresignTTL})
}

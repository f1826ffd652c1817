// Command sweeper purges chat messages older than the retention horizon.
//
// Deployed as a Lambda it sweeps once per scheduled invocation. Run anywhere else
// it stays up as a daemon, sweeping on RETENTION_CRON and serving /metrics.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"clinic-booking/internal/config"
	"clinic-booking/internal/logger"
	"clinic-booking/internal/repository"
	"clinic-booking/internal/retention"
)

func main() {
	_ = godotenv.Load()

	boot := logger.Boot(os.Stderr)
	cfg, err := config.Load()
	if err != nil {
		boot.Fatal().Err(err).Msg("failed to load config")
	}
	log, err := logger.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		boot.Fatal().Err(err).Msg("failed to build logger")
	}
	if err := cfg.RequireStore(); err != nil {
		log.Fatal().Err(err).Msg("invalid config")
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background())
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load AWS config")
	}
	store, err := repository.New(awsdynamodb.NewFromConfig(awsCfg), cfg.TableName)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create repository client")
	}
	sweeper, err := retention.NewSweeper(store, log,
		retention.WithHorizon(cfg.RetentionHorizon),
		retention.WithBatchSize(cfg.RetentionBatchSize),
		retention.WithConcurrency(cfg.RetentionConcurrency),
	)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create retention sweeper")
	}

	if os.Getenv("AWS_LAMBDA_FUNCTION_NAME") != "" {
		lambda.Start(func(ctx context.Context, _ events.CloudWatchEvent) (retention.Report, error) {
			return sweeper.Run(ctx, retention.TriggerSchedule), nil
		})
		return
	}

	loc, err := cfg.Location()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid config")
	}
	scheduler, err := retention.NewScheduler(sweeper, cfg.RetentionCron, loc, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create retention scheduler")
	}
	if err := runDaemon(scheduler, cfg, log); err != nil {
		log.Fatal().Err(err).Msg("sweeper stopped")
	}
}

func runDaemon(scheduler *retention.Scheduler, cfg *config.Config, log zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Addr:              cfg.MetricsAddr(),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("addr", srv.Addr).Msg("metrics listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return scheduler.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

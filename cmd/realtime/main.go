// Command realtime serves the websocket gateway that streams live query
// snapshots to signed-in clients.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"clinic-booking/internal/changefeed"
	"clinic-booking/internal/config"
	"clinic-booking/internal/identity"
	"clinic-booking/internal/livequery"
	"clinic-booking/internal/logger"
	"clinic-booking/internal/realtime"
	"clinic-booking/internal/repository"
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
	for _, check := range []func() error{cfg.RequireStore, cfg.RequireTokens, cfg.RequireChanges} {
		if err := check(); err != nil {
			log.Fatal().Err(err).Msg("invalid config")
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load AWS config")
	}
	store, err := repository.New(awsdynamodb.NewFromConfig(awsCfg), cfg.TableName)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create repository client")
	}

	redisClient, err := changefeed.Connect(ctx, cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to change bus")
	}
	defer redisClient.Close()

	manager, err := livequery.NewManager(store, changefeed.NewSubscriber(redisClient, cfg.ChangeChannelPrefix), log,
		livequery.WithRefreshRate(cfg.FeedRefreshRate))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create live query manager")
	}
	defer manager.Close()

	verifier, err := identity.NewVerifier(ctx, cfg.JWKSURL, cfg.Issuer, cfg.Audience, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create token verifier")
	}
	defer verifier.Close()

	catalog, err := realtime.NewCatalog(store)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create slot catalog")
	}
	gateway, err := realtime.NewGateway(manager, verifier, catalog, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create gateway")
	}

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           gateway.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("addr", srv.Addr).Str("env", cfg.Environment).Msg("realtime gateway listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("realtime gateway stopped")
	}
}

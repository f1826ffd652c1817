package main

import (
	"context"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awscognito "github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	awsssm "github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/joho/godotenv"

	"clinic-booking/handler"
	"clinic-booking/internal/config"
	"clinic-booking/internal/i18n"
	"clinic-booking/internal/identity"
	"clinic-booking/internal/integrations/mediastore"
	"clinic-booking/internal/integrations/paramstore"
	"clinic-booking/internal/logger"
	"clinic-booking/internal/provision"
	"clinic-booking/internal/repository"
	"clinic-booking/internal/retention"
	"clinic-booking/internal/usecase"
)

func main() {
	ctx := context.Background()
	_ = godotenv.Load()

	// ---- Configuration (read only here) ----
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
	if err := cfg.RequireIdentity(); err != nil {
		log.Fatal().Err(err).Msg("invalid config")
	}
	catalog, err := i18n.Load(cfg.Locale)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load message catalog")
	}

	// ---- AWS SDK config ----
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load AWS config")
	}
	cognitoCfg := awsCfg.Copy()
	if cfg.CognitoRegion != "" {
		cognitoCfg.Region = cfg.CognitoRegion
	}

	// ---- Clients ----
	params, err := paramstore.New(awsssm.NewFromConfig(awsCfg), cfg.ParamPrefix)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create SSM client")
	}
	clientSecret, err := params.CognitoClientSecret(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to read Cognito client secret")
	}
	store, err := repository.New(awsdynamodb.NewFromConfig(awsCfg), cfg.TableName)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create repository client")
	}
	directory, err := identity.NewDirectory(awscognito.NewFromConfig(cognitoCfg), cfg.UserPoolID)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create account directory")
	}
	issuer, err := identity.NewIssuer(cognitoCfg, identity.PoolConfig{
		UserPoolID:   cfg.UserPoolID,
		ClientID:     cfg.ClientID,
		ClientSecret: clientSecret,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create session issuer")
	}
	provisioner, err := provision.New(issuer, cfg.SecretLength, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create provisioner")
	}
	sweeper, err := retention.NewSweeper(store, log,
		retention.WithHorizon(cfg.RetentionHorizon),
		retention.WithBatchSize(cfg.RetentionBatchSize),
		retention.WithConcurrency(cfg.RetentionConcurrency),
	)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create retention sweeper")
	}

	var media usecase.MediaStore
	if cfg.MediaBucket != "" {
		m, err := mediastore.NewFromClient(awss3.NewFromConfig(awsCfg), cfg.MediaBucket, cfg.MediaUploadTTL)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create media store")
		}
		media = m
	} else {
		log.Warn().Msg("MEDIA_BUCKET not set, chat images disabled")
	}

	var verifier handler.TokenVerifier
	if cfg.JWKSURL != "" {
		v, err := identity.NewVerifier(ctx, cfg.JWKSURL, cfg.Issuer, cfg.Audience, log)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create token verifier")
		}
		defer v.Close()
		verifier = v
	}

	// ---- Services ----
	services := handler.Services{}
	if services.Booking, err = usecase.NewBookingService(store, store, catalog); err != nil {
		log.Fatal().Err(err).Msg("failed to create booking service")
	}
	if services.Chat, err = usecase.NewChatService(store, store, media, catalog); err != nil {
		log.Fatal().Err(err).Msg("failed to create chat service")
	}
	if services.Doctors, err = usecase.NewDoctorService(store, store); err != nil {
		log.Fatal().Err(err).Msg("failed to create doctor service")
	}
	if services.Admin, err = usecase.NewAdminService(store, directory, provisioner, sweeper, catalog, log); err != nil {
		log.Fatal().Err(err).Msg("failed to create admin service")
	}
	if services.Featured, err = usecase.NewFeaturedService(store); err != nil {
		log.Fatal().Err(err).Msg("failed to create featured service")
	}
	if services.Notifications, err = usecase.NewNotificationService(store); err != nil {
		log.Fatal().Err(err).Msg("failed to create notification service")
	}

	// ---- Handler ----
	h, err := handler.NewHandler(services, verifier, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create handler")
	}

	lambda.Start(h.Handle)
}

// Command streams consumes the table's DynamoDB stream. It fans every write out
// to the change bus and removes the sign-in account of deleted profiles.
package main

import (
	"context"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awscognito "github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider"
	"github.com/joho/godotenv"

	"clinic-booking/internal/authsync"
	"clinic-booking/internal/changefeed"
	"clinic-booking/internal/config"
	"clinic-booking/internal/identity"
	"clinic-booking/internal/logger"
	"clinic-booking/internal/streams"
)

func main() {
	ctx := context.Background()
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
	if err := cfg.RequireChanges(); err != nil {
		log.Fatal().Err(err).Msg("invalid config")
	}
	if cfg.UserPoolID == "" {
		log.Fatal().Msg("COGNITO_USER_POOL_ID is required")
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load AWS config")
	}
	if cfg.CognitoRegion != "" {
		awsCfg.Region = cfg.CognitoRegion
	}

	redisClient, err := changefeed.Connect(ctx, cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to change bus")
	}
	defer redisClient.Close()

	directory, err := identity.NewDirectory(awscognito.NewFromConfig(awsCfg), cfg.UserPoolID)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create account directory")
	}
	cleaner, err := authsync.New(directory, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create account cleaner")
	}
	processor, err := streams.NewProcessor(changefeed.NewPublisher(redisClient, cfg.ChangeChannelPrefix), cleaner, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create stream processor")
	}

	lambda.Start(processor.Handle)
}

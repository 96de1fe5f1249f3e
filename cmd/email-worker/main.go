// Entry point for the stale clock-in reminder mailer
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"clockreport.service/internal/config"
	"clockreport.service/internal/core"
	"clockreport.service/internal/worker"
	"clockreport.service/internal/worker/email"
	"clockreport.service/pkg/aws"
	"clockreport.service/pkg/logger"
	"clockreport.service/pkg/telemetry"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/rs/zerolog/log"
)

func main() {
	// Load config
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("Could not load configuration")
	}

	logger.Setup(cfg.IsLocalDev, cfg.LogLevel)

	shutdownTracer, err := telemetry.InitTracer("clockreport-email-worker", cfg.OTelEndpoint)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to init tracer")
	}
	defer func() {
		_ = shutdownTracer(context.Background())
	}()

	// AWS SDK Config
	awsCfg, err := aws.NewAWSConfig(context.Background(), cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("unable to load SDK config")
	}

	// Initialize Dependencies
	sqsClient := sqs.NewFromConfig(awsCfg)
	sesClient := ses.NewFromConfig(awsCfg)
	emailService := core.NewSESEmailService(sesClient, cfg.ReminderEmailFrom, cfg.Location())
	processor := email.NewProcessor(emailService, cfg.ReminderEmailTo)

	// Start Worker
	ctx, cancel := context.WithCancel(context.Background())
	app := worker.NewWorker(sqsClient, cfg.ReminderSQSQueueURL, processor)

	done := make(chan struct{})
	go func() {
		app.Start(ctx)
		close(done)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	<-quit
	log.Info().Msg("Shutting down worker...")

	// Cancel the context to signal the worker to stop polling.
	cancel()
	<-done

	log.Info().Msg("Worker exited gracefully")
}

package aws

import (
	"context"

	"clockreport.service/internal/config"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsConfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/rs/zerolog/log"
)

// NewAWSConfig loads the SDK configuration shared by the SQS and SES clients.
// In local development every service call goes to LocalStack.
func NewAWSConfig(ctx context.Context, appConfig config.Config) (aws.Config, error) {
	if appConfig.IsLocalDev {
		log.Info().Str("endpoint", appConfig.AWSEndpoint).Msg("Local development mode detected. Routing AWS calls to LocalStack.")
	} else {
		log.Info().Str("region", appConfig.AWSRegion).Msg("Using standard AWS credential chain.")
	}
	return awsConfig.LoadDefaultConfig(ctx, loadOptions(appConfig)...)
}

func loadOptions(appConfig config.Config) []func(*awsConfig.LoadOptions) error {
	opts := []func(*awsConfig.LoadOptions) error{
		awsConfig.WithRegion(appConfig.AWSRegion),
	}
	if !appConfig.IsLocalDev {
		// IAM role for service accounts, instance profile or env credentials
		return opts
	}

	opts = append(opts,
		awsConfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider("test", "test", "")),
	)
	if appConfig.AWSEndpoint != "" {
		opts = append(opts, awsConfig.WithBaseEndpoint(appConfig.AWSEndpoint))
	}
	return opts
}

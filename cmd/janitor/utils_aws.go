// SPDX-FileCopyrightText: 2025 The revdoc janitor contributors
//
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"log/slog"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/bedrockagent"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"

	awsclients "github.com/revdoc/janitor/pkg/clients/aws"
	"github.com/revdoc/janitor/pkg/core/config"
)

// configureAWSClients creates the Bedrock Agent and DynamoDB API clients.
func configureAWSClients(ctx context.Context, conf *config.Config) error {
	if err := validateAWSConfig(conf); err != nil {
		return err
	}

	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(conf.AWS.Region),
	}

	if conf.AWS.AppID != "" {
		opts = append(opts, awsconfig.WithAppID(conf.AWS.AppID))
	}

	// Use static credentials when configured, otherwise fall back to the
	// default credentials chain of the SDK.
	if conf.AWS.Credentials.AccessKeyID != "" {
		provider := credentials.NewStaticCredentialsProvider(
			conf.AWS.Credentials.AccessKeyID,
			conf.AWS.Credentials.SecretAccessKey,
			"",
		)
		opts = append(opts, awsconfig.WithCredentialsProvider(provider))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return err
	}

	awsclients.SetBedrockAgentClient(bedrockagent.NewFromConfig(cfg))
	awsclients.SetDynamoDBClient(dynamodb.NewFromConfig(cfg))

	slog.Info("configured aws clients", "region", conf.AWS.Region)

	return nil
}

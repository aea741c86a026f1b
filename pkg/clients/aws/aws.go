// SPDX-FileCopyrightText: 2025 The revdoc janitor contributors
//
// SPDX-License-Identifier: Apache-2.0

// Package aws provides the AWS API clients used by workers during runtime.
package aws

import (
	"github.com/aws/aws-sdk-go-v2/service/bedrockagent"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
)

// BedrockAgent is the [bedrockagent.Client] used by workers during runtime to
// manage the knowledge base registry.
var BedrockAgent *bedrockagent.Client

// DynamoDB is the [dynamodb.Client] used by workers during runtime to track
// cleanup progress.
var DynamoDB *dynamodb.Client

// SetBedrockAgentClient shall be invoked from cli commands to set the Bedrock
// Agent client for the workers.
func SetBedrockAgentClient(c *bedrockagent.Client) {
	BedrockAgent = c
}

// SetDynamoDBClient shall be invoked from cli commands to set the DynamoDB
// client for the workers.
func SetDynamoDBClient(c *dynamodb.Client) {
	DynamoDB = c
}

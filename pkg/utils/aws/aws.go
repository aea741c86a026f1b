// SPDX-FileCopyrightText: 2025 The revdoc janitor contributors
//
// SPDX-License-Identifier: Apache-2.0

// Package aws provides various AWS utilities.
package aws

import (
	"errors"
	"slices"

	"github.com/aws/smithy-go"

	asynqutils "github.com/revdoc/janitor/pkg/utils/asynq"
)

// MaybeSkipRetry wraps known AWS errors with [asynq.SkipRetry], so that the
// tasks from which these errors originate from won't be retried.
func MaybeSkipRetry(err error) error {
	// Do not retry tasks where the API call resulted in errors caused by
	// the caller.
	skipRetryFaults := []smithy.ErrorFault{
		smithy.FaultClient,
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		if slices.Contains(skipRetryFaults, apiErr.ErrorFault()) {
			return asynqutils.SkipRetry(err)
		}
	}

	return err
}

package workflows

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

var (
	// Crawl options.
	//
	// A crawl failure fails the orchestration; the blob gateway already
	// retries transient storage errors below, so Temporal adds no attempts.
	crawlActivityOptions = workflow.ActivityOptions{
		StartToCloseTimeout: 10 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			MaximumAttempts: 1,
		},
	}

	// Transform options.
	//
	// Failure is signalled through the boolean result rather than an
	// activity error, so retrying at the Temporal level would only repeat
	// the same deterministic failure.
	transformActivityOptions = workflow.ActivityOptions{
		StartToCloseTimeout: 30 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			MaximumAttempts: 1,
		},
	}

	// Collection build options.
	collectionActivityOptions = workflow.ActivityOptions{
		StartToCloseTimeout: 10 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			MaximumAttempts: 1,
		},
	}
)

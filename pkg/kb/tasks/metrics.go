// SPDX-FileCopyrightText: 2025 The revdoc janitor contributors
//
// SPDX-License-Identifier: Apache-2.0

package tasks

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/revdoc/janitor/pkg/metrics"
)

var (
	// outdatedDesc is the descriptor for a metric, which tracks the number
	// of stale knowledge bases accepted by a cleanup job.
	outdatedDesc = prometheus.NewDesc(
		prometheus.BuildFQName(metrics.Namespace, "", "outdated_kbs"),
		"A gauge which tracks the number of stale knowledge bases accepted for cleanup",
		[]string{"job_id"},
		nil,
	)
)

// init registers the metrics with the [metrics.DefaultCollector]
func init() {
	metrics.DefaultCollector.AddDesc(
		outdatedDesc,
	)
}

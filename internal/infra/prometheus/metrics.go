package prometheus

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Redirect outcomes used as label values on RedirectsTotal.
const (
	OutcomeFound    = "found"
	OutcomeNotFound = "not_found"
	OutcomeError    = "error"
)

var (
	// RedirectsTotal counts short-link resolutions by outcome.
	RedirectsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "teaglink_redirects_total",
		Help: "Short link resolutions, partitioned by outcome.",
	}, []string{"outcome"})

	// ScansRecorded counts scan events accepted by the sink.
	ScansRecorded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "teaglink_scans_recorded_total",
		Help: "Scan events successfully handed to the scan sink.",
	})

	// ScanRecordFailures counts scan events that were dropped. Dropping is
	// by contract preferable to failing the redirect.
	ScanRecordFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "teaglink_scan_record_failures_total",
		Help: "Scan events lost to sink errors.",
	})
)

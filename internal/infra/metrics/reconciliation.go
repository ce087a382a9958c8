package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		reconciliationRowsTotal,
		reconciliationBatchesTotal,
		autoVerifiedTotal,
	)
}

var (
	reconciliationRowsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reconciliation_rows_total",
			Help: "Bank statement rows by import outcome.",
		},
		[]string{"outcome"}, // imported|duplicate|skipped|matched|unmatched|review|error
	)

	reconciliationBatchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reconciliation_batches_total",
			Help: "Statement imports by result.",
		},
		[]string{"result"},
	)

	autoVerifiedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "reconciliation_auto_verified_total",
			Help: "Orders verified automatically from a bank statement.",
		},
	)
)

// ObserveBatch records one finished import.
func ObserveBatch(imported, duplicates, skipped, matched, unmatched, review, errs, autoVerified int) {
	add := func(outcome string, n int) {
		if n > 0 {
			reconciliationRowsTotal.WithLabelValues(outcome).Add(float64(n))
		}
	}
	add("imported", imported)
	add("duplicate", duplicates)
	add("skipped", skipped)
	add("matched", matched)
	add("unmatched", unmatched)
	add("review", review)
	add("error", errs)
	if autoVerified > 0 {
		autoVerifiedTotal.Add(float64(autoVerified))
	}
	reconciliationBatchesTotal.WithLabelValues("ok").Inc()
}

func IncBatchFailed(reason string) {
	reconciliationBatchesTotal.WithLabelValues(norm(reason)).Inc()
}

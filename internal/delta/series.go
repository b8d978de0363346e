package delta

import (
	"fmt"
	"sort"
	"time"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// CompareSeries analyzes an ordered snapshot history plus the current pull
// for longitudinal patterns no pairwise diff can see. At least two
// historical snapshots are required; with fewer the analysis is not run.
// History is ordered by capture time, ties broken by input position, never
// by any date reported inside the record.
func CompareSeries(history []*domain.Snapshot, current domain.AccountRecord) []domain.SeriesInsight {
	if len(history) < 2 {
		return nil
	}

	ordered := make([]*domain.Snapshot, len(history))
	copy(ordered, history)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].CapturedAt.Before(ordered[j].CapturedAt)
	})

	sequence := make([]domain.AccountRecord, 0, len(ordered)+1)
	for _, snap := range ordered {
		sequence = append(sequence, snap.Record)
	}
	sequence = append(sequence, current)

	var insights []domain.SeriesInsight

	if insight, ok := dofdDrift(sequence); ok {
		insights = append(insights, insight)
	}
	if insight, ok := balanceGrowth(sequence); ok {
		insights = append(insights, insight)
	}
	if insight, ok := reinsertionLoop(sequence); ok {
		insights = append(insights, insight)
	}

	return insights
}

// dofdDrift fires when the reported delinquency date moves later across
// pulls. Each move restarts the reporting clock, so even one drift across a
// real history is forensic signal.
func dofdDrift(sequence []domain.AccountRecord) (domain.SeriesInsight, bool) {
	var (
		prev     time.Time
		havePrev bool
		moves    int
		span     int
	)

	for _, record := range sequence {
		d, ok := record.Date(domain.FieldDOFD)
		if !ok {
			continue
		}
		span++
		if havePrev && d.After(prev) {
			moves++
		}
		prev, havePrev = d, true
	}

	if moves == 0 {
		return domain.SeriesInsight{}, false
	}
	return domain.SeriesInsight{
		Kind:        domain.InsightDOFDDrift,
		Field:       domain.FieldDOFD,
		Description: fmt.Sprintf("delinquency date moved later %d time(s) across %d pulls; each move extends how long the item reports", moves, span),
		Severity:    domain.SeverityHigh,
		SpanPulls:   span,
	}, true
}

// balanceGrowth fires when the balance strictly increases across three or
// more consecutive pulls, the signature of fee or interest stacking.
func balanceGrowth(sequence []domain.AccountRecord) (domain.SeriesInsight, bool) {
	var (
		prev     float64
		havePrev bool
		run      = 1
		bestRun  = 1
		span     int
	)

	for _, record := range sequence {
		bal, ok := record.Balance()
		if !ok {
			continue
		}
		span++
		if havePrev && bal > prev {
			run++
			if run > bestRun {
				bestRun = run
			}
		} else {
			run = 1
		}
		prev, havePrev = bal, true
	}

	if bestRun < 3 {
		return domain.SeriesInsight{}, false
	}
	return domain.SeriesInsight{
		Kind:        domain.InsightBalanceGrowth,
		Field:       domain.FieldCurrentBalance,
		Description: fmt.Sprintf("balance increased across %d consecutive pulls with no documented basis", bestRun),
		Severity:    domain.SeverityMedium,
		SpanPulls:   span,
	}, true
}

// reinsertionLoop fires when the account flips from closed/paid back to an
// open state, the pattern of an item reinserted after deletion or cure.
func reinsertionLoop(sequence []domain.AccountRecord) (domain.SeriesInsight, bool) {
	flips := 0
	span := 0
	wasClosed := false

	for _, record := range sequence {
		status, ok := record.Get(domain.FieldAccountStatus)
		if !ok {
			continue
		}
		span++
		if wasClosed && statusReopened(status) {
			flips++
		}
		wasClosed = record.IsPaidOrClosed()
	}

	if flips == 0 {
		return domain.SeriesInsight{}, false
	}
	return domain.SeriesInsight{
		Kind:        domain.InsightReinsertionLoop,
		Field:       domain.FieldAccountStatus,
		Description: fmt.Sprintf("account flipped from closed back to open %d time(s); reinsertion without the required notice violates reporting duties", flips),
		Severity:    domain.SeverityHigh,
		SpanPulls:   span,
	}, true
}

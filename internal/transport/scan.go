package transport

import (
	"context"
	"log/slog"
	"time"
)

// ScanOutcome is the result of trying one candidate, or of the whole scan.
type ScanOutcome string

const (
	ScanOpened    ScanOutcome = "opened"
	ScanSkipped   ScanOutcome = "skipped"
	ScanExhausted ScanOutcome = "exhausted"
)

// ScanStep records what happened to one candidate.
type ScanStep struct {
	Target  string
	Outcome ScanOutcome
	Err     error
}

// ScanReport lists the per-candidate steps and the overall outcome.
type ScanReport struct {
	Steps   []ScanStep
	Outcome ScanOutcome
}

// scanCandidates tries each candidate exactly once, in order, and stops at
// the first one that opens. There is no retry or backoff.
func scanCandidates[C any, L any](
	ctx context.Context,
	logger *slog.Logger,
	candidates []C,
	describe func(C) string,
	open func(context.Context, C) (L, error),
) (L, ScanReport, error) {
	var (
		zero   L
		report ScanReport
	)

	for _, c := range candidates {
		if err := ctx.Err(); err != nil {
			return zero, report, err
		}

		target := describe(c)
		logger.Info("found stick, opening", "target", target)
		link, err := open(ctx, c)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return zero, report, ctxErr
			}
			logger.Warn("failed to open stick, trying next", "target", target, "error", err)
			report.Steps = append(report.Steps, ScanStep{Target: target, Outcome: ScanSkipped, Err: err})
			continue
		}

		report.Steps = append(report.Steps, ScanStep{Target: target, Outcome: ScanOpened})
		report.Outcome = ScanOpened

		return link, report, nil
	}

	report.Outcome = ScanExhausted

	return zero, report, ErrNoDevices
}

func sleepWithContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

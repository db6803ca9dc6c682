package model

import "errors"

var (
	// ErrAmbiguousClassification indicates the classifier confidence fell
	// below the configured floor; the epic must be categorized manually.
	ErrAmbiguousClassification = errors.New("classification confidence below floor, manual category required")

	// ErrInsufficientBaselineData indicates a category has no learned
	// samples and no global default is configured.
	ErrInsufficientBaselineData = errors.New("no baseline data for category and no default configured")

	// ErrInvalidDateWindow indicates a forecasting window whose start is
	// after its end, or that excludes every forecast month.
	ErrInvalidDateWindow = errors.New("invalid forecasting date window")

	// ErrStaleLock indicates a job lock held past the maximum age.
	ErrStaleLock = errors.New("job lock is stale")

	// ErrLockHeld indicates another worker currently owns the job lock.
	ErrLockHeld = errors.New("job lock held by another owner")

	// ErrUnknownCategory indicates a name outside the fixed taxonomy.
	ErrUnknownCategory = errors.New("unknown epic category")
)

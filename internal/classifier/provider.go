// Package classifier resolves free-text epic summaries into the fixed
// category taxonomy with a confidence-scored, human-correctable mapping.
package classifier

import (
	"context"

	"github.com/cleberrangel/epic-forecast-api/internal/model"
)

// Result is one provider classification outcome.
type Result struct {
	Category   model.Category             `json:"category"`
	Confidence float64                    `json:"confidence"`
	Scores     map[model.Category]float64 `json:"scores,omitempty"`
}

// Provider is the pluggable similarity capability. Implementations must
// honor ctx cancellation; the deterministic TF-IDF provider doubles as
// the test stub.
type Provider interface {
	Classify(ctx context.Context, summary string) (Result, error)
	Name() string
}

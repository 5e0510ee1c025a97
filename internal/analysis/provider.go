package analysis

import (
	"context"

	"github.com/docuqa/docuqa/internal/domain/docModel"
)

// Provider condenses ranked passages into a short answer summary. It sits
// strictly downstream of ranking; a nil provider or a failed call leaves
// the ranked results untouched.
type Provider interface {
	Summarize(ctx context.Context, question string, results []docModel.RankedResult) (string, error)
}

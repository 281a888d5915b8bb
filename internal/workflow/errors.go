package workflow

import (
	"fmt"

	"matchpost/backend/pkg/models"
)

// Step failures all wrap models.ErrUpstreamUnavailable: the in-flight
// transition is aborted, nothing is persisted, and the caller may retry the
// same request once the capability recovers.
var (
	ErrResearchUnavailable = fmt.Errorf("search capability failed: %w", models.ErrUpstreamUnavailable)
	ErrExtractionFailed    = fmt.Errorf("fact extraction failed: %w", models.ErrUpstreamUnavailable)
	ErrComposeFailed       = fmt.Errorf("draft composition failed: %w", models.ErrUpstreamUnavailable)
)

package workflow

import (
	"context"
	"fmt"
	"unicode/utf8"

	"matchpost/backend/pkg/models"
)

// MaxDraftLength is the hard character limit for a draft. The composer prompt
// already instructs the model to stay under it, but the boundary re-checks and
// truncates rather than trusting the capability.
const MaxDraftLength = 280

// Placeholder content used when extraction reports no usable match data.
// Downstream steps treat this record as ordinary data, never as an error.
const (
	FallbackResult  = "Match data not found online."
	FallbackSummary = "Could not retrieve a summary for the requested match."
	FallbackNA      = "N/A"
)

// runResearch executes the RESEARCHING step: one outbound search call for the
// workflow topic. An empty evidence list is a valid outcome.
func (e *Engine) runResearch(ctx context.Context, wf *models.Workflow) ([]string, error) {
	evidence, err := e.search.Search(ctx, wf.State.Topic)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrResearchUnavailable, err)
	}
	e.logger.Debug("workflow %s research returned %d snippets", wf.ThreadID, len(evidence))
	return evidence, nil
}

// runExtraction executes the EXTRACTING step: structured generation over the
// evidence. When the capability reports no data found, the workflow proceeds
// with the placeholder record instead of failing.
func (e *Engine) runExtraction(ctx context.Context, wf *models.Workflow, evidence []string) error {
	facts, found, err := e.generator.ExtractFacts(ctx, wf.State.Topic, evidence)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrExtractionFailed, err)
	}

	if !found {
		e.logger.Info("workflow %s: no match data found, using fallback facts", wf.ThreadID)
		wf.State.MatchFacts = fallbackFacts()
		return nil
	}

	// Fold score and player of the match into the narrative so the composer
	// sees them even when it only reads the summary.
	facts.MatchSummary = fmt.Sprintf("%s. %s Player of the Match: %s.",
		facts.Score, facts.MatchSummary, facts.PlayerOfTheMatch)
	wf.State.MatchFacts = facts
	return nil
}

// runCompose executes the DRAFTING step: one new draft from the current facts
// and the latest feedback. The draft is appended to the history and the
// pending evaluation is cleared, putting the workflow back in review.
func (e *Engine) runCompose(ctx context.Context, wf *models.Workflow, feedback string) error {
	draft, err := e.generator.ComposeDraft(ctx, wf.State.MatchFacts, feedback)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrComposeFailed, err)
	}

	draft = truncateDraft(draft)
	wf.State.CurrentDraft = draft
	wf.State.DraftHistory = append(wf.State.DraftHistory, draft)
	wf.State.PendingEvaluation = ""
	return nil
}

// truncateDraft enforces MaxDraftLength in runes, counting characters the way
// the target platform does rather than in bytes.
func truncateDraft(draft string) string {
	if utf8.RuneCountInString(draft) <= MaxDraftLength {
		return draft
	}
	runes := []rune(draft)
	return string(runes[:MaxDraftLength])
}

func fallbackFacts() *models.MatchFacts {
	return &models.MatchFacts{
		MatchResult:      FallbackResult,
		Teams:            FallbackNA,
		Score:            FallbackNA,
		MatchSummary:     FallbackSummary,
		PlayerOfTheMatch: FallbackNA,
		KeyMoment:        FallbackNA,
	}
}

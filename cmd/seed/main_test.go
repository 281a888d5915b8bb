package main

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDemoWorkflowMatchesEngineShape(t *testing.T) {
	wf := demoWorkflow("owner-1")

	require.NoError(t, wf.State.Validate())

	// histories must serialize as [], not null, like engine-written rows
	doc, err := json.Marshal(wf.State)
	require.NoError(t, err)
	assert.Contains(t, string(doc), `"feedback_history":[]`)
	assert.NotNil(t, wf.State.DraftHistory)
	assert.Equal(t, wf.State.CurrentDraft, wf.State.DraftHistory[len(wf.State.DraftHistory)-1])
}

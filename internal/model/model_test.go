package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSourceTag(t *testing.T) {
	for _, raw := range []string{"state_map", "knowledge_base", "drive_files"} {
		tag, err := ParseSourceTag(raw)
		require.NoError(t, err)
		assert.Equal(t, SourceTag(raw), tag)
	}

	for _, raw := range []string{"no_match", "everything", "", "STATE_MAP"} {
		_, err := ParseSourceTag(raw)
		assert.Error(t, err, raw)
	}
}

func TestLastUserContent(t *testing.T) {
	msgs := []Message{
		{Role: RoleUser, Content: "first"},
		{Role: RoleAssistant, Content: "reply"},
		{Role: RoleUser, Content: "second"},
		{Role: RoleAssistant, Content: "trailing"},
	}
	assert.Equal(t, "second", LastUserContent(msgs))
	assert.Empty(t, LastUserContent(nil))
	assert.Empty(t, LastUserContent([]Message{{Role: RoleAssistant, Content: "only"}}))
}

func TestEvidenceBundleEmpty(t *testing.T) {
	assert.True(t, EvidenceBundle{}.Empty())
	assert.False(t, EvidenceBundle{Facts: []LegalityFact{{}}}.Empty())
	assert.False(t, EvidenceBundle{Knowledge: []KnowledgeHit{{}}}.Empty())
	assert.False(t, EvidenceBundle{Files: []FileHit{{}}}.Empty())
}

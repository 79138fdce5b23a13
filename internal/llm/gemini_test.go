package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

func TestGeminiContentsRoleMapping(t *testing.T) {
	turns := []Turn{
		{Role: RoleUser, Content: "what is this video about?"},
		{Role: RoleAssistant, Content: "it covers goroutines"},
		{Role: RoleUser, Content: "and channels?"},
	}

	contents := geminiContents(turns)
	require.Len(t, contents, 3)

	assert.Equal(t, string(genai.RoleUser), string(contents[0].Role))
	assert.Equal(t, string(genai.RoleModel), string(contents[1].Role))
	assert.Equal(t, string(genai.RoleUser), string(contents[2].Role))

	require.Len(t, contents[1].Parts, 1)
	assert.Equal(t, "it covers goroutines", contents[1].Parts[0].Text)
}

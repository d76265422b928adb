package remote

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContractSchemasCoverEveryPayload(t *testing.T) {
	t.Parallel()

	schemas, err := ContractSchemas()
	require.NoError(t, err)
	require.Len(t, schemas, len(contractTypes))

	byName := make(map[string]map[string]any, len(schemas))
	for _, s := range schemas {
		var decoded map[string]any
		require.NoError(t, json.Unmarshal(s.Schema, &decoded), s.Name)
		byName[s.Name] = decoded
	}

	login := byName["LoginResponse"]
	require.NotNil(t, login)
	props, ok := login["properties"].(map[string]any)
	require.True(t, ok)
	for _, key := range []string{"access_token", "token_type", "full_name", "new_conversation_id"} {
		assert.Contains(t, props, key)
	}

	conv := byName["Conversation"]["properties"].(map[string]any)
	createdAt := conv["created_at"].(map[string]any)
	assert.Equal(t, "string", createdAt["type"])
	assert.Equal(t, "date-time", createdAt["format"])
}

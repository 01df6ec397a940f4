package auth

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdentityUnmarshal(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		expected Identity
		wantErr  bool
	}{
		{name: "string identity", raw: `"42"`, expected: "42"},
		{name: "numeric identity", raw: `42`, expected: "42"},
		{name: "large numeric identity", raw: `9007199254740993`, expected: "9007199254740993"},
		{name: "null is empty", raw: `null`, expected: ""},
		{name: "object rejected", raw: `{"id":42}`, wantErr: true},
		{name: "array rejected", raw: `[42]`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var id Identity
			err := json.Unmarshal([]byte(tt.raw), &id)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, id)
		})
	}
}

func TestIdentityString(t *testing.T) {
	assert.Equal(t, "42", Identity("42").String())
}

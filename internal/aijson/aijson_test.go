package aijson

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnmarshalEmbeddedObject(t *testing.T) {
	var out map[string]int
	require.True(t, Unmarshal(`Sure! {"a":1} thanks`, &out))
	assert.Equal(t, 1, out["a"])
}

func TestUnmarshalSingleQuoteFallback(t *testing.T) {
	var out map[string]int
	require.True(t, Unmarshal(`{'a':1}`, &out))
	assert.Equal(t, 1, out["a"])
}

func TestUnmarshalNoObject(t *testing.T) {
	var out map[string]any
	assert.False(t, Unmarshal("no json here", &out))
	assert.False(t, Unmarshal("", &out))
	assert.False(t, Unmarshal("} backwards {", &out))
}

func TestUnmarshalStruct(t *testing.T) {
	var vote struct {
		TargetDoctorID string `json:"targetDoctorId"`
		Reason         string `json:"reason"`
	}
	text := "Here is my evaluation:\n{\"targetDoctorId\":\"neurologist\",\"reason\":\"weak differential\"}\nDone."
	require.True(t, Unmarshal(text, &vote))
	assert.Equal(t, "neurologist", vote.TargetDoctorID)
	assert.Equal(t, "weak differential", vote.Reason)
}

func TestExtractSpansOuterBraces(t *testing.T) {
	assert.Equal(t, `{"a":{"b":2}}`, Extract(`x {"a":{"b":2}} y`))
}

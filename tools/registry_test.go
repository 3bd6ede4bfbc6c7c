package tools_test

import (
	"testing"

	"github.com/effective-security/toolchat/tools"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_Registry_Lookup(t *testing.T) {
	reg := tools.NewRegistry(
		tools.Descriptor{Name: "weather.current", Endpoint: "http://localhost/tools/weather", Description: "current weather for a city"},
		tools.Descriptor{Name: "math.calculate", Endpoint: "http://localhost/tools/math", Description: "evaluate an arithmetic expression"},
	)
	require.Equal(t, 2, reg.Len())

	d, ok := reg.Lookup("Weather.Current")
	require.True(t, ok)
	assert.Equal(t, "http://localhost/tools/weather", d.Endpoint)

	_, ok = reg.Lookup("search.web")
	assert.False(t, ok)

	assert.Equal(t, []string{"weather.current", "math.calculate"}, reg.Names())
}

func Test_Registry_DuplicateFirstWins(t *testing.T) {
	reg := tools.NewRegistry(
		tools.Descriptor{Name: "math.calculate", Endpoint: "http://a"},
		tools.Descriptor{Name: "MATH.CALCULATE", Endpoint: "http://b"},
	)
	require.Equal(t, 1, reg.Len())
	d, _ := reg.Lookup("math.calculate")
	assert.Equal(t, "http://a", d.Endpoint)
}

func Test_Registry_PromptBlock(t *testing.T) {
	reg := tools.NewRegistry(
		tools.Descriptor{Name: "math.calculate", Description: "evaluate an arithmetic expression"},
	)
	block := reg.PromptBlock()
	assert.Contains(t, block, "```json")
	assert.Contains(t, block, `"name":"math.calculate"`)
	assert.Contains(t, block, `"description":"evaluate an arithmetic expression"`)
}

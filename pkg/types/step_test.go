package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStep_Substitute(t *testing.T) {
	step := Step{
		Selector: "#email",
		Method:   MethodFill,
		Args:     []string{"%user%@%domain%"},
	}

	got := step.Substitute(map[string]string{"user": "alice", "domain": "example.com"})
	assert.Equal(t, []string{"alice@example.com"}, got.Args)
	assert.Equal(t, []string{"%user%@%domain%"}, step.Args, "original is unchanged")

	unknown := step.Substitute(map[string]string{"other": "x"})
	assert.Equal(t, step.Args, unknown.Args)

	assert.Equal(t, step, step.Substitute(nil))
}

func TestStep_String(t *testing.T) {
	assert.Equal(t, "click #submit", Step{Method: MethodClick, Selector: "#submit"}.String())
	assert.Equal(t, "fill input[name=q] in frame search", Step{Method: MethodFill, Selector: "input[name=q]", Frame: "search"}.String())
}

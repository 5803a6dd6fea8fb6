package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain object", `{"a":1}`, `{"a":1}`},
		{"plain array", `[1,2,3]`, `[1,2,3]`},
		{"fenced json", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"fenced no lang", "```\n[{\"a\":1}]\n```", `[{"a":1}]`},
		{"prose around object", `Here you go: {"a":1}. Enjoy!`, `{"a":1}`},
		{"prose around array", `Result: [1,2] done`, `[1,2]`},
		{"array before object", `[{"a":1}]`, `[{"a":1}]`},
		{"no json", "nothing here", "nothing here"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractJSON(tt.input))
		})
	}
}

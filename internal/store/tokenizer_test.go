package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTokenize(t *testing.T) {
	tests := []struct {
		name string
		text string
		want map[string]int
	}{
		{
			name: "lowercases and counts",
			text: "Retry retry RETRY once",
			want: map[string]int{"retry": 3, "once": 1},
		},
		{
			name: "drops stop words",
			text: "the cat is on the mat",
			want: map[string]int{"cat": 1, "mat": 1},
		},
		{
			name: "drops single characters",
			text: "a b c data",
			want: map[string]int{"data": 1},
		},
		{
			name: "splits on punctuation",
			text: "vector-index, lexical_index!",
			want: map[string]int{"vector": 1, "index": 2, "lexical": 1},
		},
		{
			name: "keeps numbers",
			text: "error 404 happened 404 times",
			want: map[string]int{"error": 1, "404": 2, "happened": 1, "times": 1},
		},
		{
			name: "empty input",
			text: "",
			want: map[string]int{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Tokenize(tt.text))
		})
	}
}

func TestTokenizeQuery(t *testing.T) {
	// Distinct tokens in sorted order, independent of input order.
	assert.Equal(t, []string{"fusion", "ranking", "search"},
		TokenizeQuery("search ranking fusion search"))
	assert.Empty(t, TokenizeQuery("the of and"))
}

package conversation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// wordCounter counts whitespace separated words.
type wordCounter struct{}

func (wordCounter) Count(text string) int {
	n, in := 0, false
	for _, r := range text {
		space := r == ' ' || r == '\n'
		if !space && !in {
			n++
		}
		in = !space
	}
	return n
}

func turns(qs ...string) []Turn {
	out := make([]Turn, len(qs))
	for i, q := range qs {
		out[i] = Turn{Question: q, Answer: "ok"}
	}
	return out
}

func TestUnbounded(t *testing.T) {
	all := turns("a", "b", "c")
	assert.Equal(t, all, Unbounded().Select(all))
}

func TestLastTurns(t *testing.T) {
	all := turns("a", "b", "c")

	assert.Equal(t, all[1:], LastTurns(2).Select(all))
	assert.Equal(t, all, LastTurns(10).Select(all))
	assert.Empty(t, LastTurns(0).Select(all))
}

func TestTokenBudget(t *testing.T) {
	// Each turn renders as "Human: x\nAssistant: ok\n" = 4 words.
	all := turns("a", "b", "c")

	assert.Equal(t, all[1:], TokenBudget(8, wordCounter{}).Select(all))
	assert.Equal(t, all[2:], TokenBudget(7, wordCounter{}).Select(all))
	assert.Empty(t, TokenBudget(3, wordCounter{}).Select(all))
	assert.Equal(t, all, TokenBudget(100, wordCounter{}).Select(all))
}

func TestFormatHistory(t *testing.T) {
	assert.Equal(t, "", FormatHistory(nil))
	assert.Equal(t,
		"Human: a\nAssistant: ok\nHuman: b\nAssistant: ok",
		FormatHistory(turns("a", "b")))
}

package conversation

import (
	"strings"
)

// HistoryPolicy selects which stored turns are replayed into the prompt.
// Stored history itself is never truncated.
type HistoryPolicy interface {
	Select(turns []Turn) []Turn
}

// HistoryPolicyFunc adapts a function to HistoryPolicy.
type HistoryPolicyFunc func(turns []Turn) []Turn

func (f HistoryPolicyFunc) Select(turns []Turn) []Turn { return f(turns) }

// TokenCounter counts model tokens in a text.
type TokenCounter interface {
	Count(text string) int
}

// Unbounded replays every turn.
func Unbounded() HistoryPolicy {
	return HistoryPolicyFunc(func(turns []Turn) []Turn { return turns })
}

// LastTurns replays the n most recent turns. n <= 0 replays none.
func LastTurns(n int) HistoryPolicy {
	return HistoryPolicyFunc(func(turns []Turn) []Turn {
		if n <= 0 {
			return nil
		}
		if len(turns) <= n {
			return turns
		}
		return turns[len(turns)-n:]
	})
}

// TokenBudget replays the longest suffix of turns whose rendered text fits
// within maxTokens.
func TokenBudget(maxTokens int, counter TokenCounter) HistoryPolicy {
	return HistoryPolicyFunc(func(turns []Turn) []Turn {
		used := 0
		start := len(turns)
		for i := len(turns) - 1; i >= 0; i-- {
			cost := counter.Count(formatTurn(turns[i]))
			if used+cost > maxTokens {
				break
			}
			used += cost
			start = i
		}
		return turns[start:]
	})
}

// FormatHistory renders turns the way they appear in the prompt.
func FormatHistory(turns []Turn) string {
	var sb strings.Builder
	for _, t := range turns {
		sb.WriteString(formatTurn(t))
	}
	return strings.TrimSuffix(sb.String(), "\n")
}

func formatTurn(t Turn) string {
	return "Human: " + t.Question + "\nAssistant: " + t.Answer + "\n"
}

package conversation

import "strings"

// BudgetState is the outcome of the word-budget check for one turn.
type BudgetState int

const (
	// BudgetContinue means the turn may proceed normally.
	BudgetContinue BudgetState = iota

	// BudgetExhausted means the cumulative word count crossed the cutoff;
	// the responder must short-circuit with the break message and must not
	// call retrieval or the model.
	BudgetExhausted
)

// CheckBudget computes the cumulative word count across the conversation
// including the new turn and compares it against limit. The count only
// grows with the history, so once a conversation is exhausted it stays
// exhausted until reset.
func CheckBudget(history []Message, newMessage Message, limit int) BudgetState {
	if limit <= 0 {
		return BudgetExhausted
	}

	total := wordCount(newMessage.Content)
	for _, m := range history {
		total += wordCount(m.Content)
		if total > limit {
			return BudgetExhausted
		}
	}
	if total > limit {
		return BudgetExhausted
	}
	return BudgetContinue
}

// wordCount counts whitespace-delimited words.
func wordCount(s string) int {
	return len(strings.Fields(s))
}

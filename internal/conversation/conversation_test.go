package conversation

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func history(n int) []Message {
	msgs := make([]Message, n)
	for i := range msgs {
		role := RoleUser
		if i%2 == 1 {
			role = RoleAssistant
		}
		msgs[i] = Message{Role: role, Content: fmt.Sprintf("message %d", i)}
	}
	return msgs
}

func TestWindow(t *testing.T) {
	msgs := history(10)

	got := Window(msgs, 7)
	require.Len(t, got, 7)
	// Original order preserved, last 7 of 10.
	assert.Equal(t, "message 3", got[0].Content)
	assert.Equal(t, "message 9", got[6].Content)
}

func TestWindow_ShortHistory(t *testing.T) {
	msgs := history(3)

	got := Window(msgs, 7)
	require.Len(t, got, 3)
	assert.Equal(t, msgs, got)
}

func TestWindow_Empty(t *testing.T) {
	assert.Empty(t, Window(nil, 7))
	assert.Empty(t, Window(history(5), 0))
}

func TestStripCitations(t *testing.T) {
	msgs := []Message{
		{Role: RoleUser, Content: "what is a fugue?"},
		{Role: RoleAssistant, Content: "A fugue is... [1]", Citations: []Citation{
			{Index: 1, SourceRef: "doc-1", Snippet: "counterpoint"},
		}},
	}

	stripped := StripCitations(msgs)
	require.Len(t, stripped, 2)
	assert.Nil(t, stripped[1].Citations)
	assert.Equal(t, "A fugue is... [1]", stripped[1].Content)
	// Original untouched.
	assert.Len(t, msgs[1].Citations, 1)
}

func TestValidate(t *testing.T) {
	ok := Chat{Messages: []Message{
		{Role: RoleUser, Content: "hi"},
		{Role: RoleAssistant, Content: "hello", Citations: []Citation{{Index: 1, SourceRef: "a"}}},
	}}
	require.NoError(t, ok.Validate())

	bad := Chat{Messages: []Message{
		{Role: RoleUser, Content: "hi", Citations: []Citation{{Index: 1, SourceRef: "a"}}},
	}}
	assert.ErrorIs(t, bad.Validate(), ErrInvalidChat)

	unknownRole := Chat{Messages: []Message{{Role: "robot", Content: "beep"}}}
	assert.ErrorIs(t, unknownRole.Validate(), ErrInvalidChat)
}

func TestLastUser(t *testing.T) {
	chat := Chat{Messages: []Message{
		{Role: RoleUser, Content: "first"},
		{Role: RoleAssistant, Content: "reply"},
		{Role: RoleUser, Content: "second"},
	}}

	last, ok := chat.LastUser()
	require.True(t, ok)
	assert.Equal(t, "second", last.Content)

	_, ok = Chat{}.LastUser()
	assert.False(t, ok)
}

func TestCheckBudget(t *testing.T) {
	words := func(n int) string {
		return strings.TrimSpace(strings.Repeat("word ", n))
	}

	// 7999 words total proceeds; crossing 8000 on the next turn does not.
	hist := []Message{{Role: RoleUser, Content: words(7990)}}
	okTurn := Message{Role: RoleUser, Content: words(9)}
	assert.Equal(t, BudgetContinue, CheckBudget(hist, okTurn, 8000))

	hist = append(hist, okTurn)
	overTurn := Message{Role: RoleUser, Content: words(2)}
	assert.Equal(t, BudgetExhausted, CheckBudget(hist, overTurn, 8000))
}

func TestCheckBudget_ExactLimit(t *testing.T) {
	msg := Message{Role: RoleUser, Content: "one two three"}
	assert.Equal(t, BudgetContinue, CheckBudget(nil, msg, 3))
	assert.Equal(t, BudgetExhausted, CheckBudget(nil, msg, 2))
}

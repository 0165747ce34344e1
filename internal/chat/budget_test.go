package chat

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBudgetGuardAdmitsUnderLimit(t *testing.T) {
	g := NewBudgetGuard(2000)

	// 10 words estimate to 13 tokens; 1900 + 13 stays under 2000.
	msg := strings.Repeat("mot ", 10)
	assert.NoError(t, g.Check(1900, msg))
}

func TestBudgetGuardRejectsOverLimit(t *testing.T) {
	g := NewBudgetGuard(2000)

	// 100 words estimate to 130 tokens; 1900 + 130 exceeds 2000.
	msg := strings.Repeat("mot ", 100)
	err := g.Check(1900, msg)

	var budgetErr *BudgetError
	require.ErrorAs(t, err, &budgetErr)
	assert.Equal(t, 2000, budgetErr.Limit)
	// Used reports the stored count, not the rejected projection.
	assert.Equal(t, 1900, budgetErr.Used)
	assert.Equal(t, BudgetMessage, budgetErr.Error())
}

func TestBudgetGuardExactLimitAdmitted(t *testing.T) {
	g := NewBudgetGuard(13)
	msg := strings.Repeat("mot ", 10)
	assert.NoError(t, g.Check(0, msg))
	assert.Error(t, g.Check(1, msg))
}

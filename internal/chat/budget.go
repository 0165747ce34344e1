package chat

import (
	"github.com/AxelGiff/medicial/internal/tokens"
)

// BudgetMessage is returned to the client when a conversation has
// consumed its token allowance.
const BudgetMessage = "Cette conversation a atteint sa limite de taille. Veuillez en créer une nouvelle."

// BudgetError reports a conversation over its token allowance. Used is
// the conversation's stored token count at the time of rejection, not
// the projection that triggered it.
type BudgetError struct {
	Used  int
	Limit int
}

func (e *BudgetError) Error() string {
	return BudgetMessage
}

// BudgetGuard gates turn admission on the conversation's running token
// count. Admission uses the fast estimate; the precise estimate is
// reserved for post-turn bookkeeping.
type BudgetGuard struct {
	limit int
}

func NewBudgetGuard(limit int) *BudgetGuard {
	return &BudgetGuard{limit: limit}
}

// Check admits or rejects a new message against the running count.
func (g *BudgetGuard) Check(used int, message string) error {
	if used+tokens.EstimateFast(message) > g.limit {
		return &BudgetError{Used: used, Limit: g.limit}
	}
	return nil
}

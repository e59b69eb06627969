// Package credits meters billed actions against an external credit ledger.
// The ledger itself is a collaborator; this package only knows how to charge
// it and how to keep charging failures away from the primary result path.
package credits

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Receipt records one billed action.
type Receipt struct {
	RequestID      string         `json:"requestId"`
	ActionType     string         `json:"actionType"`
	Model          string         `json:"model"`
	InputTokens    int            `json:"inputTokens"`
	OutputTokens   int            `json:"outputTokens"`
	CreditsCharged int            `json:"creditsCharged"`
	Metadata       map[string]any `json:"metadata,omitempty"`
	Timestamp      time.Time      `json:"timestamp"`
}

// ErrInsufficientCredits is returned when an account cannot cover a charge.
var ErrInsufficientCredits = fmt.Errorf("insufficient credits")

// Ledger is the external credit accounting collaborator: debit an account
// for an action, fail if the balance cannot cover it.
type Ledger interface {
	Charge(ctx context.Context, accountID string, receipt Receipt) error
}

// MemoryLedger is an in-memory Ledger, used in tests and when no accounting
// backend is configured.
type MemoryLedger struct {
	mu       sync.Mutex
	balances map[string]int
	receipts []Receipt
}

// NewMemoryLedger creates a ledger with the given starting balances.
func NewMemoryLedger(balances map[string]int) *MemoryLedger {
	copied := make(map[string]int, len(balances))
	for id, bal := range balances {
		copied[id] = bal
	}
	return &MemoryLedger{balances: copied}
}

// Charge debits the account, failing on insufficient balance. Accounts not
// present in the balance table are treated as unmetered.
func (l *MemoryLedger) Charge(_ context.Context, accountID string, receipt Receipt) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if bal, ok := l.balances[accountID]; ok {
		if bal < receipt.CreditsCharged {
			return fmt.Errorf("account %s: %w", accountID, ErrInsufficientCredits)
		}
		l.balances[accountID] = bal - receipt.CreditsCharged
	}
	l.receipts = append(l.receipts, receipt)
	return nil
}

// Balance returns the remaining balance for an account.
func (l *MemoryLedger) Balance(accountID string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balances[accountID]
}

// Receipts returns a copy of all recorded receipts.
func (l *MemoryLedger) Receipts() []Receipt {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Receipt, len(l.receipts))
	copy(out, l.receipts)
	return out
}

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/experimentein/research-agent/internal/credits"
)

// SQLiteLedger implements credits.Ledger on the shared database. Accounts
// without a balance row are treated as unmetered; their receipts are still
// recorded.
type SQLiteLedger struct {
	db *DB
}

// NewSQLiteLedger creates a ledger using the given database.
func NewSQLiteLedger(db *DB) *SQLiteLedger {
	return &SQLiteLedger{db: db}
}

// Charge debits the account and records the receipt in one transaction.
func (l *SQLiteLedger) Charge(ctx context.Context, accountID string, receipt credits.Receipt) error {
	tx, err := l.db.sql.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin charge: %w", err)
	}
	defer tx.Rollback()

	var balance int
	err = tx.QueryRowContext(ctx,
		`SELECT balance FROM credit_accounts WHERE id = ?`, accountID,
	).Scan(&balance)
	switch {
	case err == sql.ErrNoRows:
		// unmetered account
	case err != nil:
		return fmt.Errorf("reading balance: %w", err)
	default:
		if balance < receipt.CreditsCharged {
			return fmt.Errorf("account %s: %w", accountID, credits.ErrInsufficientCredits)
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE credit_accounts SET balance = balance - ? WHERE id = ?`,
			receipt.CreditsCharged, accountID,
		); err != nil {
			return fmt.Errorf("debiting account: %w", err)
		}
	}

	var metadata sql.NullString
	if len(receipt.Metadata) > 0 {
		if data, err := json.Marshal(receipt.Metadata); err == nil {
			metadata = sql.NullString{String: string(data), Valid: true}
		}
	}

	ts := receipt.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO credit_receipts
		 (account_id, request_id, action_type, model, input_tokens, output_tokens, credits_charged, metadata, timestamp)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		accountID, receipt.RequestID, receipt.ActionType, receipt.Model,
		receipt.InputTokens, receipt.OutputTokens, receipt.CreditsCharged,
		metadata, ts.Format(time.DateTime),
	); err != nil {
		return fmt.Errorf("recording receipt: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit charge: %w", err)
	}
	return nil
}

// SetBalance creates or replaces an account balance.
func (l *SQLiteLedger) SetBalance(accountID string, balance int) error {
	_, err := l.db.sql.Exec(
		`INSERT INTO credit_accounts (id, balance) VALUES (?, ?)
		 ON CONFLICT(id) DO UPDATE SET balance = excluded.balance`,
		accountID, balance,
	)
	return err
}

// Balance returns the remaining balance for an account. Unknown accounts
// report zero.
func (l *SQLiteLedger) Balance(accountID string) int {
	var balance int
	if err := l.db.sql.QueryRow(
		`SELECT balance FROM credit_accounts WHERE id = ?`, accountID,
	).Scan(&balance); err != nil {
		return 0
	}
	return balance
}

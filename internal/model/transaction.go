// Package model defines the core domain models used throughout the application.
package model

import (
	"crypto/sha256"
	"fmt"
	"time"
)

// Transaction represents a single financial transaction from any source.
type Transaction struct {
	Date      time.Time
	Metadata  map[string]string // Free-text fields scraped from the source export
	ID        string
	Payee     string // Cleaned merchant/payee name
	Narration string // Raw transaction description
	AccountID string
	Flag      string // Reconciliation flag, e.g. "*" or "P"
	Type      string // Transaction type (e.g. DEBIT, CHECK, PAYMENT, ATM)
	Hash      string
	Source    string // File or feed the transaction came from
	Amount    float64
	Duplicate bool
}

// GenerateHash creates a unique hash for duplicate detection.
func (t *Transaction) GenerateHash() string {
	data := fmt.Sprintf("%s:%.2f:%s:%s",
		t.Date.Format("2006-01-02"),
		t.Amount,
		t.Payee,
		t.AccountID)
	hash := sha256.Sum256([]byte(data))
	return fmt.Sprintf("%x", hash)
}

// AsRecord flattens the transaction into the generic record shape the rule
// engine matches against. Metadata entries are merged in last so source
// exports can carry columns the model does not name.
func (t *Transaction) AsRecord() Record {
	record := Record{
		"payee":    t.Payee,
		"item":     t.Narration,
		"amount":   t.Amount,
		"txn_type": t.Type,
	}
	for k, v := range t.Metadata {
		record[k] = v
	}
	return record
}

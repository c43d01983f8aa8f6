// Package storage persists the set of previously imported transactions so
// duplicate detection works across runs. It never stores classification
// output.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver

	"github.com/siftledger/sift/internal/model"
)

// SeenStore is a SQLite-backed index of imported transactions.
type SeenStore struct {
	db     *sql.DB
	dbPath string
}

// NewSeenStore opens (or creates) the store at dbPath.
func NewSeenStore(dbPath string) (*SeenStore, error) {
	if dbPath == "" {
		return nil, fmt.Errorf("dbPath must not be empty")
	}

	if dbPath != ":memory:" {
		dir := filepath.Dir(dbPath)
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite doesn't benefit from multiple connections.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &SeenStore{db: db, dbPath: dbPath}, nil
}

// Close closes the database connection.
func (s *SeenStore) Close() error {
	return s.db.Close()
}

// Migrate brings the schema up to date.
func (s *SeenStore) Migrate(ctx context.Context) error {
	var version int
	if err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("failed to get schema version: %w", err)
	}

	if version < 1 {
		_, err := s.db.ExecContext(ctx, `
			CREATE TABLE IF NOT EXISTS seen_transactions (
				id TEXT PRIMARY KEY,
				hash TEXT NOT NULL,
				date TIMESTAMP NOT NULL,
				payee TEXT,
				narration TEXT,
				account_id TEXT,
				amount REAL,
				flag TEXT,
				source TEXT,
				metadata TEXT
			);
			CREATE INDEX IF NOT EXISTS idx_seen_transactions_date
				ON seen_transactions(date);
			PRAGMA user_version = 1;
		`)
		if err != nil {
			return fmt.Errorf("failed to migrate schema to v1: %w", err)
		}
	}

	return nil
}

// Save records transactions, ignoring ones already present.
func (s *SeenStore) Save(ctx context.Context, transactions []model.Transaction) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR IGNORE INTO seen_transactions (
			id, hash, date, payee, narration, account_id, amount, flag, source, metadata
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, txn := range transactions {
		if txn.Hash == "" {
			txn.Hash = txn.GenerateHash()
		}
		if txn.ID == "" {
			txn.ID = txn.Hash
		}

		metadataJSON := ""
		if len(txn.Metadata) > 0 {
			data, marshalErr := json.Marshal(txn.Metadata)
			if marshalErr != nil {
				return fmt.Errorf("failed to marshal metadata for %s: %w", txn.ID, marshalErr)
			}
			metadataJSON = string(data)
		}

		if _, err = stmt.ExecContext(ctx,
			txn.ID,
			txn.Hash,
			txn.Date,
			txn.Payee,
			txn.Narration,
			txn.AccountID,
			txn.Amount,
			txn.Flag,
			txn.Source,
			metadataJSON,
		); err != nil {
			return fmt.Errorf("failed to save transaction %s: %w", txn.ID, err)
		}
	}

	return tx.Commit()
}

// InWindow returns the stored transactions dated in [from, to), oldest
// first.
func (s *SeenStore) InWindow(ctx context.Context, from, to time.Time) ([]model.Transaction, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, hash, date, payee, narration, account_id, amount, flag, source, metadata
		FROM seen_transactions
		WHERE date >= ? AND date < ?
		ORDER BY date ASC
	`, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var transactions []model.Transaction
	for rows.Next() {
		var txn model.Transaction
		var metadataJSON string
		if err := rows.Scan(
			&txn.ID,
			&txn.Hash,
			&txn.Date,
			&txn.Payee,
			&txn.Narration,
			&txn.AccountID,
			&txn.Amount,
			&txn.Flag,
			&txn.Source,
			&metadataJSON,
		); err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		if metadataJSON != "" {
			if err := json.Unmarshal([]byte(metadataJSON), &txn.Metadata); err != nil {
				return nil, fmt.Errorf("failed to unmarshal metadata for %s: %w", txn.ID, err)
			}
		}
		transactions = append(transactions, txn)
	}

	return transactions, rows.Err()
}

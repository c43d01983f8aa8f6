// Package ofx parses OFX/QFX bank statement exports into transactions the
// rule engine can classify.
package ofx

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"strings"

	"github.com/aclindsa/ofxgo"

	"github.com/siftledger/sift/internal/model"
)

// Parser implements OFX/QFX file parsing.
type Parser struct{}

// NewParser creates a new OFX parser.
func NewParser() *Parser {
	return &Parser{}
}

var (
	severityRegex = regexp.MustCompile(`(?i)<SEVERITY>(Info|Warn|Error)</SEVERITY>`)
	tagFixRegex   = regexp.MustCompile(`(?m)^(\s*<[A-Z][A-Z0-9._]*[A-Z0-9])$`)
)

// preprocess fixes common formatting issues in real-world OFX files:
// leading whitespace before the header, mixed-case SEVERITY values, and
// SGML-style tags missing their closing bracket.
func (p *Parser) preprocess(content string) string {
	content = strings.TrimLeft(content, " \t\r\n")
	content = severityRegex.ReplaceAllStringFunc(content, strings.ToUpper)
	content = tagFixRegex.ReplaceAllString(content, "$1>")
	return content
}

// ParseFile parses an OFX/QFX statement and returns its transactions.
// The source argument is recorded on every transaction so dedupe can tell
// files apart.
func (p *Parser) ParseFile(_ context.Context, reader io.Reader, source string) ([]model.Transaction, error) {
	content, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read OFX file: %w", err)
	}

	resp, err := ofxgo.ParseResponse(strings.NewReader(p.preprocess(string(content))))
	if err != nil {
		return nil, fmt.Errorf("failed to parse OFX file: %w", err)
	}

	var transactions []model.Transaction
	var bankStmts, ccStmts int

	for _, msg := range resp.Bank {
		if stmt, ok := msg.(*ofxgo.StatementResponse); ok {
			bankStmts++
			if stmt.BankTranList == nil {
				continue
			}
			accountID := string(stmt.BankAcctFrom.AcctID)
			for _, ofxTx := range stmt.BankTranList.Transactions {
				transactions = append(transactions, p.convert(ofxTx, accountID, source))
			}
		}
	}

	for _, msg := range resp.CreditCard {
		if stmt, ok := msg.(*ofxgo.CCStatementResponse); ok {
			ccStmts++
			if stmt.BankTranList == nil {
				continue
			}
			accountID := string(stmt.CCAcctFrom.AcctID)
			for _, ofxTx := range stmt.BankTranList.Transactions {
				transactions = append(transactions, p.convert(ofxTx, accountID, source))
			}
		}
	}

	slog.Info("Parsed OFX file",
		"source", source,
		"total_transactions", len(transactions),
		"bank_statements", bankStmts,
		"cc_statements", ccStmts)

	return transactions, nil
}

// convert maps an OFX transaction onto the model, keeping the raw fields
// around as metadata so substring rules can see them.
func (p *Parser) convert(ofxTx ofxgo.Transaction, accountID, source string) model.Transaction {
	amountFloat, _ := ofxTx.TrnAmt.Float64()
	if amountFloat < 0 {
		amountFloat = -amountFloat
	}

	txn := model.Transaction{
		ID:        string(ofxTx.FiTID),
		Date:      ofxTx.DtPosted.Time,
		Payee:     p.extractPayee(ofxTx),
		Narration: string(ofxTx.Name),
		Amount:    amountFloat,
		AccountID: accountID,
		Flag:      "*",
		Source:    source,
		Type:      fmt.Sprintf("%v", ofxTx.TrnType),
		Metadata: map[string]string{
			"timestamp": ofxTx.DtPosted.Time.Format("2006-01-02 15:04:05"),
		},
	}

	if ofxTx.Memo != "" {
		txn.Metadata["memo"] = string(ofxTx.Memo)
	}
	if ofxTx.CheckNum != "" {
		txn.Metadata["check_number"] = string(ofxTx.CheckNum)
	}

	txn.Hash = txn.GenerateHash()
	return txn
}

// extractPayee tries to get a clean payee name from the OFX data.
func (p *Parser) extractPayee(tx ofxgo.Transaction) string {
	if tx.Payee != nil && tx.Payee.Name != "" {
		return string(tx.Payee.Name)
	}

	name := string(tx.Name)
	if tx.Memo != "" && isGenericDescription(name) {
		name = string(tx.Memo)
	}
	name = strings.TrimSpace(name)

	prefixes := []string{
		"POS PURCHASE ",
		"PURCHASE AUTHORIZED ON ",
		"DEBIT CARD PURCHASE ",
		"ACH DEBIT ",
		"CHECK CARD ",
		"VISA PURCHASE ",
		"MC PURCHASE ",
		"DEBIT PURCHASE ",
	}
	for _, prefix := range prefixes {
		if strings.HasPrefix(strings.ToUpper(name), prefix) {
			name = name[len(prefix):]
			break
		}
	}

	// Strip leading "MM/DD " date fragments.
	if len(name) > 5 && name[2] == '/' && name[5] == ' ' {
		name = strings.TrimSpace(name[6:])
	}

	return name
}

// isGenericDescription checks if a transaction name is too generic to be a
// useful payee.
func isGenericDescription(name string) bool {
	switch strings.ToUpper(name) {
	case "DEBIT", "CREDIT", "PURCHASE", "PAYMENT", "POS TRANSACTION", "CARD PURCHASE":
		return true
	}
	return false
}

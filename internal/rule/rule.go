// Package rule implements the ordered rule list that decides which two
// accounts a transaction debits and credits, and whether it is masked.
package rule

import (
	"fmt"
	"strings"

	"github.com/siftledger/sift/internal/common"
)

// Recognized rule field names. These are the keys accepted in rule-set
// files; anything else in a rule definition is ignored unless the loader
// runs in strict mode.
const (
	FieldPayee         = "payee"
	FieldItem          = "item"
	FieldTxnType       = "txn_type"
	FieldTxnMethod     = "txn_method"
	FieldTxnInOut      = "txn_inout"
	FieldStartTime     = "start_time"
	FieldEndTime       = "end_time"
	FieldMethodAccount = "method_account"
	FieldTargetAccount = "target_account"
	// Kept misspelled for compatibility with existing rule files.
	FieldSeparator  = "seperator"
	FieldTxnStatus  = "txn_status"
	FieldTxnMeta    = "txn_meta"
	FieldTxnInput   = "txn_input"
	FieldTxnOutput  = "txn_output"
	FieldTxnMask    = "txn_mask"
	FieldTxnExclude = "txn_exclude"
)

// fieldOrder is the canonical enumeration order for rule fields, used
// wherever the engine iterates a rule's fields. Keeping it explicit avoids
// reflection and makes the predicate evaluation order deterministic.
var fieldOrder = []string{
	FieldPayee, FieldItem, FieldTxnType, FieldTxnMethod,
	FieldTxnInOut, FieldStartTime, FieldEndTime, FieldMethodAccount,
	FieldTargetAccount, FieldSeparator, FieldTxnStatus, FieldTxnMeta,
	FieldTxnInput, FieldTxnOutput, FieldTxnMask, FieldTxnExclude,
}

// Rule is one user-authored matching clause: a set of optional predicates
// plus up to two resulting account assignments. Rules are immutable after
// construction. The empty string means "unset" for every field, matching
// the semantics of the rule-set file format, where an absent key and an
// empty value are indistinguishable.
type Rule struct {
	Payee         string
	Item          string
	TxnType       string
	TxnMethod     string
	TxnInOut      string
	StartTime     string
	EndTime       string
	MethodAccount string
	TargetAccount string
	Separator     string
	TxnStatus     string
	TxnMeta       string
	TxnInput      string
	TxnOutput     string
	TxnMask       string
	TxnExclude    string
}

// Fields returns the rule field names in canonical order.
func Fields() []string {
	out := make([]string, len(fieldOrder))
	copy(out, fieldOrder)
	return out
}

// Value returns the rule's value for the named field, or "" when unset.
func (r *Rule) Value(field string) string {
	switch field {
	case FieldPayee:
		return r.Payee
	case FieldItem:
		return r.Item
	case FieldTxnType:
		return r.TxnType
	case FieldTxnMethod:
		return r.TxnMethod
	case FieldTxnInOut:
		return r.TxnInOut
	case FieldStartTime:
		return r.StartTime
	case FieldEndTime:
		return r.EndTime
	case FieldMethodAccount:
		return r.MethodAccount
	case FieldTargetAccount:
		return r.TargetAccount
	case FieldSeparator:
		return r.Separator
	case FieldTxnStatus:
		return r.TxnStatus
	case FieldTxnMeta:
		return r.TxnMeta
	case FieldTxnInput:
		return r.TxnInput
	case FieldTxnOutput:
		return r.TxnOutput
	case FieldTxnMask:
		return r.TxnMask
	case FieldTxnExclude:
		return r.TxnExclude
	}
	return ""
}

// set assigns the rule's value for the named field. Unknown field names are
// ignored; the loader filters keys before calling this.
func (r *Rule) set(field, value string) {
	switch field {
	case FieldPayee:
		r.Payee = value
	case FieldItem:
		r.Item = value
	case FieldTxnType:
		r.TxnType = value
	case FieldTxnMethod:
		r.TxnMethod = value
	case FieldTxnInOut:
		r.TxnInOut = value
	case FieldStartTime:
		r.StartTime = value
	case FieldEndTime:
		r.EndTime = value
	case FieldMethodAccount:
		r.MethodAccount = value
	case FieldTargetAccount:
		r.TargetAccount = value
	case FieldSeparator:
		r.Separator = value
	case FieldTxnStatus:
		r.TxnStatus = value
	case FieldTxnMeta:
		r.TxnMeta = value
	case FieldTxnInput:
		r.TxnInput = value
	case FieldTxnOutput:
		r.TxnOutput = value
	case FieldTxnMask:
		r.TxnMask = value
	case FieldTxnExclude:
		r.TxnExclude = value
	}
}

// IsMethodRule reports whether the rule is a method-shortcut rule: exactly
// txn_method and method_account are set and nothing else. Such rules only
// ever map a payment method to a debit account and are evaluated in their
// own pass, before the general rules.
func (r *Rule) IsMethodRule() bool {
	set := 0
	for _, field := range fieldOrder {
		if r.Value(field) == "" {
			continue
		}
		if field != FieldTxnMethod && field != FieldMethodAccount {
			return false
		}
		set++
	}
	return set == 2
}

// Validate rejects rules with no predicate at all: at least one field
// besides the two account fields must be set. An account-only rule can
// never match anything and is a configuration error.
func (r *Rule) Validate() error {
	for _, field := range fieldOrder {
		if field == FieldMethodAccount || field == FieldTargetAccount {
			continue
		}
		if r.Value(field) != "" {
			return nil
		}
	}
	return fmt.Errorf("%w: no matching field set: %s", common.ErrInvalidRule, r.String())
}

// String dumps every field of the rule, set or not, for diagnostics.
func (r *Rule) String() string {
	var b strings.Builder
	for i, field := range fieldOrder {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%s=%q", field, r.Value(field))
	}
	return b.String()
}

// candidates splits the rule's value for a field into its match
// alternatives: on the rule's separator with surrounding whitespace
// trimmed, or the whole value when no separator is set.
func (r *Rule) candidates(field string) []string {
	value := r.Value(field)
	if r.Separator == "" {
		return []string{value}
	}
	parts := strings.Split(value, r.Separator)
	for i, p := range parts {
		parts[i] = strings.TrimSpace(p)
	}
	return parts
}

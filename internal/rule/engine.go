package rule

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/siftledger/sift/internal/common"
	"github.com/siftledger/sift/internal/model"
)

// FieldResolver translates a rule field name into the corresponding key of
// an input record, so one rule set can match exports with differently named
// columns. Returning ok=false means the record has no column for that
// field, which fails the predicate for equality-matched fields.
type FieldResolver func(field string) (key string, ok bool)

// Definition is one parsed rule entry from a rule-set file: recognized
// field names mapped to scalar values.
type Definition = map[string]any

// Config is a parsed rule set: the two required fallback accounts plus the
// ordered rule definitions.
type Config struct {
	DefaultMethodAccount string
	DefaultTargetAccount string
	Rules                []Definition
}

// Result is the outcome of classifying one record: the two accounts to
// post against, the mask flag, and a copy of the last matching rule's
// non-account fields for downstream inspection. Both accounts are always
// populated, falling back to the engine's defaults.
type Result struct {
	Fields        map[string]string
	MethodAccount string
	TargetAccount string
	IsMask        bool
}

// Engine evaluates an ordered rule list against transaction records. It is
// immutable after construction; concurrent Match calls on one engine are
// safe.
type Engine struct {
	defaultMethod string
	defaultTarget string
	rules         []Rule
}

// NewEngine builds an engine from a parsed rule set. It fails if either
// default account is missing or any rule has no predicate; a broken rule
// set is a configuration error, not something to limp past.
func NewEngine(cfg *Config) (*Engine, error) {
	if cfg.DefaultMethodAccount == "" {
		return nil, fmt.Errorf("%w: default_method_account is required", common.ErrMissingConfig)
	}
	if cfg.DefaultTargetAccount == "" {
		return nil, fmt.Errorf("%w: default_target_account is required", common.ErrMissingConfig)
	}

	rules := make([]Rule, 0, len(cfg.Rules))
	for i, def := range cfg.Rules {
		r := newRule(def)
		if err := r.Validate(); err != nil {
			return nil, fmt.Errorf("rule %d: %w", i, err)
		}
		rules = append(rules, r)
	}

	return &Engine{
		defaultMethod: cfg.DefaultMethodAccount,
		defaultTarget: cfg.DefaultTargetAccount,
		rules:         rules,
	}, nil
}

// newRule copies the recognized fields out of a definition. Unrecognized
// keys are dropped here; strict-mode rejection happens in the loader.
func newRule(def Definition) Rule {
	var r Rule
	for _, field := range fieldOrder {
		if v, ok := def[field]; ok {
			r.set(field, formatScalar(v))
		}
	}
	return r
}

// Rules returns the engine's rules in declaration order.
func (e *Engine) Rules() []Rule {
	out := make([]Rule, len(e.rules))
	copy(out, e.rules)
	return out
}

// Accounts returns the sorted, deduplicated set of every account named by
// the rule set: both defaults plus every method/target account. Callers
// rely on the ordering for reproducible output.
func (e *Engine) Accounts() []string {
	seen := map[string]bool{
		e.defaultMethod: true,
		e.defaultTarget: true,
	}
	for i := range e.rules {
		if a := e.rules[i].MethodAccount; a != "" {
			seen[a] = true
		}
		if a := e.rules[i].TargetAccount; a != "" {
			seen[a] = true
		}
	}
	accounts := make([]string, 0, len(seen))
	for a := range seen {
		accounts = append(accounts, a)
	}
	sort.Strings(accounts)
	return accounts
}

// Match classifies one record against the rule list. A nil resolver maps
// field names to record keys verbatim.
//
// Two passes run over the rules in declaration order. The first handles
// method-shortcut rules only: each one whose txn_method equals the
// record's resolves the debit account, last match winning. The second
// evaluates every remaining rule's full predicate; matches overwrite the
// accumulated result field by field, except that a mask match is final
// and stops evaluation on the spot.
//
// Match is total: it never fails, and both result accounts are always
// non-empty thanks to the configured defaults.
func (e *Engine) Match(record model.Record, resolver FieldResolver) Result {
	if resolver == nil {
		resolver = func(field string) (string, bool) { return field, true }
	}

	result := Result{
		MethodAccount: e.defaultMethod,
		TargetAccount: e.defaultTarget,
	}

	for i := range e.rules {
		r := &e.rules[i]
		if !r.IsMethodRule() {
			continue
		}
		key, ok := resolver(FieldTxnMethod)
		if !ok {
			continue
		}
		if have, present := recordScalar(record, key); present && have == r.TxnMethod {
			result.MethodAccount = r.MethodAccount
		}
	}

	for i := range e.rules {
		r := &e.rules[i]
		if r.IsMethodRule() {
			continue
		}
		matched, masked := evaluate(r, record, resolver)
		if !matched {
			continue
		}
		result.IsMask = masked
		if masked {
			break
		}
		if r.MethodAccount != "" {
			result.MethodAccount = r.MethodAccount
		}
		if r.TargetAccount != "" {
			result.TargetAccount = r.TargetAccount
		}
		result.Fields = matchedFields(r)
	}

	return result
}

// evaluate runs one rule's predicate against a record. Every set field
// must pass independently; accounts, the separator, and the exclusion
// string are modifiers, not predicates. The returned mask state is only
// meaningful when the rule matched.
func evaluate(r *Rule, record model.Record, resolver FieldResolver) (matched, masked bool) {
	for _, field := range fieldOrder {
		switch field {
		case FieldMethodAccount, FieldTargetAccount, FieldSeparator, FieldTxnExclude:
			continue
		}
		if r.Value(field) == "" {
			continue
		}
		want := r.candidates(field)

		ok := false
		switch field {
		case FieldTxnMeta, FieldTxnMask:
			// Substring search over every string value in the record, in
			// sorted key order. For txn_mask the mask state is reassigned
			// on every hit, so the last scanned matching value decides
			// whether the exclusion cancels the mask.
			for _, have := range recordStrings(record) {
				for _, w := range want {
					if !strings.Contains(have, w) {
						continue
					}
					ok = true
					if field == FieldTxnMask {
						masked = r.TxnExclude == "" || !strings.Contains(have, r.TxnExclude)
					}
				}
			}
		default:
			key, resolved := resolver(field)
			if !resolved {
				return false, false
			}
			have, present := recordScalar(record, key)
			if !present {
				return false, false
			}
			for _, w := range want {
				if w == have {
					ok = true
					break
				}
			}
		}

		if !ok {
			return false, false
		}
	}
	return true, masked
}

// matchedFields copies a rule's set non-account fields for the result.
func matchedFields(r *Rule) map[string]string {
	fields := make(map[string]string)
	for _, field := range fieldOrder {
		if field == FieldMethodAccount || field == FieldTargetAccount {
			continue
		}
		if v := r.Value(field); v != "" {
			fields[field] = v
		}
	}
	return fields
}

// recordScalar resolves a record key to its scalar value in string form.
// Missing keys and nested mappings report present=false.
func recordScalar(record model.Record, key string) (value string, present bool) {
	v, ok := record[key]
	if !ok {
		return "", false
	}
	switch t := v.(type) {
	case string, int, int64, uint64, float64, float32, bool:
		return formatScalar(t), true
	default:
		return "", false
	}
}

// recordStrings collects every string value in the record, recursing one
// mapping level, in sorted key order so mask evaluation is deterministic.
func recordStrings(record model.Record) []string {
	keys := make([]string, 0, len(record))
	for k := range record {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var values []string
	for _, k := range keys {
		switch v := record[k].(type) {
		case string:
			values = append(values, v)
		case map[string]any:
			values = append(values, recordStrings(v)...)
		}
	}
	return values
}

// formatScalar renders a scalar rule or record value as a string, so
// numeric YAML values and numeric record columns compare consistently.
func formatScalar(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case uint64:
		return strconv.FormatUint(t, 10)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprintf("%v", v)
	}
}

package domain

import "context"

// Rule inspects the pending changes of a transaction before it commits. A
// non-nil error aborts the transaction.
type Rule interface {
	Name() string
	Evaluate(ctx context.Context, view TransactionView, changes []Change) error
}

// RulesEngine orchestrates rule evaluation.
type RulesEngine struct {
	rules []Rule
}

// NewRulesEngine constructs an engine instance.
func NewRulesEngine() *RulesEngine {
	return &RulesEngine{}
}

// DefaultRules returns an engine with the built-in integrity rules registered.
func DefaultRules() *RulesEngine {
	e := NewRulesEngine()
	e.Register(RelationReferencesRule())
	e.Register(RequiredTagsRule())
	return e
}

// Register appends a rule to the engine.
func (e *RulesEngine) Register(rule Rule) {
	e.rules = append(e.rules, rule)
}

// Rules lists the registered rule names in evaluation order.
func (e *RulesEngine) Rules() []string {
	out := make([]string, len(e.rules))
	for i, r := range e.rules {
		out[i] = r.Name()
	}
	return out
}

// Evaluate runs every registered rule and stops at the first failure.
func (e *RulesEngine) Evaluate(ctx context.Context, view TransactionView, changes []Change) error {
	if e == nil {
		return nil
	}
	for _, rule := range e.rules {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := rule.Evaluate(ctx, view, changes); err != nil {
			return err
		}
	}
	return nil
}

// RuleFunc adapts a function to the Rule interface.
type RuleFunc struct {
	RuleName string
	Fn       func(ctx context.Context, view TransactionView, changes []Change) error
}

// Name implements Rule.
func (r RuleFunc) Name() string { return r.RuleName }

// Evaluate implements Rule.
func (r RuleFunc) Evaluate(ctx context.Context, view TransactionView, changes []Change) error {
	return r.Fn(ctx, view, changes)
}

// RelationReferencesRule rejects created relations that name a variant
// missing from the transaction's view.
func RelationReferencesRule() Rule {
	return RuleFunc{
		RuleName: "relation_references",
		Fn: func(_ context.Context, view TransactionView, changes []Change) error {
			for _, c := range changes {
				if c.Entity != EntityRelation || c.Action != ActionCreate {
					continue
				}
				rel, ok := view.FindRelation(c.RecordID)
				if !ok {
					continue
				}
				for _, id := range rel.VariantIDs {
					if _, found := view.FindVariant(id); !found {
						return UnknownVariant(id)
					}
				}
			}
			return nil
		},
	}
}

// RequiredTagsRule checks that every created or updated record still carries
// its kind's required tags.
func RequiredTagsRule() Rule {
	return RuleFunc{
		RuleName: "required_tags",
		Fn: func(_ context.Context, _ TransactionView, changes []Change) error {
			for _, c := range changes {
				if c.Action == ActionDelete {
					continue
				}
				policy, ok := PolicyFor(c.Entity)
				if !ok {
					continue
				}
				if err := ValidateCreate(c.Tags, policy); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

// Package policy evaluates configurable review rules over a settled
// payment to decide whether it auto-confirms or is held in paid for a
// human look. Rules are govaluate boolean expressions over the
// settlement parameters; the first rule that evaluates true holds the
// order.
package policy

import (
	"fmt"

	"github.com/Knetic/govaluate"
)

// RuleConfig is one named review rule.
type RuleConfig struct {
	Name       string
	Expression string
}

// Decision is the outcome of a policy evaluation.
type Decision struct {
	RequireReview bool
	MatchedRule   string
}

// Reviewer holds the compiled rule set.
type Reviewer struct {
	rules []compiledRule
}

type compiledRule struct {
	name string
	expr *govaluate.EvaluableExpression
}

// NewReviewer compiles the rule expressions up front so evaluation on
// the settlement path cannot fail on syntax.
func NewReviewer(rules []RuleConfig) (*Reviewer, error) {
	r := &Reviewer{}
	for _, rc := range rules {
		expr, err := govaluate.NewEvaluableExpression(rc.Expression)
		if err != nil {
			return nil, fmt.Errorf("policy: compiling rule %q: %w", rc.Name, err)
		}
		r.rules = append(r.rules, compiledRule{name: rc.Name, expr: expr})
	}
	return r, nil
}

// Evaluate runs the rules against the settlement parameters. Available
// parameters: amount_minor, currency, gateway, payment_method.
func (r *Reviewer) Evaluate(params map[string]any) (Decision, error) {
	for _, rule := range r.rules {
		out, err := rule.expr.Evaluate(params)
		if err != nil {
			return Decision{}, fmt.Errorf("policy: evaluating rule %q: %w", rule.name, err)
		}
		hold, ok := out.(bool)
		if !ok {
			return Decision{}, fmt.Errorf("policy: rule %q did not evaluate to a boolean", rule.name)
		}
		if hold {
			return Decision{RequireReview: true, MatchedRule: rule.name}, nil
		}
	}
	return Decision{}, nil
}

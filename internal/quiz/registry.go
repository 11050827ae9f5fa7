package quiz

import (
	"context"
	"fmt"

	"github.com/polzovatel/autoanswer/internal/browser"
)

// Rule ties a handler to the selectors that must and must not be on the page.
type Rule struct {
	Handler   Handler
	Required  []string
	Forbidden []string
}

// To adds required selectors.
func (r *Rule) To(selectors ...string) *Rule {
	r.Required = append(r.Required, selectors...)
	return r
}

// NotTo adds forbidden selectors.
func (r *Rule) NotTo(selectors ...string) *Rule {
	r.Forbidden = append(r.Forbidden, selectors...)
	return r
}

// Registry resolves a page to a handler. Rules are tried in registration
// order and the first match wins, so a rule that needs an exclusion to stay
// specific must carry it in its forbidden set.
type Registry struct {
	rules []*Rule
}

func NewRegistry() *Registry { return &Registry{} }

// Register appends a rule for h and returns it for chaining.
func (r *Registry) Register(h Handler) *Rule {
	rule := &Rule{Handler: h}
	r.rules = append(r.rules, rule)
	return rule
}

func (r *Registry) Rules() []*Rule { return r.rules }

// Resolve returns the handler of the first matching rule.
func (r *Registry) Resolve(ctx context.Context, s browser.Surface) (Handler, error) {
	for _, rule := range r.rules {
		ok, err := rule.Matches(ctx, s)
		if err != nil {
			return nil, err
		}
		if ok {
			return rule.Handler, nil
		}
	}
	return nil, ErrNoHandler
}

// Matches short-circuits on the first missing required selector and on the
// first present forbidden one.
func (rule *Rule) Matches(ctx context.Context, s browser.Surface) (bool, error) {
	for _, sel := range rule.Required {
		ok, err := s.Exists(ctx, sel)
		if err != nil {
			return false, fmt.Errorf("probe %q: %w", sel, err)
		}
		if !ok {
			return false, nil
		}
	}
	for _, sel := range rule.Forbidden {
		ok, err := s.Exists(ctx, sel)
		if err != nil {
			return false, fmt.Errorf("probe %q: %w", sel, err)
		}
		if ok {
			return false, nil
		}
	}
	return true, nil
}

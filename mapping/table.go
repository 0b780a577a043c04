// Package mapping holds the ordered namespace rules that drive relocation.
package mapping

import (
	"errors"
	"fmt"
	"strings"
)

// ErrEmptyNamespace is returned when a rule has no from-namespace.
var ErrEmptyNamespace = errors.New("empty namespace")

// Rule relocates the namespace From to To.
type Rule struct {
	From string `yaml:"from" json:"from"`
	To   string `yaml:"to" json:"to"`
}

func (r Rule) String() string {
	return r.From + "=" + r.To
}

// Table is an ordered list of rules. Lookups walk the rules in insertion
// order and the first rule whose From matches wins; later rules are never
// consulted once one matches, whatever their specificity.
//
// Matching is a bare prefix test: a rule "pkg1" matches "pkg10.Type" too.
// Use WithBoundary to require a separator after the prefix.
type Table struct {
	rules    []Rule
	binary   []Rule // rules in slash-delimited internal form
	boundary bool
}

// Option configures a Table.
type Option func(*Table)

// WithBoundary requires the text following a matched prefix to be empty or
// start with '.', '/' or '$'.
func WithBoundary() Option {
	return func(t *Table) {
		t.boundary = true
	}
}

// NewTable builds a table from rules, keeping their order. Duplicate From
// values are kept; the first one listed shadows the rest.
func NewTable(rules []Rule, opts ...Option) (*Table, error) {
	t := &Table{
		rules:  make([]Rule, 0, len(rules)),
		binary: make([]Rule, 0, len(rules)),
	}
	for i, r := range rules {
		if r.From == "" {
			return nil, fmt.Errorf("rule %d: from: %w", i, ErrEmptyNamespace)
		}
		t.rules = append(t.rules, r)
		t.binary = append(t.binary, Rule{From: BinaryName(r.From), To: BinaryName(r.To)})
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

// MustTable is NewTable for rule sets known to be valid. It panics on error.
func MustTable(rules ...Rule) *Table {
	t, err := NewTable(rules)
	if err != nil {
		panic(err)
	}
	return t
}

// Len returns the number of rules.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.rules)
}

// Rules returns a copy of the rules in lookup order.
func (t *Table) Rules() []Rule {
	if t == nil {
		return nil
	}
	out := make([]Rule, len(t.rules))
	copy(out, t.rules)
	return out
}

// Boundary reports whether the table requires a separator after a prefix.
func (t *Table) Boundary() bool {
	return t != nil && t.boundary
}

// MatchBinary returns the first rule, in internal form, whose From is a
// prefix of the slash-delimited internal name.
func (t *Table) MatchBinary(internalName string) (Rule, bool) {
	if t == nil {
		return Rule{}, false
	}
	return t.match(t.binary, internalName)
}

// LookupBinary maps an internal name such as "pkg/sub/Type". Only the
// matched prefix is replaced; the remainder is kept as is.
func (t *Table) LookupBinary(internalName string) (string, bool) {
	r, ok := t.MatchBinary(internalName)
	if !ok {
		return "", false
	}
	return r.To + internalName[len(r.From):], true
}

// MatchSource returns the first rule whose From equals or prefixes text.
func (t *Table) MatchSource(text string) (Rule, bool) {
	if t == nil {
		return Rule{}, false
	}
	return t.match(t.rules, text)
}

// LookupSource maps a dotted source occurrence such as "pkg.sub.Type".
func (t *Table) LookupSource(text string) (string, bool) {
	r, ok := t.MatchSource(text)
	if !ok {
		return "", false
	}
	return r.To + text[len(r.From):], true
}

func (t *Table) match(rules []Rule, name string) (Rule, bool) {
	for _, r := range rules {
		if name == r.From {
			return r, true
		}
		if !strings.HasPrefix(name, r.From) {
			continue
		}
		if t.boundary && !isBoundary(name[len(r.From)]) {
			continue
		}
		return r, true
	}
	return Rule{}, false
}

func isBoundary(c byte) bool {
	return c == '.' || c == '/' || c == '$'
}

// BinaryName converts a dotted namespace to its slash-delimited internal form.
func BinaryName(name string) string {
	return strings.ReplaceAll(name, ".", "/")
}

// ParseRule parses "from=to". A colon is accepted as separator as well.
func ParseRule(s string) (Rule, error) {
	sep := strings.IndexAny(s, "=:")
	if sep < 0 {
		return Rule{}, fmt.Errorf("invalid rule %q: want from=to", s)
	}
	r := Rule{From: strings.TrimSpace(s[:sep]), To: strings.TrimSpace(s[sep+1:])}
	if r.From == "" {
		return Rule{}, fmt.Errorf("invalid rule %q: %w", s, ErrEmptyNamespace)
	}
	return r, nil
}

// ParseRules parses each entry with ParseRule, keeping order.
func ParseRules(specs []string) ([]Rule, error) {
	rules := make([]Rule, 0, len(specs))
	for _, s := range specs {
		r, err := ParseRule(s)
		if err != nil {
			return nil, err
		}
		rules = append(rules, r)
	}
	return rules, nil
}

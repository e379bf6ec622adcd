// Package intent maps free-text user input to a coarse intent label and
// extracts the arguments the matching tool needs.
//
// Classification is first-match over an ordered rule list: labels are tried
// in declaration order and, within a label, patterns in declaration order.
// Declaration order is therefore the priority between overlapping labels.
package intent

import (
	"fmt"
	"regexp"
)

// Label names an intent. The empty label means no tool is needed.
type Label string

// Built-in labels, in their default priority order.
const (
	None       Label = ""
	Vision     Label = "vision"
	Weather    Label = "weather"
	Search     Label = "search"
	News       Label = "news"
	Time       Label = "time"
	System     Label = "system"
	Calculator Label = "calculator"
	Files      Label = "files"
)

// Rule binds a label to the patterns that select it.
type Rule struct {
	Label    Label
	Patterns []string
}

// DefaultRules returns the built-in rule table in priority order.
func DefaultRules() []Rule {
	return []Rule{
		{Vision, []string{
			`what do you see`, `analyze.*image`, `look at`, `describe.*image`,
			`what.*in.*image`, `camera`, `webcam`, `picture`, `photo`,
		}},
		{Weather, []string{
			`weather`, `temperature`, `forecast`, `rain`, `sunny`, `cloudy`,
			`hot`, `cold`, `climate`,
		}},
		{Search, []string{
			`search`, `look up`, `find.*information`, `google`, `what is`,
			`tell me about`, `research`,
		}},
		{News, []string{
			`news`, `headlines`, `current events`, `what.*happening`, `latest news`,
		}},
		{Time, []string{
			`time`, `what time`, `current time`, `clock`, `date`,
		}},
		{System, []string{
			`system info`, `computer`, `cpu`, `memory`, `disk space`, `performance`,
		}},
		{Calculator, []string{
			`calculate`, `math`, `\d+.*[\+\-\*\/].*\d+`, `compute`,
			`addition`, `subtract`, `multiply`, `divide`,
		}},
		{Files, []string{
			`list files`, `show files`, `directory`, `folder contents`, `what files`,
		}},
	}
}

type compiledRule struct {
	label    Label
	patterns []*regexp.Regexp
}

// Classifier is an immutable, compiled rule table. It is safe for
// concurrent use.
type Classifier struct {
	rules []compiledRule
}

// NewClassifier compiles rules. Patterns are matched case-insensitively.
func NewClassifier(rules []Rule) (*Classifier, error) {
	c := &Classifier{rules: make([]compiledRule, 0, len(rules))}
	seen := make(map[Label]bool, len(rules))

	for _, r := range rules {
		if r.Label == None {
			return nil, fmt.Errorf("intent: rule with empty label")
		}
		if seen[r.Label] {
			return nil, fmt.Errorf("intent: duplicate rule for %q", r.Label)
		}
		seen[r.Label] = true

		cr := compiledRule{label: r.Label}
		for _, p := range r.Patterns {
			re, err := regexp.Compile("(?i)" + p)
			if err != nil {
				return nil, fmt.Errorf("intent: %s pattern %q: %w", r.Label, p, err)
			}
			cr.patterns = append(cr.patterns, re)
		}
		c.rules = append(c.rules, cr)
	}
	return c, nil
}

// Default returns a classifier over DefaultRules.
func Default() *Classifier {
	c, err := NewClassifier(DefaultRules())
	if err != nil {
		panic(err) // built-in table is static
	}
	return c
}

// Classify returns the first label whose patterns match text.
func (c *Classifier) Classify(text string) (Label, bool) {
	for _, r := range c.rules {
		for _, re := range r.patterns {
			if re.MatchString(text) {
				return r.label, true
			}
		}
	}
	return None, false
}

// Labels returns the labels in priority order.
func (c *Classifier) Labels() []Label {
	out := make([]Label, len(c.rules))
	for i, r := range c.rules {
		out[i] = r.label
	}
	return out
}

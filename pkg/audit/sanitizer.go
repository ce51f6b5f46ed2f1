package audit

import (
	"regexp"
)

// The trail is metadata-only by contract, but parts of it echo caller input
// (search strings, filenames). The sanitizer masks anything in free text
// that looks like direct identifiers before the entry is persisted.

type Rule struct {
	Name    string
	Pattern string
	Mask    string
}

type compiledRule struct {
	rule Rule
	re   *regexp.Regexp
}

type Sanitizer struct {
	rules []compiledRule
}

func NewSanitizer(rules []Rule) (*Sanitizer, error) {
	var compiled []compiledRule
	for _, rule := range rules {
		re, err := regexp.Compile(rule.Pattern)
		if err != nil {
			return nil, err
		}
		compiled = append(compiled, compiledRule{rule: rule, re: re})
	}
	return &Sanitizer{rules: compiled}, nil
}

func DefaultRules() []Rule {
	return []Rule{
		{Name: "SSN", Pattern: `\b\d{3}-\d{2}-\d{4}\b`, Mask: "***-**-****"},
		{Name: "Email", Pattern: `\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`, Mask: "***@***"},
		{Name: "Phone", Pattern: `\b\d{3}-\d{3}-\d{4}\b|\(\d{3}\)\s?\d{3}-\d{4}`, Mask: "(***) ***-****"},
		{Name: "Date", Pattern: `\b\d{4}-\d{2}-\d{2}\b|\b\d{1,2}/\d{1,2}/\d{4}\b`, Mask: "####-##-##"},
	}
}

func (s *Sanitizer) Scrub(text string) string {
	if s == nil || text == "" {
		return text
	}
	for _, rule := range s.rules {
		text = rule.re.ReplaceAllString(text, rule.rule.Mask)
	}
	return text
}

// Package filter decides which parsed receipts make it into the ledger.
// Type filters use the stable classification vocabulary; body filters are
// regex lists applied to the decoded message text, so they see through
// base64 and quoted-printable transfer encodings.
package filter

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/dhcgn/grab-receipts-exporter/receipt"
)

// Options captures the filtering configuration.
type Options struct {
	OnlyTypes    []string
	ExcludeTypes []string
	IncludeBody  []string
	ExcludeBody  []string
}

// Filter holds the compiled filter state for one run.
type Filter struct {
	onlyTypes    map[receipt.ServiceType]bool
	excludeTypes map[receipt.ServiceType]bool
	includeBody  []*regexp.Regexp
	excludeBody  []*regexp.Regexp
}

// New compiles the options into a Filter. Type labels outside the
// classification vocabulary and conflicting type lists are rejected.
func New(opts Options) (*Filter, error) {
	if len(opts.OnlyTypes) > 0 && len(opts.ExcludeTypes) > 0 {
		return nil, fmt.Errorf("only-type and exclude-type are mutually exclusive")
	}
	if len(opts.IncludeBody) > 0 && len(opts.ExcludeBody) > 0 {
		return nil, fmt.Errorf("include-body and exclude-body are mutually exclusive")
	}

	onlyTypes, err := parseTypes(opts.OnlyTypes)
	if err != nil {
		return nil, fmt.Errorf("only-type: %w", err)
	}
	excludeTypes, err := parseTypes(opts.ExcludeTypes)
	if err != nil {
		return nil, fmt.Errorf("exclude-type: %w", err)
	}

	includeBody, err := compilePatterns(opts.IncludeBody)
	if err != nil {
		return nil, fmt.Errorf("compile include-body pattern: %w", err)
	}
	excludeBody, err := compilePatterns(opts.ExcludeBody)
	if err != nil {
		return nil, fmt.Errorf("compile exclude-body pattern: %w", err)
	}

	return &Filter{
		onlyTypes:    onlyTypes,
		excludeTypes: excludeTypes,
		includeBody:  includeBody,
		excludeBody:  excludeBody,
	}, nil
}

// Allows returns true if a receipt of the given type, with the given decoded
// body text, should be exported.
func (f *Filter) Allows(serviceType receipt.ServiceType, text string) bool {
	if len(f.onlyTypes) > 0 && !f.onlyTypes[serviceType] {
		return false
	}
	if f.excludeTypes[serviceType] {
		return false
	}

	if len(f.includeBody) > 0 && !matchAny(f.includeBody, text) {
		return false
	}
	if matchAny(f.excludeBody, text) {
		return false
	}

	return true
}

func parseTypes(labels []string) (map[receipt.ServiceType]bool, error) {
	types := make(map[receipt.ServiceType]bool, len(labels))
	for _, label := range labels {
		label = strings.TrimSpace(label)
		if label == "" {
			continue
		}
		serviceType, ok := receipt.ParseServiceType(label)
		if !ok {
			return nil, fmt.Errorf("unknown service type %q", label)
		}
		types[serviceType] = true
	}
	return types, nil
}

func compilePatterns(patterns []string) ([]*regexp.Regexp, error) {
	compiled := make([]*regexp.Regexp, 0, len(patterns))
	for _, pattern := range patterns {
		pattern = strings.TrimSpace(pattern)
		if pattern == "" {
			continue
		}
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("compile %q: %w", pattern, err)
		}
		compiled = append(compiled, re)
	}
	return compiled, nil
}

func matchAny(patterns []*regexp.Regexp, text string) bool {
	for _, re := range patterns {
		if re.MatchString(text) {
			return true
		}
	}
	return false
}

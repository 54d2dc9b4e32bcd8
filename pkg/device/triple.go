package device

import (
	"strings"
)

// osPlaceholder is substituted with the platform in rule templates.
const osPlaceholder = "<os>"

// TripleRule maps a device name to a target triple. A rule matches when the
// name contains every substring in All and, if Any is set, at least one
// substring in Any.
type TripleRule struct {
	All      []string
	Any      []string
	Template string
}

func (r TripleRule) Matches(name string) bool {
	for _, s := range r.All {
		if !strings.Contains(name, s) {
			return false
		}
	}
	if len(r.Any) == 0 {
		return true
	}
	for _, s := range r.Any {
		if strings.Contains(name, s) {
			return true
		}
	}
	return false
}

// Triple renders the rule's template for platform.
func (r TripleRule) Triple(platform Platform) string {
	return strings.ReplaceAll(r.Template, osPlaceholder, string(platform))
}

// DefaultRules is evaluated top to bottom; the first match wins, so specific
// models must precede the vendor catch-alls.
var DefaultRules = []TripleRule{
	// Apple
	{All: []string{"Apple", "M1"}, Template: "m1-moltenvk-<os>"},
	{All: []string{"Apple", "M2"}, Template: "m1-moltenvk-<os>"},
	// NVIDIA
	{All: []string{"RTX", "2080"}, Template: "turing-rtx2080-<os>"},
	{All: []string{"A100", "SXM4"}, Template: "ampere-rtx3080-<os>"},
	{All: []string{"RTX", "3090"}, Template: "ampere-rtx3090-<os>"},
	{All: []string{"RTX", "4090"}, Template: "ampere-rtx3090-<os>"},
	{All: []string{"RTX", "4000"}, Template: "turing-rtx4000-<os>"},
	{All: []string{"RTX", "5000"}, Template: "turing-rtx5000-<os>"},
	{All: []string{"RTX", "6000"}, Template: "turing-rtx6000-<os>"},
	{All: []string{"RTX", "8000"}, Template: "turing-rtx8000-<os>"},
	// AMD
	{All: []string{"AMD", "7900"}, Template: "rdna3-7900-<os>"},
	{Any: []string{"AMD", "Radeon"}, Template: "rdna2-unknown-<os>"},
}

// MatchTriple returns the triple of the first rule in rules matching name.
// When nothing matches it returns ErrUnrecognizedHardware, which callers
// should treat as a diagnostic rather than a failure.
func MatchTriple(rules []TripleRule, name string, platform Platform) (string, error) {
	for _, r := range rules {
		if r.Matches(name) {
			return r.Triple(platform), nil
		}
	}
	return "", ErrUnrecognizedHardware.WithDetails("device_name", name)
}

// TargetTriple matches name against DefaultRules.
func TargetTriple(name string, platform Platform) (string, error) {
	return MatchTriple(DefaultRules, name, platform)
}

// TripleFamily returns the architecture family of a triple, e.g. "rdna3"
// for "rdna3-7900-linux".
func TripleFamily(triple string) string {
	family, _, _ := strings.Cut(triple, "-")
	return family
}

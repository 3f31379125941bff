// Package matcher compares a candidate voiceprint against a profile's enrolled
// voiceprints using cosine similarity.
//
// A candidate is accepted when it resembles ANY enrolled sample closely enough.
// Enrollment sessions differ in microphone, room and noise, so requiring every
// sample to match (or averaging them) rejects genuine users far more often.
package matcher

import (
	"fmt"
	"math"
	"strings"

	"github.com/dalemusser/voxsecure/internal/app/system/voiceerr"
)

// Rule is the comparison applied between a similarity score and the threshold.
type Rule string

const (
	// RuleGTE accepts a score that is greater than or equal to the threshold.
	RuleGTE Rule = "gte"
	// RuleGT accepts a score that is strictly greater than the threshold.
	RuleGT Rule = "gt"
)

// DefaultThreshold is the cosine similarity a candidate must exceed.
const DefaultThreshold = 0.95

// DefaultRule is the comparison used when none is configured. A score equal
// to the threshold is rejected.
const DefaultRule = RuleGT

// ParseRule converts a configuration string to a Rule.
func ParseRule(s string) (Rule, error) {
	switch Rule(strings.ToLower(strings.TrimSpace(s))) {
	case "":
		return DefaultRule, nil
	case RuleGTE:
		return RuleGTE, nil
	case RuleGT:
		return RuleGT, nil
	}
	return "", fmt.Errorf("unknown match rule %q (want gte or gt)", s)
}

// Accepts reports whether score passes threshold under the rule.
func (r Rule) Accepts(score, threshold float64) bool {
	if r == RuleGT {
		return score > threshold
	}
	return score >= threshold
}

// Policy is the similarity threshold policy applied by Match.
type Policy struct {
	Threshold float64
	Rule      Rule
}

// DefaultPolicy returns the policy used when nothing is configured.
func DefaultPolicy() Policy {
	return Policy{Threshold: DefaultThreshold, Rule: DefaultRule}
}

// Validate checks that the threshold lies in the cosine range and the rule is known.
func (p Policy) Validate() error {
	if math.IsNaN(p.Threshold) || p.Threshold < -1 || p.Threshold > 1 {
		return fmt.Errorf("threshold %v outside [-1, 1]", p.Threshold)
	}
	if p.Rule != RuleGTE && p.Rule != RuleGT {
		return fmt.Errorf("unknown match rule %q", p.Rule)
	}
	return nil
}

// Result is the verdict of one Match call plus its evidence.
type Result struct {
	Matched bool
	// Best is the highest score in All, or 0 when All is empty.
	Best float64
	// All holds one score per enrolled vector, in enrollment order.
	All []float64
}

// Match scores candidate against every enrolled vector and applies the policy.
//
// An empty enrolled set is not an error: it yields Matched=false, Best=0 and
// an empty (non-nil) All. Vectors of different length fail with
// voiceerr.ErrDimensionMismatch.
func Match[V ~[]float64](candidate V, enrolled []V, policy Policy) (Result, error) {
	res := Result{All: make([]float64, 0, len(enrolled))}

	for i, e := range enrolled {
		if len(e) != len(candidate) {
			return Result{}, fmt.Errorf("%w: enrolled[%d] has %d dimensions, candidate has %d",
				voiceerr.ErrDimensionMismatch, i, len(e), len(candidate))
		}
		s := Cosine(candidate, e)
		if i == 0 || s > res.Best {
			res.Best = s
		}
		if policy.Rule.Accepts(s, policy.Threshold) {
			res.Matched = true
		}
		res.All = append(res.All, s)
	}

	return res, nil
}

// Cosine returns the cosine similarity of a and b, which must have equal
// length. When either vector has zero magnitude the similarity is 0.
func Cosine[V ~[]float64](a, b V) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	s := dot / math.Sqrt(na*nb)
	// Clamp rounding drift into the cosine range.
	switch {
	case s > 1:
		s = 1
	case s < -1:
		s = -1
	}
	return s
}

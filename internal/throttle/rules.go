// Package throttle paces the send loop: after the send that brings the
// cumulative counter to a multiple of a rule's threshold, the loop pauses
// for that rule's duration. When several thresholds divide the counter only
// the largest one fires.
package throttle

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Rule pauses for Pause after every Threshold sends.
type Rule struct {
	Threshold int
	Pause     time.Duration
}

func (r Rule) String() string {
	return fmt.Sprintf("%d=%s", r.Threshold, r.Pause)
}

// Rules is a rule table ordered by descending threshold.
type Rules []Rule

// NewRules builds a rule table from threshold -> pause-seconds pairs.
// Entries with a non-positive threshold or a negative pause are dropped.
func NewRules(table map[int]int) Rules {
	rules := make(Rules, 0, len(table))
	for threshold, secs := range table {
		if threshold <= 0 || secs < 0 {
			continue
		}
		rules = append(rules, Rule{Threshold: threshold, Pause: time.Duration(secs) * time.Second})
	}
	sort.Slice(rules, func(i, j int) bool {
		return rules[i].Threshold > rules[j].Threshold
	})
	return rules
}

func (rs Rules) String() string {
	parts := make([]string, len(rs))
	for i, r := range rs {
		parts[i] = r.String()
	}
	return strings.Join(parts, ",")
}

// largestDividing returns the rule with the largest threshold dividing n.
func (rs Rules) largestDividing(n int) (Rule, bool) {
	if n <= 0 {
		return Rule{}, false
	}
	for _, r := range rs {
		if n%r.Threshold == 0 {
			return r, true
		}
	}
	return Rule{}, false
}

package config

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/alecthomas/kong"
)

// SpamRules maps a sent-count threshold to the seconds to pause after it.
// The text form is a comma separated list of threshold=seconds pairs.
type SpamRules map[int]int

// UnmarshalText parses "500=10,1000=30". Thresholds of zero are kept here
// and dropped when the throttle builds its rule table.
func (r *SpamRules) UnmarshalText(text []byte) error {
	rules := SpamRules{}
	for _, pair := range strings.Split(string(text), ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		k, v, ok := strings.Cut(pair, "=")
		if !ok {
			k, v, ok = strings.Cut(pair, ":")
		}
		if !ok {
			return fmt.Errorf("spam rule %q: expected threshold=seconds", pair)
		}
		threshold, err := strconv.Atoi(strings.TrimSpace(k))
		if err != nil {
			return fmt.Errorf("spam rule %q: threshold: %w", pair, err)
		}
		secs, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("spam rule %q: seconds: %w", pair, err)
		}
		if threshold < 0 || secs < 0 {
			return fmt.Errorf("spam rule %q: values must be non-negative", pair)
		}
		rules[threshold] = secs
	}
	*r = rules
	return nil
}

// Decode lets kong read the rules from a flag or an environment variable.
func (r *SpamRules) Decode(ctx *kong.DecodeContext) error {
	token, err := ctx.Scan.PopValue("spam-rules")
	if err != nil {
		return err
	}
	switch v := token.Value.(type) {
	case string:
		return r.UnmarshalText([]byte(v))
	case SpamRules:
		*r = v
		return nil
	default:
		return fmt.Errorf("spam rules: unexpected value %v", v)
	}
}

func (r SpamRules) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

func (r SpamRules) String() string {
	keys := make([]int, 0, len(r))
	for k := range r {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%d=%d", k, r[k])
	}
	return strings.Join(parts, ",")
}

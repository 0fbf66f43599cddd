package ruleset

import (
	"bytes"
	"fmt"
	"math"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	dErrors "underwriter/pkg/domain-errors"
)

// Category keys accepted under `rules:` in a rule set document.
const (
	keyHardStops  = "hard_stops"
	keyReferrals  = "referral_triggers"
	keyAcceptance = "acceptance_rules"
)

// weightTolerance bounds float noise when checking that weights sum to 1.0.
const weightTolerance = 1e-9

type document struct {
	Name        string            `yaml:"name"`
	Version     string            `yaml:"version"`
	Description string            `yaml:"description"`
	LastUpdated string            `yaml:"last_updated"`
	Weights     *Weights          `yaml:"weights"`
	Parameters  Parameters        `yaml:"parameters"`
	Rules       map[string][]Rule `yaml:"rules"`
}

// Parse decodes and validates a rule set document. YAML and JSON are both
// accepted. name is the source key; when the document names itself the two
// must agree ignoring case. Names are lowercased. Every failure is a config
// error.
func Parse(name string, data []byte) (*RuleSet, error) {
	var doc document
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeConfig, fmt.Sprintf("rule set %q: decode", name))
	}

	if doc.Name == "" {
		doc.Name = name
	}
	if name != "" && !strings.EqualFold(strings.TrimSpace(doc.Name), strings.TrimSpace(name)) {
		return nil, configErrorf(name, "document names itself %q", doc.Name)
	}

	rs := &RuleSet{
		Name:        strings.ToLower(strings.TrimSpace(doc.Name)),
		Version:     strings.TrimSpace(doc.Version),
		Description: doc.Description,
		Parameters:  doc.Parameters,
	}
	if rs.Name == "" {
		return nil, configErrorf(name, "name is required")
	}
	if doc.LastUpdated != "" {
		ts, err := parseTimestamp(doc.LastUpdated)
		if err != nil {
			return nil, configErrorf(rs.Name, "last_updated %q is not a date", doc.LastUpdated)
		}
		rs.LastUpdated = ts
	}
	if rs.Version == "" {
		return nil, configErrorf(rs.Name, "version is required")
	}
	if rs.Parameters.LookbackYears == 0 {
		rs.Parameters.LookbackYears = DefaultLookbackYears
	}
	if rs.Parameters.LookbackYears < 0 {
		return nil, configErrorf(rs.Name, "parameters.lookback_years must be positive")
	}
	for vt, sev := range rs.Parameters.ViolationSeverity {
		if !vt.IsValid() || !sev.IsValid() {
			return nil, configErrorf(rs.Name, "parameters.violation_severity has invalid entry %s=%s", vt, sev)
		}
	}

	if doc.Weights == nil {
		return nil, configErrorf(rs.Name, "weights are required")
	}
	if err := ValidateWeights(*doc.Weights); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeConfig, fmt.Sprintf("rule set %q", rs.Name))
	}
	rs.Weights = *doc.Weights

	for key := range doc.Rules {
		switch key {
		case keyHardStops, keyReferrals, keyAcceptance:
		default:
			return nil, configErrorf(rs.Name, "unknown rule category %q", key)
		}
	}
	rs.HardStops = doc.Rules[keyHardStops]
	rs.Referrals = doc.Rules[keyReferrals]
	rs.Acceptance = doc.Rules[keyAcceptance]

	seen := make(map[string]struct{})
	for _, c := range []struct {
		key    string
		rules  []Rule
		action Action
	}{
		{keyHardStops, rs.HardStops, ActionDeny},
		{keyReferrals, rs.Referrals, ActionRefer},
		{keyAcceptance, rs.Acceptance, ActionAccept},
	} {
		if len(c.rules) == 0 {
			return nil, configErrorf(rs.Name, "%s must not be empty", c.key)
		}
		for i := range c.rules {
			r := &c.rules[i]
			if r.Action == "" {
				r.Action = c.action
			}
			if err := validateRule(*r, c.action); err != nil {
				return nil, configErrorf(rs.Name, "%s[%d]: %v", c.key, i, err)
			}
			if _, dup := seen[r.ID]; dup {
				return nil, configErrorf(rs.Name, "duplicate rule id %q", r.ID)
			}
			seen[r.ID] = struct{}{}
		}
	}

	return rs, nil
}

// ValidateWeights checks the weights are non-negative and sum to 1.0, both
// as floats and once rounded to parts per million.
func ValidateWeights(w Weights) error {
	for _, v := range []float64{w.Driver, w.Vehicle, w.History, w.Credit} {
		if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return dErrors.New(dErrors.CodeConfig, "weights must be finite and non-negative")
		}
	}
	if math.Abs(w.Sum()-1.0) > weightTolerance {
		return dErrors.Newf(dErrors.CodeConfig, "weights must sum to 1.0, got %.6f", w.Sum())
	}
	if sum := w.Fixed().Sum(); sum != PartsPerMillion {
		return dErrors.Newf(dErrors.CodeConfig, "weights must sum to 1.0 at parts-per-million precision, got %d ppm", sum)
	}
	return nil
}

func validateRule(r Rule, want Action) error {
	if strings.TrimSpace(r.ID) == "" {
		return fmt.Errorf("rule id is required")
	}
	if r.Action != want {
		return fmt.Errorf("rule %s: action %q does not belong in this category", r.ID, r.Action)
	}
	if strings.TrimSpace(r.Reason) == "" {
		return fmt.Errorf("rule %s: reason is required", r.ID)
	}
	if err := r.When.validate(); err != nil {
		return fmt.Errorf("rule %s: %w", r.ID, err)
	}
	return nil
}

func parseTimestamp(s string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339Nano, time.DateTime, time.DateOnly} {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised timestamp %q", s)
}

func configErrorf(name, format string, args ...any) error {
	return dErrors.Newf(dErrors.CodeConfig, "rule set %q: %s", name, fmt.Sprintf(format, args...))
}

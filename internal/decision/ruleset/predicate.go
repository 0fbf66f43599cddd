package ruleset

import (
	"fmt"
	"slices"

	"gopkg.in/yaml.v3"

	"underwriter/internal/decision/models"
)

// PredicateKind tags the variant held by a Predicate.
type PredicateKind string

const (
	KindThresholdCount PredicateKind = "threshold_count"
	KindLookbackWindow PredicateKind = "lookback_window"
	KindThreshold      PredicateKind = "threshold"
	KindMembership     PredicateKind = "membership"
	KindFlag           PredicateKind = "flag"
	KindAllOf          PredicateKind = "all_of"
	KindAnyOf          PredicateKind = "any_of"
)

// Subject is the driver history list an event predicate counts over.
type Subject string

const (
	SubjectViolations Subject = "violations"
	SubjectClaims     Subject = "claims"
)

// Quantifier decides how per-driver or per-vehicle results combine.
// Total sums counts across drivers and only applies to threshold_count.
type Quantifier string

const (
	QuantifierAny   Quantifier = "any"
	QuantifierAll   Quantifier = "all"
	QuantifierTotal Quantifier = "total"
)

// CompareOp is a numeric comparison.
type CompareOp string

const (
	OpGTE CompareOp = "gte"
	OpGT  CompareOp = "gt"
	OpLTE CompareOp = "lte"
	OpLT  CompareOp = "lt"
	OpEQ  CompareOp = "eq"
	OpNE  CompareOp = "ne"
)

// Compare applies the operator to lhs and rhs.
func (op CompareOp) Compare(lhs, rhs float64) bool {
	switch op {
	case OpGTE:
		return lhs >= rhs
	case OpGT:
		return lhs > rhs
	case OpLTE:
		return lhs <= rhs
	case OpLT:
		return lhs < rhs
	case OpEQ:
		return lhs == rhs
	case OpNE:
		return lhs != rhs
	}
	return false
}

// Fact names an application-derived value a predicate can test.
type Fact string

const (
	FactDriverAge          Fact = "driver_age"
	FactYearsLicensed      Fact = "years_licensed"
	FactCoverageLapseDays  Fact = "coverage_lapse_days"
	FactCreditScore        Fact = "credit_score"
	FactVehicleValue       Fact = "vehicle_value"
	FactVehicleYear        Fact = "vehicle_year"
	FactAnnualMileage      Fact = "annual_mileage"
	FactLicenseStatus      Fact = "license_status"
	FactLicenseState       Fact = "license_state"
	FactVehicleCategory    Fact = "vehicle_category"
	FactPreviousCarrier    Fact = "previous_carrier"
	FactFraudConviction    Fact = "fraud_conviction"
	FactAntiTheft          Fact = "anti_theft"
	FactHasPreviousCarrier Fact = "has_previous_carrier"
)

// Scope is the entity a fact is read from.
type Scope int

const (
	ScopeApplication Scope = iota
	ScopeDriver
	ScopeVehicle
)

type factSpec struct {
	scope Scope
	kind  PredicateKind
}

var facts = map[Fact]factSpec{
	FactDriverAge:          {ScopeDriver, KindThreshold},
	FactYearsLicensed:      {ScopeDriver, KindThreshold},
	FactCoverageLapseDays:  {ScopeApplication, KindThreshold},
	FactCreditScore:        {ScopeApplication, KindThreshold},
	FactVehicleValue:       {ScopeVehicle, KindThreshold},
	FactVehicleYear:        {ScopeVehicle, KindThreshold},
	FactAnnualMileage:      {ScopeVehicle, KindThreshold},
	FactLicenseStatus:      {ScopeDriver, KindMembership},
	FactLicenseState:       {ScopeDriver, KindMembership},
	FactVehicleCategory:    {ScopeVehicle, KindMembership},
	FactPreviousCarrier:    {ScopeApplication, KindMembership},
	FactFraudConviction:    {ScopeApplication, KindFlag},
	FactAntiTheft:          {ScopeVehicle, KindFlag},
	FactHasPreviousCarrier: {ScopeApplication, KindFlag},
}

// Scope returns the entity the fact is read from.
func (f Fact) Scope() Scope {
	return facts[f].scope
}

// MissingPolicy resolves a predicate over an absent optional fact.
type MissingPolicy string

const (
	MissingNoMatch MissingPolicy = "no_match"
	MissingMatch   MissingPolicy = "match"
)

// EventFilter selects violations or claims. Empty lists match everything.
type EventFilter struct {
	ViolationTypes []models.ViolationType `yaml:"violation_types,omitempty"`
	Severities     []models.Severity      `yaml:"severities,omitempty"`
	ClaimTypes     []models.ClaimType     `yaml:"claim_types,omitempty"`
	AtFault        *bool                  `yaml:"at_fault,omitempty"`
}

// CountPredicate counts matching events per driver inside a lookback window.
type CountPredicate struct {
	Subject       Subject     `yaml:"subject"`
	Filter        EventFilter `yaml:",inline"`
	LookbackYears int         `yaml:"lookback_years,omitempty"`
	Op            CompareOp   `yaml:"op"`
	Value         int         `yaml:"value"`
	Quantifier    Quantifier  `yaml:"quantifier,omitempty"`
}

// WindowPredicate matches when a matching event happened within WithinDays of
// the submission date.
type WindowPredicate struct {
	Subject    Subject     `yaml:"subject"`
	Filter     EventFilter `yaml:",inline"`
	WithinDays int         `yaml:"within_days"`
	Quantifier Quantifier  `yaml:"quantifier,omitempty"`
}

// ThresholdPredicate compares a numeric fact with Op/Value or an inclusive
// Min/Max range.
type ThresholdPredicate struct {
	Fact       Fact          `yaml:"fact"`
	Op         CompareOp     `yaml:"op,omitempty"`
	Value      *float64      `yaml:"value,omitempty"`
	Min        *float64      `yaml:"min,omitempty"`
	Max        *float64      `yaml:"max,omitempty"`
	Quantifier Quantifier    `yaml:"quantifier,omitempty"`
	Missing    MissingPolicy `yaml:"missing,omitempty"`
}

// MembershipPredicate tests a categorical fact against a value set.
type MembershipPredicate struct {
	Fact       Fact       `yaml:"fact"`
	Values     []string   `yaml:"values"`
	Not        bool       `yaml:"not,omitempty"`
	Quantifier Quantifier `yaml:"quantifier,omitempty"`
}

// FlagPredicate tests a boolean fact.
type FlagPredicate struct {
	Fact       Fact       `yaml:"fact"`
	Value      bool       `yaml:"value"`
	Quantifier Quantifier `yaml:"quantifier,omitempty"`
}

// Predicate is a closed tagged union: Kind selects which payload is set.
type Predicate struct {
	Kind       PredicateKind
	Count      *CountPredicate
	Window     *WindowPredicate
	Threshold  *ThresholdPredicate
	Membership *MembershipPredicate
	Flag       *FlagPredicate
	Children   []Predicate
}

// UnmarshalYAML reads the kind tag and decodes the matching payload.
func (p *Predicate) UnmarshalYAML(node *yaml.Node) error {
	var tag struct {
		Kind PredicateKind `yaml:"kind"`
	}
	if err := node.Decode(&tag); err != nil {
		return err
	}
	p.Kind = tag.Kind
	if err := checkKeys(node, tag.Kind); err != nil {
		return err
	}

	switch tag.Kind {
	case KindThresholdCount:
		p.Count = &CountPredicate{}
		return node.Decode(p.Count)
	case KindLookbackWindow:
		p.Window = &WindowPredicate{}
		return node.Decode(p.Window)
	case KindThreshold:
		p.Threshold = &ThresholdPredicate{}
		return node.Decode(p.Threshold)
	case KindMembership:
		p.Membership = &MembershipPredicate{}
		return node.Decode(p.Membership)
	case KindFlag:
		p.Flag = &FlagPredicate{}
		return node.Decode(p.Flag)
	case KindAllOf, KindAnyOf:
		var composite struct {
			Predicates []Predicate `yaml:"predicates"`
		}
		if err := node.Decode(&composite); err != nil {
			return err
		}
		p.Children = composite.Predicates
		return nil
	case "":
		return fmt.Errorf("line %d: predicate kind is required", node.Line)
	default:
		return fmt.Errorf("line %d: unknown predicate kind %q", node.Line, tag.Kind)
	}
}

var eventKeys = []string{"subject", "violation_types", "severities", "claim_types", "at_fault", "quantifier"}

var allowedKeys = map[PredicateKind][]string{
	KindThresholdCount: append([]string{"lookback_years", "op", "value"}, eventKeys...),
	KindLookbackWindow: append([]string{"within_days"}, eventKeys...),
	KindThreshold:      {"fact", "op", "value", "min", "max", "quantifier", "missing"},
	KindMembership:     {"fact", "values", "not", "quantifier"},
	KindFlag:           {"fact", "value", "quantifier"},
	KindAllOf:          {"predicates"},
	KindAnyOf:          {"predicates"},
}

// checkKeys rejects fields that do not belong to the predicate kind.
func checkKeys(node *yaml.Node, kind PredicateKind) error {
	allowed, ok := allowedKeys[kind]
	if !ok || node.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		key := node.Content[i].Value
		if key == "kind" || slices.Contains(allowed, key) {
			continue
		}
		return fmt.Errorf("line %d: field %q not allowed in a %s predicate", node.Content[i].Line, key, kind)
	}
	return nil
}

// validate checks the payload matches the kind and references known facts.
func (p Predicate) validate() error {
	switch p.Kind {
	case KindThresholdCount:
		c := p.Count
		if c == nil {
			return fmt.Errorf("threshold_count payload missing")
		}
		if err := validateSubject(c.Subject, c.Filter); err != nil {
			return err
		}
		if c.LookbackYears < 0 {
			return fmt.Errorf("lookback_years must not be negative")
		}
		if c.Value < 0 {
			return fmt.Errorf("count value must not be negative")
		}
		if err := validateOp(c.Op); err != nil {
			return err
		}
		return validateQuantifier(c.Quantifier, true)
	case KindLookbackWindow:
		w := p.Window
		if w == nil {
			return fmt.Errorf("lookback_window payload missing")
		}
		if err := validateSubject(w.Subject, w.Filter); err != nil {
			return err
		}
		if w.WithinDays <= 0 {
			return fmt.Errorf("within_days must be positive")
		}
		return validateQuantifier(w.Quantifier, false)
	case KindThreshold:
		t := p.Threshold
		if t == nil {
			return fmt.Errorf("threshold payload missing")
		}
		if err := validateFact(t.Fact, KindThreshold); err != nil {
			return err
		}
		hasRange := t.Min != nil || t.Max != nil
		switch {
		case t.Value != nil && hasRange:
			return fmt.Errorf("threshold on %s sets both value and min/max", t.Fact)
		case t.Value != nil:
			if err := validateOp(t.Op); err != nil {
				return err
			}
		case hasRange:
			if t.Min != nil && t.Max != nil && *t.Min > *t.Max {
				return fmt.Errorf("threshold on %s has min above max", t.Fact)
			}
		default:
			return fmt.Errorf("threshold on %s needs value or min/max", t.Fact)
		}
		switch t.Missing {
		case "", MissingMatch, MissingNoMatch:
		default:
			return fmt.Errorf("unknown missing policy %q", t.Missing)
		}
		return validateQuantifier(t.Quantifier, false)
	case KindMembership:
		m := p.Membership
		if m == nil {
			return fmt.Errorf("membership payload missing")
		}
		if err := validateFact(m.Fact, KindMembership); err != nil {
			return err
		}
		if len(m.Values) == 0 {
			return fmt.Errorf("membership on %s needs at least one value", m.Fact)
		}
		return validateQuantifier(m.Quantifier, false)
	case KindFlag:
		f := p.Flag
		if f == nil {
			return fmt.Errorf("flag payload missing")
		}
		if err := validateFact(f.Fact, KindFlag); err != nil {
			return err
		}
		return validateQuantifier(f.Quantifier, false)
	case KindAllOf, KindAnyOf:
		if len(p.Children) == 0 {
			return fmt.Errorf("%s needs at least one predicate", p.Kind)
		}
		for i, child := range p.Children {
			if err := child.validate(); err != nil {
				return fmt.Errorf("%s[%d]: %w", p.Kind, i, err)
			}
		}
		return nil
	}
	return fmt.Errorf("unknown predicate kind %q", p.Kind)
}

func validateSubject(s Subject, f EventFilter) error {
	switch s {
	case SubjectViolations:
		if len(f.ClaimTypes) > 0 || f.AtFault != nil {
			return fmt.Errorf("claim filters set on a violations predicate")
		}
		for _, t := range f.ViolationTypes {
			if !t.IsValid() {
				return fmt.Errorf("unknown violation type %q", t)
			}
		}
		for _, sev := range f.Severities {
			if !sev.IsValid() {
				return fmt.Errorf("unknown severity %q", sev)
			}
		}
	case SubjectClaims:
		if len(f.ViolationTypes) > 0 || len(f.Severities) > 0 {
			return fmt.Errorf("violation filters set on a claims predicate")
		}
		for _, t := range f.ClaimTypes {
			if !t.IsValid() {
				return fmt.Errorf("unknown claim type %q", t)
			}
		}
	default:
		return fmt.Errorf("unknown subject %q", s)
	}
	return nil
}

func validateFact(f Fact, kind PredicateKind) error {
	spec, ok := facts[f]
	if !ok {
		return fmt.Errorf("unknown fact %q", f)
	}
	if spec.kind != kind {
		return fmt.Errorf("fact %q cannot be used in a %s predicate", f, kind)
	}
	return nil
}

func validateOp(op CompareOp) error {
	switch op {
	case OpGTE, OpGT, OpLTE, OpLT, OpEQ, OpNE:
		return nil
	}
	return fmt.Errorf("unknown comparison %q", op)
}

func validateQuantifier(q Quantifier, allowTotal bool) error {
	switch q {
	case "", QuantifierAny, QuantifierAll:
		return nil
	case QuantifierTotal:
		if allowTotal {
			return nil
		}
	}
	return fmt.Errorf("unknown quantifier %q", q)
}

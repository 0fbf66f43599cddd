package rules

import (
	"slices"
	"strings"
	"time"

	"underwriter/internal/decision/ruleset"
)

// Match is the single dispatcher over the predicate variants.
func Match(p ruleset.Predicate, f *Facts) bool {
	switch p.Kind {
	case ruleset.KindThresholdCount:
		return matchCount(p.Count, f)
	case ruleset.KindLookbackWindow:
		return matchWindow(p.Window, f)
	case ruleset.KindThreshold:
		return matchThreshold(p.Threshold, f)
	case ruleset.KindMembership:
		return matchMembership(p.Membership, f)
	case ruleset.KindFlag:
		return matchFlag(p.Flag, f)
	case ruleset.KindAllOf:
		for _, child := range p.Children {
			if !Match(child, f) {
				return false
			}
		}
		return len(p.Children) > 0
	case ruleset.KindAnyOf:
		for _, child := range p.Children {
			if Match(child, f) {
				return true
			}
		}
		return false
	}
	return false
}

func matchCount(c *ruleset.CountPredicate, f *Facts) bool {
	from := f.cutoff(c.LookbackYears)
	counts := make([]int, len(f.Drivers))
	for i, d := range f.Drivers {
		counts[i] = countEvents(c.Subject, c.Filter, d, f, from)
	}

	threshold := float64(c.Value)
	if c.Quantifier == ruleset.QuantifierTotal {
		total := 0
		for _, n := range counts {
			total += n
		}
		return c.Op.Compare(float64(total), threshold)
	}
	return quantify(c.Quantifier, len(counts), func(i int) bool {
		return c.Op.Compare(float64(counts[i]), threshold)
	})
}

func matchWindow(w *ruleset.WindowPredicate, f *Facts) bool {
	from := f.AsOf.AddDate(0, 0, -w.WithinDays)
	return quantify(w.Quantifier, len(f.Drivers), func(i int) bool {
		return countEvents(w.Subject, w.Filter, f.Drivers[i], f, from) > 0
	})
}

func countEvents(subject ruleset.Subject, filter ruleset.EventFilter, d DriverFacts, f *Facts, from time.Time) int {
	n := 0
	switch subject {
	case ruleset.SubjectViolations:
		for _, v := range d.Violations {
			if !f.inWindow(v.Date, from) {
				continue
			}
			if len(filter.ViolationTypes) > 0 && !slices.Contains(filter.ViolationTypes, v.Type) {
				continue
			}
			if len(filter.Severities) > 0 && !slices.Contains(filter.Severities, v.Severity) {
				continue
			}
			n++
		}
	case ruleset.SubjectClaims:
		for _, c := range d.Claims {
			if !f.inWindow(c.Date, from) {
				continue
			}
			if len(filter.ClaimTypes) > 0 && !slices.Contains(filter.ClaimTypes, c.Type) {
				continue
			}
			if filter.AtFault != nil && c.IsAtFault() != *filter.AtFault {
				continue
			}
			n++
		}
	}
	return n
}

func matchThreshold(t *ruleset.ThresholdPredicate, f *Facts) bool {
	test := func(v float64) bool {
		if t.Value != nil {
			return t.Op.Compare(v, *t.Value)
		}
		if t.Min != nil && v < *t.Min {
			return false
		}
		if t.Max != nil && v > *t.Max {
			return false
		}
		return true
	}

	switch t.Fact {
	case ruleset.FactCoverageLapseDays:
		return test(float64(f.CoverageLapseDays))
	case ruleset.FactCreditScore:
		if f.CreditScore == nil {
			return t.Missing == ruleset.MissingMatch
		}
		return test(float64(*f.CreditScore))
	case ruleset.FactDriverAge:
		return quantify(t.Quantifier, len(f.Drivers), func(i int) bool { return test(float64(f.Drivers[i].Age)) })
	case ruleset.FactYearsLicensed:
		return quantify(t.Quantifier, len(f.Drivers), func(i int) bool { return test(float64(f.Drivers[i].YearsLicensed)) })
	case ruleset.FactVehicleValue:
		return quantify(t.Quantifier, len(f.Vehicles), func(i int) bool { return test(f.Vehicles[i].Value) })
	case ruleset.FactVehicleYear:
		return quantify(t.Quantifier, len(f.Vehicles), func(i int) bool { return test(float64(f.Vehicles[i].Year)) })
	case ruleset.FactAnnualMileage:
		return quantify(t.Quantifier, len(f.Vehicles), func(i int) bool { return test(float64(f.Vehicles[i].AnnualMileage)) })
	}
	return false
}

func matchMembership(m *ruleset.MembershipPredicate, f *Facts) bool {
	in := func(v string) bool {
		found := slices.ContainsFunc(m.Values, func(candidate string) bool {
			return strings.EqualFold(candidate, v)
		})
		return found != m.Not
	}

	switch m.Fact {
	case ruleset.FactLicenseStatus:
		return quantify(m.Quantifier, len(f.Drivers), func(i int) bool { return in(string(f.Drivers[i].LicenseStatus)) })
	case ruleset.FactLicenseState:
		return quantify(m.Quantifier, len(f.Drivers), func(i int) bool { return in(f.Drivers[i].LicenseState) })
	case ruleset.FactVehicleCategory:
		return quantify(m.Quantifier, len(f.Vehicles), func(i int) bool { return in(string(f.Vehicles[i].Category)) })
	case ruleset.FactPreviousCarrier:
		return in(f.PreviousCarrier)
	}
	return false
}

func matchFlag(fl *ruleset.FlagPredicate, f *Facts) bool {
	switch fl.Fact {
	case ruleset.FactFraudConviction:
		return f.FraudConviction == fl.Value
	case ruleset.FactHasPreviousCarrier:
		return (f.PreviousCarrier != "") == fl.Value
	case ruleset.FactAntiTheft:
		return quantify(fl.Quantifier, len(f.Vehicles), func(i int) bool { return f.Vehicles[i].AntiTheft == fl.Value })
	}
	return false
}

// quantify combines per-entity results. Any needs one match; all needs every
// entity to match and at least one entity to exist.
func quantify(q ruleset.Quantifier, n int, match func(i int) bool) bool {
	if n == 0 {
		return false
	}
	if q == ruleset.QuantifierAll {
		for i := 0; i < n; i++ {
			if !match(i) {
				return false
			}
		}
		return true
	}
	for i := 0; i < n; i++ {
		if match(i) {
			return true
		}
	}
	return false
}

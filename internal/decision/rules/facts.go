package rules

import (
	"strings"
	"time"

	"underwriter/internal/decision/models"
	"underwriter/internal/decision/ruleset"
)

// Facts are the application-derived values predicates read. They are computed
// once per evaluation against the submission date.
type Facts struct {
	AsOf          time.Time
	LookbackYears int
	Drivers       []DriverFacts
	Vehicles      []VehicleFacts

	CreditScore       *int
	CoverageLapseDays int
	FraudConviction   bool
	PreviousCarrier   string
}

// DriverFacts holds per-driver values with resolved violation severities.
type DriverFacts struct {
	Age           int
	YearsLicensed int
	LicenseStatus models.LicenseStatus
	LicenseState  string
	Violations    []ViolationFact
	Claims        []models.Claim
}

// ViolationFact is a violation with its effective severity.
type ViolationFact struct {
	Type     models.ViolationType
	Date     time.Time
	Severity models.Severity
}

// VehicleFacts holds per-vehicle values.
type VehicleFacts struct {
	Category      models.VehicleCategory
	Value         float64
	Year          int
	AnnualMileage int
	AntiTheft     bool
}

// DeriveFacts builds the fact view of app using the rule set parameters.
func DeriveFacts(app *models.Application, params ruleset.Parameters) *Facts {
	f := &Facts{
		AsOf:              app.SubmittedAt,
		LookbackYears:     params.LookbackYears,
		CreditScore:       app.CreditScore,
		CoverageLapseDays: app.CoverageLapseDays,
		FraudConviction:   app.FraudConviction,
		PreviousCarrier:   strings.TrimSpace(app.PreviousCarrier),
	}
	if f.LookbackYears <= 0 {
		f.LookbackYears = ruleset.DefaultLookbackYears
	}

	for _, d := range app.Drivers() {
		df := DriverFacts{
			Age:           d.AgeAt(app.SubmittedAt),
			YearsLicensed: d.YearsLicensed,
			LicenseStatus: d.LicenseStatus,
			LicenseState:  d.LicenseState,
			Claims:        d.Claims,
		}
		for _, v := range d.Violations {
			df.Violations = append(df.Violations, ViolationFact{
				Type:     v.Type,
				Date:     v.Date,
				Severity: params.SeverityOf(v),
			})
		}
		f.Drivers = append(f.Drivers, df)
	}

	for _, v := range app.Vehicles {
		f.Vehicles = append(f.Vehicles, VehicleFacts{
			Category:      v.Category,
			Value:         v.Value.InexactFloat64(),
			Year:          v.Year,
			AnnualMileage: v.AnnualMileage,
			AntiTheft:     v.AntiTheft,
		})
	}
	return f
}

// cutoff returns the earliest event date inside a window of years. Zero
// years falls back to the rule set lookback.
func (f *Facts) cutoff(years int) time.Time {
	if years <= 0 {
		years = f.LookbackYears
	}
	return f.AsOf.AddDate(-years, 0, 0)
}

// inWindow reports whether t falls in [from, AsOf].
func (f *Facts) inWindow(t, from time.Time) bool {
	return !t.Before(from) && !t.After(f.AsOf)
}

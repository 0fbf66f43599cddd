package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	dErrors "underwriter/pkg/domain-errors"
)

// LicenseStatus is the state of a driver's license at submission time.
type LicenseStatus string

const (
	LicenseValid     LicenseStatus = "valid"
	LicenseSuspended LicenseStatus = "suspended"
	LicenseRevoked   LicenseStatus = "revoked"
	LicenseExpired   LicenseStatus = "expired"
	LicenseInvalid   LicenseStatus = "invalid"
)

// IsValid reports whether s is a known license status.
func (s LicenseStatus) IsValid() bool {
	switch s {
	case LicenseValid, LicenseSuspended, LicenseRevoked, LicenseExpired, LicenseInvalid:
		return true
	}
	return false
}

// ViolationType identifies a moving or non-moving violation.
type ViolationType string

const (
	ViolationDUI               ViolationType = "dui"
	ViolationReckless          ViolationType = "reckless_driving"
	ViolationHitAndRun         ViolationType = "hit_and_run"
	ViolationVehicularHomicide ViolationType = "vehicular_homicide"
	ViolationSpeeding15Over    ViolationType = "speeding_15_over"
	ViolationImproperPassing   ViolationType = "improper_passing"
	ViolationFollowingTooClose ViolationType = "following_too_close"
	ViolationSpeeding10Under   ViolationType = "speeding_10_under"
	ViolationImproperTurn      ViolationType = "improper_turn"
	ViolationParking           ViolationType = "parking_violation"
)

var knownViolations = map[ViolationType]Severity{
	ViolationDUI:               SeverityMajor,
	ViolationReckless:          SeverityMajor,
	ViolationHitAndRun:         SeverityMajor,
	ViolationVehicularHomicide: SeverityMajor,
	ViolationSpeeding15Over:    SeverityModerate,
	ViolationImproperPassing:   SeverityModerate,
	ViolationFollowingTooClose: SeverityModerate,
	ViolationSpeeding10Under:   SeverityMinor,
	ViolationImproperTurn:      SeverityMinor,
	ViolationParking:           SeverityMinor,
}

// IsValid reports whether t is a known violation type.
func (t ViolationType) IsValid() bool {
	_, ok := knownViolations[t]
	return ok
}

// DefaultSeverity is the severity used when neither the violation nor the
// rule set says otherwise.
func (t ViolationType) DefaultSeverity() Severity {
	return knownViolations[t]
}

// Severity ranks a violation.
type Severity string

const (
	SeverityMajor    Severity = "major"
	SeverityModerate Severity = "moderate"
	SeverityMinor    Severity = "minor"
)

func (s Severity) IsValid() bool {
	return s == SeverityMajor || s == SeverityModerate || s == SeverityMinor
}

// ClaimType identifies the kind of insurance claim.
type ClaimType string

const (
	ClaimAtFault        ClaimType = "at_fault"
	ClaimNotAtFault     ClaimType = "not_at_fault"
	ClaimComprehensive  ClaimType = "comprehensive"
	ClaimCollision      ClaimType = "collision"
	ClaimPropertyDamage ClaimType = "property_damage"
	ClaimBodilyInjury   ClaimType = "bodily_injury"
)

func (t ClaimType) IsValid() bool {
	switch t {
	case ClaimAtFault, ClaimNotAtFault, ClaimComprehensive, ClaimCollision, ClaimPropertyDamage, ClaimBodilyInjury:
		return true
	}
	return false
}

// VehicleCategory groups vehicles by risk profile.
type VehicleCategory string

const (
	VehicleSedan       VehicleCategory = "sedan"
	VehicleSUV         VehicleCategory = "suv"
	VehicleMinivan     VehicleCategory = "minivan"
	VehiclePickup      VehicleCategory = "pickup"
	VehicleSportsCar   VehicleCategory = "sports_car"
	VehicleConvertible VehicleCategory = "convertible"
	VehiclePerformance VehicleCategory = "performance"
	VehicleLuxurySedan VehicleCategory = "luxury_sedan"
	VehicleLuxurySUV   VehicleCategory = "luxury_suv"
	VehicleSupercar    VehicleCategory = "supercar"
	VehicleRacing      VehicleCategory = "racing"
	VehicleModified    VehicleCategory = "modified"
)

func (c VehicleCategory) IsValid() bool {
	switch c {
	case VehicleSedan, VehicleSUV, VehicleMinivan, VehiclePickup, VehicleSportsCar, VehicleConvertible,
		VehiclePerformance, VehicleLuxurySedan, VehicleLuxurySUV, VehicleSupercar, VehicleRacing, VehicleModified:
		return true
	}
	return false
}

// IsHighPerformance covers the categories priced as performance vehicles.
func (c VehicleCategory) IsHighPerformance() bool {
	switch c {
	case VehicleSportsCar, VehiclePerformance, VehicleSupercar, VehicleRacing, VehicleModified:
		return true
	}
	return false
}

func (c VehicleCategory) IsLuxury() bool {
	return c == VehicleLuxurySedan || c == VehicleLuxurySUV
}

// Violation is a traffic violation on a driver's record.
type Violation struct {
	Type        ViolationType `json:"type"`
	Date        time.Time     `json:"date"`
	Severity    Severity      `json:"severity,omitempty"`
	Description string        `json:"description,omitempty"`
}

// Claim is a prior insurance claim on a driver's record.
type Claim struct {
	Type        ClaimType       `json:"type"`
	Date        time.Time       `json:"date"`
	Amount      decimal.Decimal `json:"amount"`
	AtFault     bool            `json:"at_fault"`
	Description string          `json:"description,omitempty"`
}

// IsAtFault treats an at_fault claim type as at fault even when the flag is unset.
func (c Claim) IsAtFault() bool {
	return c.AtFault || c.Type == ClaimAtFault
}

// Driver is the applicant or an additional listed driver.
type Driver struct {
	ID            string        `json:"id"`
	FirstName     string        `json:"first_name"`
	LastName      string        `json:"last_name"`
	DateOfBirth   time.Time     `json:"date_of_birth"`
	LicenseNumber string        `json:"license_number"`
	LicenseState  string        `json:"license_state"`
	LicenseStatus LicenseStatus `json:"license_status"`
	YearsLicensed int           `json:"years_licensed"`
	Violations    []Violation   `json:"violations,omitempty"`
	Claims        []Claim       `json:"claims,omitempty"`
}

// AgeAt returns the driver's age in whole years on the given date.
func (d Driver) AgeAt(at time.Time) int {
	age := at.Year() - d.DateOfBirth.Year()
	if at.Month() < d.DateOfBirth.Month() ||
		(at.Month() == d.DateOfBirth.Month() && at.Day() < d.DateOfBirth.Day()) {
		age--
	}
	return age
}

// Vehicle is an insured vehicle.
type Vehicle struct {
	Year          int             `json:"year"`
	Make          string          `json:"make"`
	Model         string          `json:"model"`
	VIN           string          `json:"vin"`
	Category      VehicleCategory `json:"category"`
	Value         decimal.Decimal `json:"value"`
	AnnualMileage int             `json:"annual_mileage"`
	SafetyRating  int             `json:"safety_rating,omitempty"`
	AntiTheft     bool            `json:"anti_theft"`
}

// Application is the immutable input to an evaluation. SubmittedAt is the
// reference date for ages and lookback windows.
type Application struct {
	ID                string            `json:"id"`
	SubmittedAt       time.Time         `json:"submitted_at"`
	Applicant         Driver            `json:"applicant"`
	AdditionalDrivers []Driver          `json:"additional_drivers,omitempty"`
	Vehicles          []Vehicle         `json:"vehicles"`
	CreditScore       *int              `json:"credit_score,omitempty"`
	CoverageLapseDays int               `json:"coverage_lapse_days"`
	FraudConviction   bool              `json:"fraud_conviction"`
	PreviousCarrier   string            `json:"previous_carrier,omitempty"`
	Metadata          map[string]string `json:"metadata,omitempty"`
}

// Drivers returns the applicant followed by additional drivers.
func (a *Application) Drivers() []Driver {
	out := make([]Driver, 0, 1+len(a.AdditionalDrivers))
	out = append(out, a.Applicant)
	return append(out, a.AdditionalDrivers...)
}

const (
	maxApplicationIDLength = 64
	minDriverAge           = 16
	maxDriverAge           = 100
	minVehicleYear         = 1900
	maxVehicleYear         = 2030
	minCreditScore         = 300
	maxCreditScore         = 850
	vinLength              = 17
)

// Validate checks the application is complete enough to evaluate. It returns
// a validation error naming the first offending field.
func (a *Application) Validate() error {
	if a == nil {
		return dErrors.New(dErrors.CodeValidation, "application is required")
	}
	if strings.TrimSpace(a.ID) == "" {
		return dErrors.New(dErrors.CodeValidation, "id is required")
	}
	if len(a.ID) > maxApplicationIDLength {
		return dErrors.Newf(dErrors.CodeValidation, "id must be at most %d characters", maxApplicationIDLength)
	}
	if a.SubmittedAt.IsZero() {
		return dErrors.New(dErrors.CodeValidation, "submitted_at is required")
	}
	if a.CoverageLapseDays < 0 {
		return dErrors.New(dErrors.CodeValidation, "coverage_lapse_days must not be negative")
	}
	if a.CreditScore != nil && (*a.CreditScore < minCreditScore || *a.CreditScore > maxCreditScore) {
		return dErrors.Newf(dErrors.CodeValidation, "credit_score must be between %d and %d", minCreditScore, maxCreditScore)
	}

	if err := validateDriver("applicant", a.Applicant, a.SubmittedAt); err != nil {
		return err
	}
	for i, d := range a.AdditionalDrivers {
		if err := validateDriver(fmt.Sprintf("additional_drivers[%d]", i), d, a.SubmittedAt); err != nil {
			return err
		}
	}

	if len(a.Vehicles) == 0 {
		return dErrors.New(dErrors.CodeValidation, "at least one vehicle is required")
	}
	for i, v := range a.Vehicles {
		if err := validateVehicle(fmt.Sprintf("vehicles[%d]", i), v); err != nil {
			return err
		}
	}
	return nil
}

func validateDriver(field string, d Driver, at time.Time) error {
	if d.DateOfBirth.IsZero() {
		return dErrors.Newf(dErrors.CodeValidation, "%s.date_of_birth is required", field)
	}
	if age := d.AgeAt(at); age < minDriverAge || age > maxDriverAge {
		return dErrors.Newf(dErrors.CodeValidation, "%s age must be between %d and %d, got %d", field, minDriverAge, maxDriverAge, age)
	}
	if !d.LicenseStatus.IsValid() {
		return dErrors.Newf(dErrors.CodeValidation, "%s.license_status %q is not recognised", field, d.LicenseStatus)
	}
	if d.YearsLicensed < 0 {
		return dErrors.Newf(dErrors.CodeValidation, "%s.years_licensed must not be negative", field)
	}
	for i, v := range d.Violations {
		if !v.Type.IsValid() {
			return dErrors.Newf(dErrors.CodeValidation, "%s.violations[%d].type %q is not recognised", field, i, v.Type)
		}
		if v.Severity != "" && !v.Severity.IsValid() {
			return dErrors.Newf(dErrors.CodeValidation, "%s.violations[%d].severity %q is not recognised", field, i, v.Severity)
		}
		if v.Date.IsZero() {
			return dErrors.Newf(dErrors.CodeValidation, "%s.violations[%d].date is required", field, i)
		}
	}
	for i, c := range d.Claims {
		if !c.Type.IsValid() {
			return dErrors.Newf(dErrors.CodeValidation, "%s.claims[%d].type %q is not recognised", field, i, c.Type)
		}
		if c.Date.IsZero() {
			return dErrors.Newf(dErrors.CodeValidation, "%s.claims[%d].date is required", field, i)
		}
		if c.Amount.IsNegative() {
			return dErrors.Newf(dErrors.CodeValidation, "%s.claims[%d].amount must not be negative", field, i)
		}
	}
	return nil
}

func validateVehicle(field string, v Vehicle) error {
	if v.Year < minVehicleYear || v.Year > maxVehicleYear {
		return dErrors.Newf(dErrors.CodeValidation, "%s.year must be between %d and %d", field, minVehicleYear, maxVehicleYear)
	}
	if !v.Category.IsValid() {
		return dErrors.Newf(dErrors.CodeValidation, "%s.category %q is not recognised", field, v.Category)
	}
	if !v.Value.IsPositive() {
		return dErrors.Newf(dErrors.CodeValidation, "%s.value must be greater than zero", field)
	}
	if v.AnnualMileage < 0 {
		return dErrors.Newf(dErrors.CodeValidation, "%s.annual_mileage must not be negative", field)
	}
	if v.SafetyRating < 0 || v.SafetyRating > 5 {
		return dErrors.Newf(dErrors.CodeValidation, "%s.safety_rating must be between 0 and 5", field)
	}
	if v.VIN != "" && !isVIN(v.VIN) {
		return dErrors.Newf(dErrors.CodeValidation, "%s.vin must be %d alphanumeric characters", field, vinLength)
	}
	return nil
}

func isVIN(s string) bool {
	if len(s) != vinLength {
		return false
	}
	for _, r := range s {
		if !(r >= '0' && r <= '9' || r >= 'A' && r <= 'Z' || r >= 'a' && r <= 'z') {
			return false
		}
	}
	return true
}

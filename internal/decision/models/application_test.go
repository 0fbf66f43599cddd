package models

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	dErrors "underwriter/pkg/domain-errors"
)

// ApplicationSuite covers the validation boundary: every malformed application
// must be rejected before evaluation with a validation error.
type ApplicationSuite struct {
	suite.Suite
	submitted time.Time
}

func TestApplicationSuite(t *testing.T) {
	suite.Run(t, new(ApplicationSuite))
}

func (s *ApplicationSuite) SetupTest() {
	s.submitted = time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
}

func (s *ApplicationSuite) validApplication() *Application {
	credit := 720
	return &Application{
		ID:          "APP-1",
		SubmittedAt: s.submitted,
		Applicant: Driver{
			ID:            "D-1",
			FirstName:     "Ada",
			LastName:      "Lovelace",
			DateOfBirth:   time.Date(1985, 3, 10, 0, 0, 0, 0, time.UTC),
			LicenseStatus: LicenseValid,
			YearsLicensed: 20,
		},
		Vehicles: []Vehicle{{
			Year:     2021,
			Make:     "Toyota",
			Model:    "Camry",
			VIN:      "4T1BF1FK5CU123456",
			Category: VehicleSedan,
			Value:    decimal.NewFromInt(24000),
		}},
		CreditScore: &credit,
	}
}

func (s *ApplicationSuite) TestValidate() {
	s.Run("accepts a complete application", func() {
		s.Require().NoError(s.validApplication().Validate())
	})

	cases := []struct {
		name   string
		mutate func(a *Application)
	}{
		{"missing id", func(a *Application) { a.ID = "  " }},
		{"missing submission date", func(a *Application) { a.SubmittedAt = time.Time{} }},
		{"negative lapse", func(a *Application) { a.CoverageLapseDays = -1 }},
		{"credit out of range", func(a *Application) { c := 900; a.CreditScore = &c }},
		{"driver too young", func(a *Application) { a.Applicant.DateOfBirth = s.submitted.AddDate(-15, 0, 0) }},
		{"unknown license status", func(a *Application) { a.Applicant.LicenseStatus = "lapsed" }},
		{"no vehicles", func(a *Application) { a.Vehicles = nil }},
		{"zero vehicle value", func(a *Application) { a.Vehicles[0].Value = decimal.Zero }},
		{"vehicle year out of range", func(a *Application) { a.Vehicles[0].Year = 1850 }},
		{"bad vin", func(a *Application) { a.Vehicles[0].VIN = "SHORT" }},
		{"unknown violation", func(a *Application) {
			a.Applicant.Violations = []Violation{{Type: "jaywalking", Date: s.submitted}}
		}},
		{"negative claim amount", func(a *Application) {
			a.Applicant.Claims = []Claim{{Type: ClaimCollision, Date: s.submitted, Amount: decimal.NewFromInt(-5)}}
		}},
	}
	for _, tc := range cases {
		s.Run("rejects "+tc.name, func() {
			app := s.validApplication()
			tc.mutate(app)
			err := app.Validate()
			s.Require().Error(err)
			s.True(dErrors.HasCode(err, dErrors.CodeValidation))
		})
	}
}

func (s *ApplicationSuite) TestDrivers() {
	app := s.validApplication()
	app.AdditionalDrivers = []Driver{{ID: "D-2"}}
	drivers := app.Drivers()
	s.Require().Len(drivers, 2)
	s.Equal("D-1", drivers[0].ID)
	s.Equal("D-2", drivers[1].ID)
}

func TestDriverAgeAt(t *testing.T) {
	d := Driver{DateOfBirth: time.Date(1990, 6, 15, 0, 0, 0, 0, time.UTC)}
	assert.Equal(t, 34, d.AgeAt(time.Date(2025, 6, 14, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, 35, d.AgeAt(time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)))
}

func TestParseDecision(t *testing.T) {
	for in, want := range map[string]Decision{
		"ACCEPT":  DecisionAccept,
		"approve": DecisionAccept,
		"Decline": DecisionDeny,
		"deny":    DecisionDeny,
		"REVIEW":  DecisionAdjudicate,
		"refer":   DecisionAdjudicate,
	} {
		got, err := ParseDecision(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseDecision("maybe")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
}

func TestBandFor(t *testing.T) {
	assert.Equal(t, BandLow, BandFor(0))
	assert.Equal(t, BandLow, BandFor(300))
	assert.Equal(t, BandModerate, BandFor(301))
	assert.Equal(t, BandModerate, BandFor(600))
	assert.Equal(t, BandHigh, BandFor(800))
	assert.Equal(t, BandVeryHigh, BandFor(801))
	assert.Equal(t, BandVeryHigh, BandFor(1000))
}

func TestAIDecisionClone(t *testing.T) {
	score := 420
	orig := &AIDecision{Decision: DecisionAccept, RiskScore: &score, Factors: []string{"clean record"}}
	clone := orig.Clone()
	clone.Factors[0] = "changed"
	*clone.RiskScore = 10

	assert.Equal(t, "clean record", orig.Factors[0])
	assert.Equal(t, 420, *orig.RiskScore)
	assert.Nil(t, (*AIDecision)(nil).Clone())
}

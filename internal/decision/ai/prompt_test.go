package ai

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"underwriter/internal/decision/models"
	"underwriter/internal/decision/ports"
)

func sampleApplication() *models.Application {
	credit := 710
	submitted := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	return &models.Application{
		ID:          "APP-42",
		SubmittedAt: submitted,
		Applicant: models.Driver{
			FirstName:     "Dana",
			LastName:      "Reyes",
			DateOfBirth:   time.Date(1985, 5, 10, 0, 0, 0, 0, time.UTC),
			LicenseNumber: "D1234567",
			LicenseStatus: models.LicenseValid,
			YearsLicensed: 20,
			Violations:    []models.Violation{{Type: models.ViolationSpeeding15Over, Date: submitted.AddDate(-1, 0, 0)}},
		},
		Vehicles: []models.Vehicle{{
			Year: 2021, Make: "Subaru", Model: "Outback", VIN: "4S4BTANC5M3123456",
			Category: models.VehicleSUV, Value: decimal.NewFromInt(31000), AntiTheft: true,
		}},
		CreditScore: &credit,
	}
}

func sampleContext() ports.RuleSetContext {
	return ports.RuleSetContext{
		Name:      "conservative",
		Version:   "1.3",
		HardStops: []ports.RuleSummary{{ID: "HS002", Name: "dui", Reason: "Any DUI conviction"}},
		Referrals: []ports.RuleSummary{{ID: "AT004", Name: "credit", Reason: "Credit score below 650"}},
	}
}

func TestPromptBuild(t *testing.T) {
	b, err := NewPromptBuilder()
	require.NoError(t, err)

	p, err := b.Build(sampleApplication(), sampleContext())
	require.NoError(t, err)

	assert.Equal(t, "APP-42", p.ApplicationID)
	assert.Equal(t, "conservative", p.RuleSet)

	assert.Contains(t, p.System, "CONSERVATIVE rule set (version 1.3)")
	assert.Contains(t, p.System, "CONSERVATIVE underwriting philosophy")
	assert.Contains(t, p.System, "- [HS002] Any DUI conviction")
	assert.Contains(t, p.System, "- [AT004] Credit score below 650")
	assert.Contains(t, p.System, "ACCEPTANCE CRITERIA:\n- none")
	assert.Contains(t, p.System, `"confidence_score"`)

	assert.Contains(t, p.User, `"age": 39`)
	assert.Contains(t, p.User, `"type": "speeding_15_over"`)
	assert.Contains(t, p.User, `"value": "31000.00"`)
	assert.Contains(t, p.User, `"credit_score": 710`)
	assert.NotContains(t, p.User, "Reyes")
	assert.NotContains(t, p.User, "D1234567")
	assert.NotContains(t, p.User, "4S4BTANC5M3123456")
}

func TestPromptUnknownRuleSetUsesDefaultStance(t *testing.T) {
	b, err := NewPromptBuilder()
	require.NoError(t, err)

	rc := sampleContext()
	rc.Name = "fleet"
	p, err := b.Build(sampleApplication(), rc)
	require.NoError(t, err)
	assert.Contains(t, p.System, defaultStance)
}

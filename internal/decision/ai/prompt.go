package ai

import (
	"bytes"
	"embed"
	"encoding/json"
	"strings"
	"text/template"
	"time"

	"underwriter/internal/decision/models"
	"underwriter/internal/decision/ports"
)

//go:embed prompts/*.tmpl
var promptFS embed.FS

// stances tune the system prompt to the risk appetite of known rule sets.
var stances = map[string]string{
	"conservative": "Apply a CONSERVATIVE underwriting philosophy: minimise risk exposure and, when in doubt, prefer manual review over acceptance.",
	"standard":     "Apply a STANDARD underwriting philosophy: balance profitability and risk exposure using industry-standard criteria.",
	"liberal":      "Apply a LIBERAL underwriting philosophy: favour market growth and accept moderate risk where mitigating factors exist.",
}

const defaultStance = "Apply the criteria of this rule set as written."

// PromptBuilder renders prompts from the embedded templates.
type PromptBuilder struct {
	system *template.Template
	user   *template.Template
}

func NewPromptBuilder() (*PromptBuilder, error) {
	funcs := template.FuncMap{
		"upper": strings.ToUpper,
		"stance": func(name string) string {
			if s, ok := stances[strings.ToLower(name)]; ok {
				return s
			}
			return defaultStance
		},
	}
	system, err := template.New("system.tmpl").Funcs(funcs).ParseFS(promptFS, "prompts/system.tmpl")
	if err != nil {
		return nil, err
	}
	user, err := template.New("user.tmpl").Funcs(funcs).ParseFS(promptFS, "prompts/user.tmpl")
	if err != nil {
		return nil, err
	}
	return &PromptBuilder{system: system, user: user}, nil
}

// Build renders the system prompt for rc and the user prompt for app.
func (b *PromptBuilder) Build(app *models.Application, rc ports.RuleSetContext) (Prompt, error) {
	summary, err := json.MarshalIndent(summarize(app), "", "  ")
	if err != nil {
		return Prompt{}, err
	}

	var system, user bytes.Buffer
	if err := b.system.Execute(&system, rc); err != nil {
		return Prompt{}, err
	}
	if err := b.user.Execute(&user, map[string]string{
		"RuleSet":     rc.Name,
		"Application": string(summary),
	}); err != nil {
		return Prompt{}, err
	}
	return Prompt{
		System:        strings.TrimSpace(system.String()),
		User:          strings.TrimSpace(user.String()),
		ApplicationID: app.ID,
		RuleSet:       rc.Name,
	}, nil
}

// applicationSummary is what the model sees of an application. Names,
// license numbers and VINs are left out.
type applicationSummary struct {
	ApplicationID     string           `json:"application_id"`
	SubmittedAt       string           `json:"submitted_at"`
	Applicant         driverSummary    `json:"applicant"`
	AdditionalDrivers []driverSummary  `json:"additional_drivers,omitempty"`
	Vehicles          []vehicleSummary `json:"vehicles"`
	Coverage          coverageSummary  `json:"coverage_details"`
}

type driverSummary struct {
	Age           int                `json:"age"`
	LicenseStatus string             `json:"license_status"`
	YearsLicensed int                `json:"years_licensed"`
	Violations    []violationSummary `json:"violations"`
	Claims        []claimSummary     `json:"claims"`
}

type violationSummary struct {
	Type     string `json:"type"`
	Date     string `json:"date"`
	Severity string `json:"severity,omitempty"`
}

type claimSummary struct {
	Type    string `json:"type"`
	Date    string `json:"date"`
	Amount  string `json:"amount"`
	AtFault bool   `json:"at_fault"`
}

type vehicleSummary struct {
	Year         int    `json:"year"`
	Make         string `json:"make"`
	Model        string `json:"model"`
	Category     string `json:"category"`
	Value        string `json:"value"`
	SafetyRating int    `json:"safety_rating,omitempty"`
	AntiTheft    bool   `json:"anti_theft"`
}

type coverageSummary struct {
	CoverageLapseDays int  `json:"coverage_lapse_days"`
	CreditScore       *int `json:"credit_score"`
	FraudConviction   bool `json:"fraud_conviction"`
}

func summarize(app *models.Application) applicationSummary {
	s := applicationSummary{
		ApplicationID: app.ID,
		SubmittedAt:   app.SubmittedAt.Format(time.DateOnly),
		Applicant:     summarizeDriver(app.Applicant, app.SubmittedAt),
		Coverage: coverageSummary{
			CoverageLapseDays: app.CoverageLapseDays,
			CreditScore:       app.CreditScore,
			FraudConviction:   app.FraudConviction,
		},
	}
	for _, d := range app.AdditionalDrivers {
		s.AdditionalDrivers = append(s.AdditionalDrivers, summarizeDriver(d, app.SubmittedAt))
	}
	for _, v := range app.Vehicles {
		s.Vehicles = append(s.Vehicles, vehicleSummary{
			Year:         v.Year,
			Make:         v.Make,
			Model:        v.Model,
			Category:     string(v.Category),
			Value:        v.Value.StringFixed(2),
			SafetyRating: v.SafetyRating,
			AntiTheft:    v.AntiTheft,
		})
	}
	return s
}

func summarizeDriver(d models.Driver, asOf time.Time) driverSummary {
	out := driverSummary{
		Age:           d.AgeAt(asOf),
		LicenseStatus: string(d.LicenseStatus),
		YearsLicensed: d.YearsLicensed,
		Violations:    []violationSummary{},
		Claims:        []claimSummary{},
	}
	for _, v := range d.Violations {
		out.Violations = append(out.Violations, violationSummary{
			Type:     string(v.Type),
			Date:     v.Date.Format(time.DateOnly),
			Severity: string(v.Severity),
		})
	}
	for _, c := range d.Claims {
		out.Claims = append(out.Claims, claimSummary{
			Type:    string(c.Type),
			Date:    c.Date.Format(time.DateOnly),
			Amount:  c.Amount.StringFixed(2),
			AtFault: c.IsAtFault(),
		})
	}
	return out
}

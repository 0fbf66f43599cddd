package scoring

import (
	"time"

	"github.com/shopspring/decimal"

	"underwriter/internal/decision/models"
	"underwriter/internal/decision/ruleset"
)

var (
	highValueVehicle  = decimal.NewFromInt(100_000)
	upperValueVehicle = decimal.NewFromInt(50_000)
	largeClaimAmount  = decimal.NewFromInt(25_000)
)

// recentYears is the age below which history events count in full.
const recentYears = 3

func saturate(v int) int {
	if v > SubScoreMax {
		return SubScoreMax
	}
	return v
}

// driverRisk scores the riskiest listed driver.
func driverRisk(app *models.Application) int {
	worst := 0
	for _, d := range app.Drivers() {
		points := 25
		switch age := d.AgeAt(app.SubmittedAt); {
		case age < 21:
			points += 100
		case age < 25:
			points += 75
		case age > 75:
			points += 60
		case age > 70:
			points += 40
		}
		switch {
		case d.YearsLicensed < 3:
			points += 40
		case d.YearsLicensed < 5:
			points += 20
		}
		if d.LicenseStatus != models.LicenseValid {
			points += 125
		}
		worst = max(worst, saturate(points))
	}
	return worst
}

// vehicleRisk scores the riskiest insured vehicle.
func vehicleRisk(app *models.Application) int {
	worst := 0
	for _, v := range app.Vehicles {
		points := 20
		switch {
		case v.Category.IsHighPerformance():
			points += 90
		case v.Category.IsLuxury():
			points += 45
		case v.Category == models.VehicleConvertible:
			points += 30
		}
		switch {
		case v.Value.GreaterThan(highValueVehicle):
			points += 60
		case v.Value.GreaterThan(upperValueVehicle):
			points += 30
		}
		if !v.AntiTheft {
			points += 15
		}
		if v.SafetyRating == 1 || v.SafetyRating == 2 {
			points += 25
		}
		worst = max(worst, saturate(points))
	}
	return worst
}

// historyRisk accumulates violations and claims of every driver inside the
// rule set lookback window. Events older than recentYears count half.
func historyRisk(app *models.Application, params ruleset.Parameters) int {
	lookback := params.LookbackYears
	if lookback <= 0 {
		lookback = ruleset.DefaultLookbackYears
	}
	asOf := app.SubmittedAt
	from := asOf.AddDate(-lookback, 0, 0)
	recent := asOf.AddDate(-recentYears, 0, 0)

	inWindow := func(t time.Time) bool { return !t.Before(from) && !t.After(asOf) }
	weight := func(t time.Time, points int) int {
		if t.Before(recent) {
			return points / 2
		}
		return points
	}

	total := 10
	for _, d := range app.Drivers() {
		for _, v := range d.Violations {
			if !inWindow(v.Date) {
				continue
			}
			var points int
			switch params.SeverityOf(v) {
			case models.SeverityMajor:
				points = 80
			case models.SeverityModerate:
				points = 40
			default:
				points = 20
			}
			total += weight(v.Date, points)
		}
		for _, c := range d.Claims {
			if !inWindow(c.Date) {
				continue
			}
			points := 15
			if c.IsAtFault() {
				points = 60
			}
			if c.Amount.GreaterThan(largeClaimAmount) {
				points += 20
			}
			total += weight(c.Date, points)
		}
	}
	return saturate(total)
}

// creditRisk bands a credit score; lower scores carry more risk.
func creditRisk(score int) int {
	switch {
	case score < 500:
		return 250
	case score < 600:
		return 180
	case score < 650:
		return 130
	case score < 700:
		return 90
	case score < 750:
		return 50
	default:
		return 20
	}
}

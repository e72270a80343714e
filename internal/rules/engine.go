// Package rules decides which alerts a freshly fetched forecast snapshot
// should produce. Evaluate is pure with respect to its inputs: the same
// snapshot, settings, history and clock always yield the same decisions,
// which keeps the engine testable without a live clock or permission grant.
//
// The same evaluator serves both execution contexts. The foreground session
// runs the Foreground set on every successful refresh; the background worker
// runs the smaller Background set against its own history, because it cannot
// see the foreground's. The two histories are intentionally not reconciled,
// so a background notification may duplicate one already shown in the app.
package rules

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"skycast/internal/models"
	"skycast/internal/weathercode"
)

// Static rule keys and their cooldown windows.
const (
	KeyPrecipStart = "precip_start"
	KeyTempShift   = "temp_shift"
	KeySevereWind  = "severe_wind"
	KeySevereStorm = "severe_storm"

	precipCooldown    = 6 * time.Hour
	tempShiftCooldown = 20 * time.Hour
	severeCooldown    = 4 * time.Hour
)

// Trigger thresholds. Wind and temperature compare raw snapshot values, so
// the effective threshold follows the active unit system.
const (
	precipProbLow    = 30
	precipProbHigh   = 60
	tempShiftDegrees = 10
	severeWindSpeed  = 80
	windyWindSpeed   = 20
	briefingHour     = 7
	briefingSteps    = 4 * 12 // ~12 hours of 15-minute probability steps
)

// candidate is a rule firing before dedup: the history key plus the alert
// content.
type candidate struct {
	key      string
	title    string
	message  string
	severity models.Severity
}

// Rule is one row of the rule table.
type Rule struct {
	Name     string
	enabled  func(models.NotificationSettings) bool
	cooldown time.Duration // zero: date-scoped key, fires only while absent
	check    func(snap *models.ForecastSnapshot, now time.Time) *candidate
}

// Foreground is the full rule set, run on every successful snapshot refresh.
var Foreground = []Rule{precipOnset, tempShift, morningBriefing, severeWind, severeStorm, outfitAdvisor}

// Background is the reduced set for the background worker, which fetches only
// the minimal slice and therefore evaluates only rules that need current wind
// and the precipitation probability series.
var Background = []Rule{precipOnset, severeWind}

// Evaluate runs a rule set over a snapshot and returns the new alerts plus
// the updated history. The input history is never mutated. Rules are
// independent: several can fire on one pass. A rule with a static key refires
// only once its cooldown has elapsed; a date-scoped key fires at most once
// per calendar day by construction.
func Evaluate(set []Rule, snap *models.ForecastSnapshot, settings models.NotificationSettings, history History, now time.Time) ([]models.Alert, History) {
	updated := history.Clone(now)
	if snap == nil || !settings.Enabled {
		return nil, updated
	}

	var alerts []models.Alert
	for _, r := range set {
		if !r.enabled(settings) {
			continue
		}
		cand := r.check(snap, now)
		if cand == nil {
			continue
		}
		if last, ok := updated[cand.key]; ok {
			if r.cooldown == 0 || now.Sub(last) <= r.cooldown {
				continue
			}
		}
		alerts = append(alerts, models.Alert{
			ID:        uuid.NewString(),
			Rule:      r.Name,
			Title:     cand.title,
			Message:   cand.message,
			Severity:  cand.severity,
			CreatedAt: now,
		})
		updated[cand.key] = now
	}
	return alerts, updated
}

var precipOnset = Rule{
	Name:     "precip_start",
	enabled:  func(s models.NotificationSettings) bool { return s.Precipitation },
	cooldown: precipCooldown,
	check: func(snap *models.ForecastSnapshot, _ time.Time) *candidate {
		if len(snap.PrecipProbability) < 2 {
			return nil
		}
		// Dry now, wet in the next sub-hourly step: rain is about to start.
		if snap.PrecipProbability[0] < precipProbLow && snap.PrecipProbability[1] > precipProbHigh {
			return &candidate{
				key:      KeyPrecipStart,
				title:    "Precipitation Alert",
				message:  "Rain starting in about 15 minutes in your location.",
				severity: models.SeverityWarning,
			}
		}
		return nil
	},
}

var tempShift = Rule{
	Name:     "temp_shift",
	enabled:  func(s models.NotificationSettings) bool { return s.TempShifts },
	cooldown: tempShiftCooldown,
	check: func(snap *models.ForecastSnapshot, _ time.Time) *candidate {
		if snap.Yesterday == nil || len(snap.Daily) == 0 {
			return nil
		}
		todayMax := snap.Daily[0].TempMax
		for _, d := range snap.Daily[1:] {
			if d.TempMax > todayMax {
				todayMax = d.TempMax
			}
		}
		diff := todayMax - snap.Yesterday.TempMax
		if math.Abs(diff) < tempShiftDegrees {
			return nil
		}
		var msg string
		if diff > 0 {
			msg = fmt.Sprintf("It's much warmer today! %.1f° rise since yesterday.", diff)
		} else {
			msg = fmt.Sprintf("Big drop in temperature! %.1f° cooler than yesterday.", math.Abs(diff))
		}
		return &candidate{
			key:      KeyTempShift,
			title:    "Extreme Temperature Shift",
			message:  msg,
			severity: models.SeverityWarning,
		}
	},
}

var morningBriefing = Rule{
	Name:    "morning_briefing",
	enabled: func(s models.NotificationSettings) bool { return s.MorningBriefing },
	check: func(snap *models.ForecastSnapshot, now time.Time) *candidate {
		if now.Hour() != briefingHour || len(snap.Daily) == 0 {
			return nil
		}
		msg := fmt.Sprintf("Today's forecast: High of %.0f°.", snap.Daily[0].TempMax)
		if snap.Yesterday != nil {
			diff := snap.Daily[0].TempMax - snap.Yesterday.TempMax
			if diff > 0 {
				msg += fmt.Sprintf(" %.0f° warmer than yesterday.", diff)
			} else {
				// math.Abs keeps a zero delta from rendering as "-0°".
				msg += fmt.Sprintf(" %.0f° cooler than yesterday.", math.Abs(diff))
			}
		}
		if maxProbability(snap.PrecipProbability, briefingSteps) < 20 {
			msg += " No rain expected—perfect for a light jacket."
		}
		return &candidate{
			key:      "morning_briefing_" + now.Format("2006-01-02"),
			title:    "Morning Briefing",
			message:  msg,
			severity: models.SeverityInfo,
		}
	},
}

var severeWind = Rule{
	Name:     "severe_wind",
	enabled:  func(s models.NotificationSettings) bool { return s.SevereWeather },
	cooldown: severeCooldown,
	check: func(snap *models.ForecastSnapshot, _ time.Time) *candidate {
		if snap.Current.WindSpeed <= severeWindSpeed {
			return nil
		}
		return &candidate{
			key:      KeySevereWind,
			title:    "Severe Weather Warning",
			message:  "High velocity winds detected. Stay safe!",
			severity: models.SeverityAlert,
		}
	},
}

var severeStorm = Rule{
	Name:     "severe_storm",
	enabled:  func(s models.NotificationSettings) bool { return s.SevereWeather },
	cooldown: severeCooldown,
	check: func(snap *models.ForecastSnapshot, _ time.Time) *candidate {
		if !weathercode.IsThunderstorm(snap.Current.WeatherCode) {
			return nil
		}
		return &candidate{
			key:      KeySevereStorm,
			title:    "Severe Weather Warning",
			message:  "Thunderstorms detected in your area.",
			severity: models.SeverityAlert,
		}
	},
}

var outfitAdvisor = Rule{
	Name:    "outfit",
	enabled: func(s models.NotificationSettings) bool { return s.OutfitAdvisor },
	check: func(snap *models.ForecastSnapshot, now time.Time) *candidate {
		temp := snap.Current.Temperature
		raining := snap.Current.Precipitation > 0 || weathercode.IsPrecipitating(snap.Current.WeatherCode)
		windy := snap.Current.WindSpeed > windyWindSpeed

		// Branches are mutually exclusive, in fixed priority order.
		var msg string
		switch {
		case raining:
			msg = "Don't forget your umbrella! It's raining."
		case temp < 10:
			msg = "It's chilly today. Grab a heavy coat."
		case temp < 20:
			if windy {
				msg = "It's windy and cool. You'll want a windbreaker."
			} else {
				msg = "Mild weather. A light jacket / hoodie is perfect."
			}
		default:
			msg = "It's warm! T-shirt weather."
		}
		return &candidate{
			key:      "outfit_" + now.Format("2006-01-02"),
			title:    "Smart Outfit Advisor",
			message:  msg,
			severity: models.SeverityInfo,
		}
	},
}

func maxProbability(probs []float64, n int) float64 {
	if n > len(probs) {
		n = len(probs)
	}
	var max float64
	for _, p := range probs[:n] {
		if p > max {
			max = p
		}
	}
	return max
}

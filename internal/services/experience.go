package services

import (
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"

	"alfredoptarigan/idoneidad-checker/internal/models"
)

const (
	dateLayout   = "02/01/2006"
	daysPerMonth = 30
)

var ongoingMarkers = []string{"ACTUAL", "ACTUALMENTE", "A LA FECHA", "PRESENTE", "VIGENTE"}

// ParseDate parses a full DD/MM/YYYY date. Partial dates such as MM/YYYY are
// rejected.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if len(s) != len(dateLayout) {
		return time.Time{}, errors.Errorf("fecha incompleta: %q", s)
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return time.Time{}, errors.Wrapf(err, "fecha inválida: %q", s)
	}
	return t, nil
}

func isOngoing(s string) bool {
	s = strings.ToUpper(strings.TrimSpace(s))
	for _, marker := range ongoingMarkers {
		if s == marker {
			return true
		}
	}
	return false
}

// MonthsBetween returns the whole calendar months and remaining days from
// start to end, counting both days. A month added to the 31st lands on the
// last day of a shorter month.
func MonthsBetween(start, end time.Time) (months, days int) {
	start = truncateDay(start)
	endExclusive := truncateDay(end).AddDate(0, 0, 1)
	if !endExclusive.After(start) {
		return 0, 0
	}

	months = (endExclusive.Year()-start.Year())*12 + int(endExclusive.Month()-start.Month())
	for months > 0 && addMonths(start, months).After(endExclusive) {
		months--
	}

	days = int(endExclusive.Sub(addMonths(start, months)).Hours() / 24)
	return months, days
}

func addMonths(t time.Time, n int) time.Time {
	y, m, d := t.Date()
	first := time.Date(y, m+time.Month(n), 1, 0, 0, 0, 0, time.UTC)
	last := first.AddDate(0, 1, -1).Day()
	if d > last {
		d = last
	}
	return time.Date(first.Year(), first.Month(), d, 0, 0, 0, 0, time.UTC)
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// CarryDays folds whole 30-day blocks of days into months.
func CarryDays(months, days int) (int, int) {
	return months + days/daysPerMonth, days % daysPerMonth
}

// VerifyExperience recomputes the duration of every experience entry from
// its dates. An entry counts only when the model validated it and both dates
// are complete with the end not before the start; ongoing entries end at
// asOf. Totals add up counted entries only. Differences with the model's own
// figures are reported as discrepancies.
func VerifyExperience(entries []models.ExperienceEntry, asOf time.Time) *models.ExperienceSummary {
	summary := &models.ExperienceSummary{}

	var modelMonths, modelDays, months, days int
	for _, entry := range entries {
		verified := verifyEntry(entry, asOf)
		summary.Entries = append(summary.Entries, verified)

		modelValidated := entry.Validated == "SI"
		if modelValidated {
			modelMonths += entry.Months
			modelDays += entry.Days
		}

		if verified.Valid {
			months += verified.ComputedMonths
			days += verified.ComputedDays
		}

		switch {
		case modelValidated && !verified.Valid:
			summary.Discrepancies = append(summary.Discrepancies,
				fmt.Sprintf("%s: validada por el modelo pero descartada (%s)", entry.Employer, verified.Reason))
		case verified.Valid && !sameDuration(entry.Months, entry.Days, verified.ComputedMonths, verified.ComputedDays):
			summary.Discrepancies = append(summary.Discrepancies,
				fmt.Sprintf("%s: el modelo reportó %d meses %d días, el cálculo da %d meses %d días",
					entry.Employer, entry.Months, entry.Days, verified.ComputedMonths, verified.ComputedDays))
		}
	}

	summary.TotalMonths, summary.TotalDays = CarryDays(months, days)
	summary.ModelTotalMonths, summary.ModelTotalDays = CarryDays(modelMonths, modelDays)

	if !sameDuration(summary.TotalMonths, summary.TotalDays, summary.ModelTotalMonths, summary.ModelTotalDays) {
		summary.Discrepancies = append(summary.Discrepancies,
			fmt.Sprintf("total: el modelo reportó %d meses %d días, el cálculo da %d meses %d días",
				summary.ModelTotalMonths, summary.ModelTotalDays, summary.TotalMonths, summary.TotalDays))
	}

	return summary
}

func verifyEntry(entry models.ExperienceEntry, asOf time.Time) models.VerifiedExperience {
	verified := models.VerifiedExperience{ExperienceEntry: entry}

	start, err := ParseDate(entry.StartDate)
	if err != nil {
		verified.Reason = "fecha de inicio incompleta o inválida"
		return verified
	}

	var end time.Time
	if isOngoing(entry.EndDate) {
		end = asOf
	} else if end, err = ParseDate(entry.EndDate); err != nil {
		verified.Reason = "fecha de fin incompleta o inválida"
		return verified
	}

	if end.Before(start) {
		verified.Reason = "la fecha de fin es anterior a la de inicio"
		return verified
	}

	verified.ComputedMonths, verified.ComputedDays = MonthsBetween(start, end)

	if entry.Validated != "SI" {
		verified.Reason = "no validada por el modelo"
		return verified
	}

	verified.Valid = true
	return verified
}

// sameDuration compares two month/day durations allowing one day of rounding.
func sameDuration(m1, d1, m2, d2 int) bool {
	diff := (m1*daysPerMonth + d1) - (m2*daysPerMonth + d2)
	return diff >= -1 && diff <= 1
}

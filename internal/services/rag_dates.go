package services

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/advisorkit/consultant-backend/internal/repos"
)

// Date expressions are matched against the lowercased question. Rules are
// tried in a fixed order; the first hit wins. All bounds are inclusive, with
// the end pinned to 23:59:59 of the closing day.

var (
	reQuarterLatin    = regexp.MustCompile(`\bq([1-4])\s*(\d{4})\b`)
	reYearQuarter     = regexp.MustCompile(`\b(\d{4})\s*q([1-4])\b`)
	reQuarterRu       = regexp.MustCompile(`\b([1-4])\s*-?\s*(?:й|ый|ий|ом|м)?\s*кварта[а-яё]*(?:\s+(\d{4}))?`)
	reQuarterRuWord   = regexp.MustCompile(`(?:^|\s)(перв|втор|трет|четверт|четвёрт)[а-яё]*\s+кварта[а-яё]*(?:\s+(\d{4}))?`)
	reExplicitYear    = regexp.MustCompile(`(?:^|\s)(?:за|в|на)\s+(\d{4})(?:\s*год[а-яё]*)?`)
	reBareYear        = regexp.MustCompile(`\b(\d{4})\s*год[а-яё]*`)
	rePrevYear        = regexp.MustCompile(`прошл[а-яё]*\s+год[а-яё]*`)
	rePrevQuarter     = regexp.MustCompile(`прошл[а-яё]*\s+кварта[а-яё]*`)
	rePrevMonth       = regexp.MustCompile(`прошл[а-яё]*\s+месяц[а-яё]*`)
	reLastN           = regexp.MustCompile(`последн[а-яё]*\s+(?:(\d+)\s+)?(месяц[а-яё]*|недел[а-яё]*|дн[а-яё]*|день)`)
	reMonthName       = regexp.MustCompile(`(?:^|\s)(январ|феврал|март|апрел|ма[йея]|июн|июл|август|сентябр|октябр|ноябр|декабр)[а-яё]*(?:\s+(\d{4}))?`)
	ruQuarterWordsMap = map[string]int{"перв": 1, "втор": 2, "трет": 3, "четверт": 4, "четвёрт": 4}
	ruMonthStems      = map[string]time.Month{
		"январ": time.January, "феврал": time.February, "март": time.March,
		"апрел": time.April, "май": time.May, "мае": time.May, "мая": time.May,
		"июн": time.June, "июл": time.July, "август": time.August,
		"сентябр": time.September, "октябр": time.October, "ноябр": time.November,
		"декабр": time.December,
	}
	ruMonthNames = map[time.Month]string{
		time.January: "январь", time.February: "февраль", time.March: "март",
		time.April: "апрель", time.May: "май", time.June: "июнь",
		time.July: "июль", time.August: "август", time.September: "сентябрь",
		time.October: "октябрь", time.November: "ноябрь", time.December: "декабрь",
	}
)

// parseDateRange extracts a date window from a free-form question, or nil
// when the question carries no recognizable period.
func parseDateRange(question string, now time.Time) *repos.DateRange {
	q := strings.ToLower(question)

	if m := reQuarterLatin.FindStringSubmatch(q); m != nil {
		return quarterRange(atoi(m[2]), atoi(m[1]), now.Location())
	}
	if m := reYearQuarter.FindStringSubmatch(q); m != nil {
		return quarterRange(atoi(m[1]), atoi(m[2]), now.Location())
	}
	if m := reQuarterRu.FindStringSubmatch(q); m != nil {
		year := now.Year()
		if m[2] != "" {
			year = atoi(m[2])
		}
		return quarterRange(year, atoi(m[1]), now.Location())
	}
	if m := reQuarterRuWord.FindStringSubmatch(q); m != nil {
		year := now.Year()
		if m[2] != "" {
			year = atoi(m[2])
		}
		return quarterRange(year, ruQuarterWordsMap[m[1]], now.Location())
	}

	// an explicit year outranks the relative "прошлый …" forms
	if m := reExplicitYear.FindStringSubmatch(q); m != nil {
		if y := atoi(m[1]); plausibleYear(y) {
			return yearRange(y, now.Location())
		}
	}
	if m := reBareYear.FindStringSubmatch(q); m != nil {
		if y := atoi(m[1]); plausibleYear(y) {
			return yearRange(y, now.Location())
		}
	}

	if rePrevYear.MatchString(q) {
		return yearRange(now.Year()-1, now.Location())
	}
	if rePrevQuarter.MatchString(q) {
		y, quarter := now.Year(), (int(now.Month())-1)/3+1
		if quarter == 1 {
			y, quarter = y-1, 4
		} else {
			quarter--
		}
		return quarterRange(y, quarter, now.Location())
	}
	if rePrevMonth.MatchString(q) {
		first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
		prev := first.AddDate(0, -1, 0)
		return monthRange(prev.Year(), prev.Month(), now.Location())
	}

	if m := reMonthName.FindStringSubmatch(q); m != nil {
		month, ok := ruMonthStems[m[1]]
		if !ok {
			// the "ма[йея]" branch matched but the stem key is the full token
			month = time.May
		}
		year := now.Year()
		if m[2] != "" {
			year = atoi(m[2])
		}
		return monthRange(year, month, now.Location())
	}

	if m := reLastN.FindStringSubmatch(q); m != nil {
		n := 1
		if m[1] != "" {
			n = atoi(m[1])
		}
		if n <= 0 {
			return nil
		}
		var start time.Time
		unit := m[2]
		switch {
		case strings.HasPrefix(unit, "месяц"):
			start = now.AddDate(0, -n, 0)
		case strings.HasPrefix(unit, "недел"):
			start = now.AddDate(0, 0, -7*n)
		default:
			start = now.AddDate(0, 0, -n)
		}
		return &repos.DateRange{
			Start:       start,
			End:         now,
			Description: strings.TrimSpace(m[0]),
		}
	}

	return nil
}

func plausibleYear(y int) bool { return y >= 2000 && y <= 2100 }

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

func quarterRange(year, quarter int, loc *time.Location) *repos.DateRange {
	if quarter < 1 || quarter > 4 || !plausibleYear(year) {
		return nil
	}
	startMonth := time.Month((quarter-1)*3 + 1)
	start := time.Date(year, startMonth, 1, 0, 0, 0, 0, loc)
	end := start.AddDate(0, 3, 0).Add(-time.Second)
	return &repos.DateRange{
		Start:       start,
		End:         end,
		Description: fmt.Sprintf("Q%d %d", quarter, year),
	}
}

func yearRange(year int, loc *time.Location) *repos.DateRange {
	start := time.Date(year, time.January, 1, 0, 0, 0, 0, loc)
	end := time.Date(year, time.December, 31, 23, 59, 59, 0, loc)
	return &repos.DateRange{
		Start:       start,
		End:         end,
		Description: fmt.Sprintf("%d год", year),
	}
}

func monthRange(year int, month time.Month, loc *time.Location) *repos.DateRange {
	start := time.Date(year, month, 1, 0, 0, 0, 0, loc)
	end := start.AddDate(0, 1, 0).Add(-time.Second)
	return &repos.DateRange{
		Start:       start,
		End:         end,
		Description: fmt.Sprintf("%s %d", ruMonthNames[month], year),
	}
}

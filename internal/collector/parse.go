package collector

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/x/ansi"

	"github.com/j-veylop/claude-meter/internal/models"
)

var (
	percentPattern = regexp.MustCompile(`(?i)(\d{1,3})\s*%\s*(used|left)`)
	daysPattern    = regexp.MustCompile(`(?i)(\d+)\s*d(?:ays?)?\b`)
	hoursPattern   = regexp.MustCompile(`(?i)(\d+)\s*h(?:ours?|r)?\b`)
	minutesPattern = regexp.MustCompile(`(?i)(\d+)\s*m(?:in(?:utes?)?)?\b`)

	// Absolute reset time, with and without a date
	timeOnlyPattern   = regexp.MustCompile(`(?i)(\d{1,2})(?::(\d{2}))?(am|pm)\b`)
	dateNoYearPattern = regexp.MustCompile(
		`(?i)\b(Jan|Feb|Mar|Apr|May|Jun|Jul|Aug|Sep|Oct|Nov|Dec)\s+(\d{1,2}),?\s+(1[0-2]|[1-9])(?::(\d{2}))?(am|pm)\b`)

	proPattern   = regexp.MustCompile(`(?i)(?:·\s*)?claude\s+pro`)
	maxPattern   = regexp.MustCompile(`(?i)(?:·\s*)?claude\s+max`)
	emailPattern = regexp.MustCompile(`([a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,})`)

	// Cursor-forward sequences split words in the PTY output; replace with a
	// space before stripping so word boundaries survive.
	cursorForwardPattern = regexp.MustCompile(`\x1b\[\d*C`)

	// "Rese s" is a cursor-movement artifact of "Resets"
	resetArtifactPattern = regexp.MustCompile(`Rese\s+s\s+`)
)

// windowLabels maps usage section headings (lowercased) to window ids.
var windowLabels = []struct {
	label string
	id    models.WindowID
}{
	{"current session", models.WindowSession},
	{"current week (all models)", models.WindowWeekly},
	{"current week (opus)", models.WindowOpus},
	{"current week (sonnet)", models.WindowSonnet},
	{"current week (opus only)", models.WindowOpus},
	{"current week (sonnet only)", models.WindowSonnet},
	{"week (all models)", models.WindowWeekly},
	{"week (opus only)", models.WindowOpus},
	{"week (sonnet only)", models.WindowSonnet},
}

// lookaheadLines bounds how far below a section heading the percentage and
// reset text may appear.
const lookaheadLines = 5

// windowLimit is the ceiling for every window: the CLI reports usage in
// percent points.
const windowLimit = 100.0

// stripANSI removes escape sequences and repairs artifacts left by cursor
// movement in the tool's interactive output.
func stripANSI(text string) string {
	text = cursorForwardPattern.ReplaceAllString(text, " ")
	text = ansi.Strip(text)
	text = resetArtifactPattern.ReplaceAllString(text, "Resets ")
	return text
}

// parsePercentUsed extracts a usage percentage from a line. "NN% left" is
// converted to used.
func parsePercentUsed(line string) (float64, bool) {
	m := percentPattern.FindStringSubmatch(line)
	if m == nil {
		return 0, false
	}
	value, err := strconv.Atoi(m[1])
	if err != nil || value > 100 {
		return 0, false
	}
	if strings.EqualFold(m[2], "left") {
		return float64(100 - value), true
	}
	return float64(value), true
}

// parseRelativeDuration parses a "2d 3h 45m" style remaining time.
func parseRelativeDuration(text string) (time.Duration, bool) {
	var total time.Duration

	if m := daysPattern.FindStringSubmatch(text); m != nil {
		d, _ := strconv.Atoi(m[1])
		total += time.Duration(d) * 24 * time.Hour
	}
	if m := hoursPattern.FindStringSubmatch(text); m != nil {
		h, _ := strconv.Atoi(m[1])
		total += time.Duration(h) * time.Hour
	}
	if m := minutesPattern.FindStringSubmatch(text); m != nil {
		min, _ := strconv.Atoi(m[1])
		total += time.Duration(min) * time.Minute
	}

	return total, total > 0
}

var monthIndex = map[string]time.Month{
	"jan": time.January, "feb": time.February, "mar": time.March,
	"apr": time.April, "may": time.May, "jun": time.June,
	"jul": time.July, "aug": time.August, "sep": time.September,
	"oct": time.October, "nov": time.November, "dec": time.December,
}

func hour12To24(hour int, ampm string) int {
	switch {
	case strings.EqualFold(ampm, "pm") && hour != 12:
		return hour + 12
	case strings.EqualFold(ampm, "am") && hour == 12:
		return 0
	}
	return hour
}

// parseResetTime scans up to lookaheadLines past the percentage line for a
// reset timestamp: a relative duration, an absolute date, or a bare
// time-of-day (rolled forward when already past).
func parseResetTime(lines []string, start int, now time.Time) time.Time {
	end := min(start+lookaheadLines, len(lines))
	searchText := strings.Join(lines[start:end], " ")

	if m := dateNoYearPattern.FindStringSubmatch(searchText); m != nil {
		month := monthIndex[strings.ToLower(m[1])]
		day, _ := strconv.Atoi(m[2])
		hour, _ := strconv.Atoi(m[3])
		minute := 0
		if m[4] != "" {
			minute, _ = strconv.Atoi(m[4])
		}
		hour = hour12To24(hour, m[5])

		reset := time.Date(now.Year(), month, day, hour, minute, 0, 0, now.Location())
		if reset.Before(now) {
			reset = time.Date(now.Year()+1, month, day, hour, minute, 0, 0, now.Location())
		}
		return reset
	}

	if m := timeOnlyPattern.FindStringSubmatch(searchText); m != nil {
		hour, _ := strconv.Atoi(m[1])
		minute := 0
		if m[2] != "" {
			minute, _ = strconv.Atoi(m[2])
		}
		hour = hour12To24(hour, m[3])

		reset := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
		if reset.Before(now) {
			reset = reset.Add(24 * time.Hour)
		}
		return reset
	}

	if d, ok := parseRelativeDuration(searchText); ok {
		return now.Add(d)
	}

	return time.Time{}
}

// detectAccountType classifies the subscription from the report header.
func detectAccountType(text string) models.AccountType {
	if maxPattern.MatchString(text) {
		return models.AccountMax
	}
	if proPattern.MatchString(text) {
		return models.AccountPro
	}
	return models.AccountUnknown
}

// parseEmail extracts the account email from the output, if present.
func parseEmail(text string) string {
	if m := emailPattern.FindStringSubmatch(text); m != nil {
		return m[1]
	}
	return ""
}

// parseUsage turns cleaned tool output into per-window usage entries. The
// parse is strict: output with no recognizable quota section is rejected
// rather than returned as a partial structure.
func parseUsage(cleaned string, now time.Time) ([]models.WindowUsage, error) {
	cleaned = strings.ReplaceAll(cleaned, "\r\n", "\n")
	cleaned = strings.ReplaceAll(cleaned, "\r", "\n")
	lines := strings.Split(cleaned, "\n")

	var windows []models.WindowUsage
	seen := make(map[models.WindowID]bool)

	for i, line := range lines {
		lineLower := strings.ToLower(line)

		for _, wl := range windowLabels {
			if !strings.Contains(lineLower, wl.label) {
				continue
			}
			if seen[wl.id] {
				break
			}

			// The percentage may trail the heading by a few lines
			for j := i; j < min(i+lookaheadLines, len(lines)); j++ {
				used, ok := parsePercentUsed(lines[j])
				if !ok {
					continue
				}
				windows = append(windows, models.WindowUsage{
					WindowID: wl.id,
					Used:     used,
					Limit:    windowLimit,
					ResetAt:  parseResetTime(lines, j, now),
				})
				seen[wl.id] = true
				break
			}
			break
		}
	}

	if len(windows) == 0 {
		return nil, fmt.Errorf("no quota windows found in output")
	}

	return windows, nil
}

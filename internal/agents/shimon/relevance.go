package shimon

import (
	"math"
	"strings"
	"time"

	"agentsplatform/internal/domain/knowledge"
)

var relevantCategories = []string{"הוצאה לפועל", "עיקולים", "פשיטת רגל", "חדלות פירעון"}

var relevantTerms = []string{"הוצאה לפועל", "עיקול", "חוב", "נושה", "חייב", "פשיטת רגל"}

var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"02/01/2006",
	"02.01.2006",
}

// ParseDate accepts ISO dates and the day-first formats used by Israeli sites
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// Relevance scores a ruling for the execution office domain. An unparseable
// date yields the base score.
func Relevance(r *knowledge.Ruling, now time.Time) float64 {
	const base = 0.5

	date, ok := ParseDate(r.Date)
	if !ok {
		return base
	}

	score := base
	daysOld := int(now.Sub(date).Hours() / 24)
	switch {
	case daysOld < 30:
		score += 0.3
	case daysOld < 90:
		score += 0.2
	case daysOld < 365:
		score += 0.1
	}

	for _, category := range r.Categories {
		lower := strings.ToLower(category)
		for _, rc := range relevantCategories {
			if strings.Contains(lower, rc) {
				score += 0.1
				break
			}
		}
	}

	content := strings.ToLower(r.Content)
	for _, term := range relevantTerms {
		if strings.Contains(content, term) {
			score += 0.05
		}
	}

	return math.Min(score, 1.0)
}

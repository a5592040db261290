package shimon

import (
	"math"
	"strings"
)

// confidenceMarkers each add 0.1 when any of their phrases appears in the answer:
// statute citations, case law, practical recommendations and caveats.
var confidenceMarkers = [][]string{
	{"סעיף", "תקנה"},
	{"פסק דין", `ע"א`},
	{"מומלץ", "יש לפעול"},
	{"יש לשים לב", "חשוב לציין"},
}

// Confidence scores an answer between 0.5 and 1.0
func Confidence(answer string) float64 {
	score := 0.5
	for _, group := range confidenceMarkers {
		for _, phrase := range group {
			if strings.Contains(answer, phrase) {
				score += 0.1
				break
			}
		}
	}
	if len(strings.Fields(answer)) > 50 {
		score += 0.1
	}
	return math.Min(score, 1.0)
}

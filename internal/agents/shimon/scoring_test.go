package shimon

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"agentsplatform/internal/domain/knowledge"
)

func TestConfidence(t *testing.T) {
	tests := []struct {
		name   string
		answer string
		want   float64
	}{
		{"plain", "תשובה קצרה", 0.5},
		{"statute", "לפי סעיף 7 לחוק", 0.6},
		{"statute and ruling", `לפי תקנה 3 וע"א 1234/20`, 0.7},
		{"all markers", "סעיף 1, פסק דין, מומלץ לפנות, יש לשים לב " + strings.Repeat("מילה ", 50), 1.0},
		{"two phrases of one group count once", "סעיף ותקנה", 0.6},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Confidence(tt.answer), 1e-9)
		})
	}
}

func TestRelevance(t *testing.T) {
	now := time.Date(2024, 6, 30, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		ruling knowledge.Ruling
		want   float64
	}{
		{
			name:   "recent with no matches",
			ruling: knowledge.Ruling{Date: "2024-06-20", Content: "כללי"},
			want:   0.8,
		},
		{
			name:   "two months old",
			ruling: knowledge.Ruling{Date: "2024-05-01", Content: "כללי"},
			want:   0.7,
		},
		{
			name:   "half a year old, day-first date",
			ruling: knowledge.Ruling{Date: "01/01/2024", Content: "כללי"},
			want:   0.6,
		},
		{
			name:   "old ruling",
			ruling: knowledge.Ruling{Date: "2019-01-01", Content: "כללי"},
			want:   0.5,
		},
		{
			name: "categories and terms",
			ruling: knowledge.Ruling{
				Date:       "2019-01-01",
				Categories: []string{"הוצאה לפועל", "דיני משפחה"},
				Content:    "החייב לא שילם את החוב",
			},
			// +0.1 category, +0.05 חוב, +0.05 חייב
			want: 0.7,
		},
		{
			name: "capped",
			ruling: knowledge.Ruling{
				Date:       "2024-06-29",
				Categories: []string{"הוצאה לפועל", "עיקולים", "פשיטת רגל"},
				Content:    "הוצאה לפועל עיקול חוב נושה חייב פשיטת רגל",
			},
			want: 1.0,
		},
		{
			name:   "bad date",
			ruling: knowledge.Ruling{Date: "אתמול", Categories: []string{"עיקולים"}},
			want:   0.5,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Relevance(&tt.ruling, now), 1e-9)
		})
	}
}

func TestMatchCategory(t *testing.T) {
	assert.Equal(t, "bankruptcy", MatchCategory("הקטגוריה: פשיטת רגל"))
	assert.Equal(t, "execution", MatchCategory("הוצאה לפועל / עיקולים"))
	assert.Equal(t, CategoryGeneral, MatchCategory("דיני עבודה"))

	assert.Equal(t, "foreclosure", CategoryKey(" עיקולים "))
	assert.Equal(t, "דיני עבודה", CategoryKey("דיני עבודה"))

	assert.Equal(t, []string{"execution", "הוצאה לפועל"}, filterValues("execution"))
	assert.Nil(t, filterValues(CategoryGeneral))
}

func TestFormatLegalQuery(t *testing.T) {
	out := formatLegalQuery("מה עושים?", `{"rulings":[]}`, []string{"פס\"ד א - http://a", "פס\"ד ב - http://b"})
	assert.True(t, strings.HasPrefix(out, "שאלה משפטית: מה עושים?"))
	assert.Contains(t, out, "פס\"ד א - http://a\nפס\"ד ב - http://b")
	assert.Contains(t, out, "4. הסתייגויות")

	prompt := classifierPrompt()
	for _, c := range Categories {
		assert.Contains(t, prompt, "- "+c.Label)
	}
}

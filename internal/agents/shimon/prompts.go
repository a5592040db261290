package shimon

import (
	"fmt"
	"strings"
)

func classifierPrompt() string {
	var sb strings.Builder
	sb.WriteString("אתה מסווג שאלות משפטיות. סווג את השאלה הבאה לאחת מהקטגוריות הבאות:\n")
	for _, c := range Categories {
		sb.WriteString("- ")
		sb.WriteString(c.Label)
		sb.WriteString("\n")
	}
	sb.WriteString("השב בקטגוריה בלבד.")
	return sb.String()
}

const queryTemplate = `שאלה משפטית: %s

מידע רלוונטי:
%s

אסמכתאות משפטיות:
%s

אנא ספק תשובה מקיפה הכוללת:
1. התייחסות לחוק ולתקנות הרלוונטיות
2. אזכור פסיקה רלוונטית מהאסמכתאות
3. המלצות מעשיות לפעולה
4. הסתייגויות או נקודות חשובות לתשומת לב`

func formatLegalQuery(query, knowledgeJSON string, references []string) string {
	return fmt.Sprintf(queryTemplate, query, knowledgeJSON, strings.Join(references, "\n"))
}

package shimon

import "strings"

// CategoryGeneral is used when a query matches no legal category
const CategoryGeneral = "general"

// Category is a legal domain Shimon specializes in
type Category struct {
	Key   string
	Label string
}

// Categories in classifier priority order
var Categories = []Category{
	{Key: "execution", Label: "הוצאה לפועל"},
	{Key: "debt_collection", Label: "גביית חובות"},
	{Key: "foreclosure", Label: "עיקולים"},
	{Key: "bankruptcy", Label: "פשיטת רגל"},
	{Key: "legal_proceedings", Label: "הליכים משפטיים"},
}

// Label returns the Hebrew label of a category key
func Label(key string) (string, bool) {
	for _, c := range Categories {
		if c.Key == key {
			return c.Label, true
		}
	}
	return "", false
}

// MatchCategory returns the key of the first category whose label appears in text
func MatchCategory(text string) string {
	for _, c := range Categories {
		if strings.Contains(text, c.Label) {
			return c.Key
		}
	}
	return CategoryGeneral
}

// CategoryKey normalizes a scraped category label to a category key.
// Unknown labels are returned trimmed.
func CategoryKey(label string) string {
	label = strings.TrimSpace(label)
	if key := MatchCategory(label); key != CategoryGeneral {
		return key
	}
	return label
}

// filterValues are the stored values a category lookup matches on
func filterValues(category string) []string {
	if category == "" || category == CategoryGeneral {
		return nil
	}
	if label, ok := Label(category); ok {
		return []string{category, label}
	}
	return []string{category}
}

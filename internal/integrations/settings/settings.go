// Package settings holds the per-platform messaging constants: footers,
// canned replies, rate limits and the Telegram keyboards.
package settings

import "time"

// Response template keys
const (
	TemplateError          = "error"
	TemplateProcessing     = "processing"
	TemplateMissingContext = "missing_context"
	TemplateNotLegal       = "not_legal"
)

// MessageFooter is appended to every agent answer
const MessageFooter = "\n\n---\nנשלח על ידי שמעון AI - עוזר משפטי חכם"

// RateLimit is a platform's outbound message budget per window
type RateLimit struct {
	PerSecond int
	PerMinute int
	PerHour   int
	PerDay    int
}

// Windows lists the quota windows above one second with their limits
func (r RateLimit) Windows() map[time.Duration]int {
	return map[time.Duration]int{
		time.Minute:    r.PerMinute,
		time.Hour:      r.PerHour,
		24 * time.Hour: r.PerDay,
	}
}

// Platform describes how answers are shaped for one messaging platform
type Platform struct {
	Name             string
	MaxMessageLength int
	// SplitLength is the chunk size long answers are cut into
	SplitLength int
	Footer      string
	Templates   map[string]string
	RateLimit   RateLimit
}

// Template returns the canned reply for key, or "" when unknown
func (p Platform) Template(key string) string {
	return p.Templates[key]
}

var Telegram = Platform{
	Name:             "telegram",
	MaxMessageLength: 4096,
	SplitLength:      Processing.ChunkSize,
	Footer:           MessageFooter,
	Templates: map[string]string{
		TemplateError:          "🚫 מצטער, אירעה שגיאה בעיבוד הבקשה. אנא נסה שוב מאוחר יותר.",
		TemplateProcessing:     "⌛ מעבד את השאלה שלך...",
		TemplateMissingContext: "❓ אני צריך מידע נוסף. אנא פרט יותר.",
		TemplateNotLegal:       "📢 השאלה אינה בתחום המשפטי. אני מתמחה בשאלות בנושא הוצאה לפועל ואכיפת פסקי דין.",
	},
	RateLimit: RateLimit{PerSecond: 30, PerMinute: 120, PerHour: 3000, PerDay: 50000},
}

var WhatsApp = Platform{
	Name:             "whatsapp",
	MaxMessageLength: 4096,
	SplitLength:      1500,
	Footer:           MessageFooter,
	Templates: map[string]string{
		TemplateError:          "מצטער, אירעה שגיאה בעיבוד הבקשה. אנא נסה שוב מאוחר יותר.",
		TemplateProcessing:     "אני מעבד את השאלה שלך, אנא המתן...",
		TemplateMissingContext: "אני צריך מידע נוסף כדי לענות על השאלה. אנא פרט יותר.",
		TemplateNotLegal:       "השאלה אינה בתחום המשפטי. אני מתמחה בשאלות בנושא הוצאה לפועל ואכיפת פסקי דין.",
	},
	RateLimit: RateLimit{PerSecond: 10, PerMinute: 60, PerHour: 1000, PerDay: 10000},
}

// WhatsApp inbound content the platform accepts
var (
	WhatsAppAllowedTypes  = []string{"text", "document"}
	WhatsAppDocumentTypes = []string{".pdf", ".doc", ".docx", ".txt"}
)

// ProcessingSettings are shared by every platform client
type ProcessingSettings struct {
	MaxRetries       int
	RetryDelay       time.Duration
	Timeout          time.Duration
	ChunkSize        int
	AllowedMIMETypes []string
	MaxFileSize      int64
}

var Processing = ProcessingSettings{
	MaxRetries: 3,
	RetryDelay: time.Second,
	Timeout:    30 * time.Second,
	ChunkSize:  4000,
	AllowedMIMETypes: []string{
		"application/pdf",
		"application/msword",
		"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
		"text/plain",
	},
	MaxFileSize: 10 * 1024 * 1024,
}

// AllowedMIMEType reports whether uploads of mimeType are accepted
func AllowedMIMEType(mimeType string) bool {
	for _, t := range Processing.AllowedMIMETypes {
		if t == mimeType {
			return true
		}
	}
	return false
}

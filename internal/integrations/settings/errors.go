package settings

// Error message keys
const (
	ErrorRateLimit       = "rate_limit"
	ErrorInvalidToken    = "invalid_token"
	ErrorNetwork         = "network_error"
	ErrorInvalidFormat   = "invalid_format"
	ErrorFileTooLarge    = "file_too_large"
	ErrorUnsupportedType = "unsupported_type"
	ErrorProcessing      = "processing_error"
	ErrorMaintenance     = "maintenance"
)

var errorMessages = map[string]string{
	ErrorRateLimit:       "חרגת ממגבלת השימוש. אנא נסה שוב בעוד מספר דקות.",
	ErrorInvalidToken:    "מפתח API לא תקין",
	ErrorNetwork:         "בעיית תקשורת. אנא נסה שוב.",
	ErrorInvalidFormat:   "פורמט הודעה לא תקין",
	ErrorFileTooLarge:    "הקובץ גדול מדי. הגודל המקסימלי הוא 10MB.",
	ErrorUnsupportedType: "סוג קובץ לא נתמך",
	ErrorProcessing:      "שגיאה בעיבוד ההודעה",
	ErrorMaintenance:     "המערכת בתחזוקה. אנא נסה שוב מאוחר יותר.",
}

// ErrorMessage returns the user-facing text for key, falling back to processing_error
func ErrorMessage(key string) string {
	if msg, ok := errorMessages[key]; ok {
		return msg
	}
	return errorMessages[ErrorProcessing]
}

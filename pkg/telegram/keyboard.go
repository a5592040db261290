package telegram

import (
	"encoding/json"
)

// InlineKeyboardMarkup represents an inline keyboard (abstraction from tgbotapi).
// The JSON form matches the Bot API reply_markup object.
type InlineKeyboardMarkup struct {
	InlineKeyboard [][]InlineKeyboardButton `json:"inline_keyboard"`
}

// InlineKeyboardButton represents a button in inline keyboard
type InlineKeyboardButton struct {
	Text         string `json:"text"`
	CallbackData string `json:"callback_data,omitempty"`
	URL          string `json:"url,omitempty"`
}

// NewInlineKeyboardMarkup creates a new inline keyboard markup
func NewInlineKeyboardMarkup(rows ...[]InlineKeyboardButton) InlineKeyboardMarkup {
	return InlineKeyboardMarkup{
		InlineKeyboard: rows,
	}
}

// NewInlineKeyboardRow creates a row of inline keyboard buttons
func NewInlineKeyboardRow(buttons ...InlineKeyboardButton) []InlineKeyboardButton {
	return buttons
}

// NewInlineKeyboardButtonData creates a button with callback data
func NewInlineKeyboardButtonData(text, callbackData string) InlineKeyboardButton {
	return InlineKeyboardButton{
		Text:         text,
		CallbackData: callbackData,
	}
}

// KeyboardFrom converts a loosely typed keyboard (as found in response metadata)
// into a markup. It accepts the markup itself, a pointer to it, or any value
// whose JSON form is a reply_markup object. ok is false when no buttons were found.
func KeyboardFrom(v interface{}) (*InlineKeyboardMarkup, bool) {
	switch kb := v.(type) {
	case nil:
		return nil, false
	case InlineKeyboardMarkup:
		return &kb, len(kb.InlineKeyboard) > 0
	case *InlineKeyboardMarkup:
		return kb, kb != nil && len(kb.InlineKeyboard) > 0
	}

	raw, err := json.Marshal(v)
	if err != nil {
		return nil, false
	}
	var kb InlineKeyboardMarkup
	if err := json.Unmarshal(raw, &kb); err != nil || len(kb.InlineKeyboard) == 0 {
		return nil, false
	}
	return &kb, true
}

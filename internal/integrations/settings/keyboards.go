package settings

import "agentsplatform/pkg/telegram"

// Keyboard template names
const (
	KeyboardMainMenu   = "main_menu"
	KeyboardCategories = "categories"
)

// MainMenuKeyboard is the top-level Telegram menu
func MainMenuKeyboard() telegram.InlineKeyboardMarkup {
	return telegram.NewInlineKeyboardMarkup(
		telegram.NewInlineKeyboardRow(
			telegram.NewInlineKeyboardButtonData("📚 מידע על הוצאה לפועל", "info_execution"),
			telegram.NewInlineKeyboardButtonData("💼 שאלות נפוצות", "faq"),
		),
		telegram.NewInlineKeyboardRow(
			telegram.NewInlineKeyboardButtonData("📋 הגשת בקשה", "submit_request"),
			telegram.NewInlineKeyboardButtonData("📞 יצירת קשר", "contact"),
		),
	)
}

// CategoriesKeyboard lets the user pick a legal topic
func CategoriesKeyboard() telegram.InlineKeyboardMarkup {
	return telegram.NewInlineKeyboardMarkup(
		telegram.NewInlineKeyboardRow(
			telegram.NewInlineKeyboardButtonData("עיקולים", "category_seizure"),
			telegram.NewInlineKeyboardButtonData("פסקי דין", "category_rulings"),
		),
		telegram.NewInlineKeyboardRow(
			telegram.NewInlineKeyboardButtonData("גביית חובות", "category_debt"),
			telegram.NewInlineKeyboardButtonData("פשיטת רגל", "category_bankruptcy"),
		),
		telegram.NewInlineKeyboardRow(
			telegram.NewInlineKeyboardButtonData("חזרה לתפריט הראשי", KeyboardMainMenu),
		),
	)
}

// Keyboard returns a named keyboard template
func Keyboard(name string) (telegram.InlineKeyboardMarkup, bool) {
	switch name {
	case KeyboardMainMenu:
		return MainMenuKeyboard(), true
	case KeyboardCategories:
		return CategoriesKeyboard(), true
	default:
		return telegram.InlineKeyboardMarkup{}, false
	}
}

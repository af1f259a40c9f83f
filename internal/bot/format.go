package bot

import (
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	sr "github.com/example/reviewplanner/internal/spaced_repetition"
	"github.com/example/reviewplanner/pkg/models"
)

// Callback data prefixes
const (
	callbackMainMenu = "main_menu"
	callbackPlan     = "show_plan"
	callbackDue      = "show_due"
	callbackStats    = "show_stats"
	callbackReveal   = "reveal:"
	callbackQuality  = "q:"
)

// MenuButton represents a button in the menu
type MenuButton struct {
	Text         string
	CallbackData string
}

// createKeyboard creates a keyboard from menu buttons
func createKeyboard(buttons [][]MenuButton) tgbotapi.InlineKeyboardMarkup {
	var keyboard [][]tgbotapi.InlineKeyboardButton
	for _, row := range buttons {
		var keyboardRow []tgbotapi.InlineKeyboardButton
		for _, button := range row {
			keyboardRow = append(keyboardRow, tgbotapi.NewInlineKeyboardButtonData(button.Text, button.CallbackData))
		}
		keyboard = append(keyboard, keyboardRow)
	}
	return tgbotapi.NewInlineKeyboardMarkup(keyboard...)
}

// mainMenuButtons returns the buttons for the main menu
func mainMenuButtons() [][]MenuButton {
	return [][]MenuButton{
		{
			{Text: "🎯 Review now", CallbackData: callbackDue},
			{Text: "📅 Plan", CallbackData: callbackPlan},
		},
		{
			{Text: "📊 Statistics", CallbackData: callbackStats},
		},
	}
}

// qualityButtons offers the 0-5 grades for one item. Callback data stays
// well under Telegram's 64 byte limit: "q:" + 36 char uuid + ":" + digit.
func qualityButtons(item models.LearningItem) [][]MenuButton {
	grade := func(q sr.Quality, label string) MenuButton {
		return MenuButton{Text: label, CallbackData: fmt.Sprintf("%s%s:%d", callbackQuality, item.ID, int(q))}
	}
	return [][]MenuButton{
		{grade(sr.QualityBlackout, "0 ❌"), grade(sr.QualityIncorrectRemembered, "1"), grade(sr.QualityDifficult, "2")},
		{grade(sr.QualityCorrectHesitant, "3"), grade(sr.QualityCorrect, "4"), grade(sr.QualityPerfect, "5 ✅")},
	}
}

func revealButtons(item models.LearningItem) [][]MenuButton {
	return [][]MenuButton{{{Text: "👀 Show answer", CallbackData: callbackReveal + item.ID.String()}}}
}

// formatItemPrompt shows the side of an item the user should recall from.
func formatItemPrompt(item models.LearningItem) string {
	var sb strings.Builder
	if item.Topic != "" {
		fmt.Fprintf(&sb, "📚 %s\n\n", item.Topic)
	}
	if item.Question != "" {
		sb.WriteString("❓ " + item.Question)
	} else {
		sb.WriteString(item.Content)
	}
	return sb.String()
}

// formatItemAnswer shows the full item and asks for a grade.
func formatItemAnswer(item models.LearningItem) string {
	var sb strings.Builder
	sb.WriteString(formatItemPrompt(item))
	if item.Question != "" {
		sb.WriteString("\n\n" + item.Content)
	}
	if item.Answer != "" {
		sb.WriteString("\n\n💡 " + item.Answer)
	}
	sb.WriteString("\n\nHow well did you remember? (0 = forgot, 5 = perfect)")
	return sb.String()
}

func formatReviewResult(item models.LearningItem, quality sr.Quality) string {
	return fmt.Sprintf("Recorded %s.\nNext review: %s (in %s).",
		quality, item.NextReview.Format("2006-01-02 15:04"), formatInterval(item.IntervalDays))
}

func formatInterval(days float64) string {
	if days < 1 {
		return fmt.Sprintf("%d min", int(days*24*60+0.5))
	}
	return fmt.Sprintf("%.1f days", days)
}

// formatSchedule renders a multi-day plan.
func formatSchedule(schedule models.Schedule) string {
	if schedule.TotalItemsDue == 0 {
		return "🎉 Nothing to review in this period."
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "📅 Review plan: %d %s\n", schedule.TotalItemsDue, pluralize(schedule.TotalItemsDue, "item", "items"))
	if schedule.OverdueItemsCount > 0 {
		fmt.Fprintf(&sb, "⚠️ Overdue: %d\n", schedule.OverdueItemsCount)
	}
	sb.WriteString("\n")
	for _, day := range schedule.Days {
		fmt.Fprintf(&sb, "%s: %d %s (%d new), ~%d min\n",
			day.Date, day.TotalItems, pluralize(day.TotalItems, "item", "items"), day.NewItemsCount, day.EstimatedTimeMinutes)
	}
	return strings.TrimRight(sb.String(), "\n")
}

// formatReminder is the text of the scheduled reminder.
func formatReminder(day models.DailySchedule) string {
	return fmt.Sprintf("⏰ You have %d %s to review today (about %d min). Tap Review now to start.",
		day.TotalItems, pluralize(day.TotalItems, "item", "items"), day.EstimatedTimeMinutes)
}

func formatStats(stats models.ReviewStats) string {
	return fmt.Sprintf("📊 Your statistics\n\n"+
		"Items: %d\n"+
		"Due today: %d\n"+
		"Mastered: %d\n"+
		"Average ease: %.2f\n\n"+
		"Reviews in the last 7 days: %d\n"+
		"Average grade: %.1f",
		stats.TotalItems, stats.DueToday, stats.Mastered, stats.AverageEaseFactor,
		stats.ReviewsLast7Days, stats.AverageQuality)
}

func formatSettings(user models.User) string {
	return fmt.Sprintf("⚙️ Settings\n\n"+
		"Items per day: %d\n"+
		"Reminder hour: %02d:00\n"+
		"Reminders: %s\n\n"+
		"/settings <n> - items per day\n"+
		"/time <hour> - reminder hour\n"+
		"/notify on|off - reminders",
		user.ItemsPerDay, user.NotificationHour, boolToEnabledString(user.NotificationEnabled))
}

func boolToEnabledString(enabled bool) string {
	if enabled {
		return "on"
	}
	return "off"
}

func pluralize(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}

package bot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/example/reviewplanner/internal/database"
	"github.com/example/reviewplanner/internal/excel"
	"github.com/example/reviewplanner/internal/service"
	sr "github.com/example/reviewplanner/internal/spaced_repetition"
	"github.com/example/reviewplanner/pkg/models"
)

const maxPlanDays = 31

const helpText = "📖 Commands\n\n" +
	"/due - review the most urgent item\n" +
	"/plan [days] [topics...] - show the review plan\n" +
	"/review <id> <0-5> - grade an item by id\n" +
	"/add topic | content | question | answer - add an item\n" +
	"/topics - list your topics\n" +
	"/stats - your progress\n" +
	"/settings [items per day] - show or change settings\n" +
	"/time <hour> - reminder hour\n" +
	"/notify on|off - reminders"

// HandleUpdate handles incoming updates from Telegram
func (b *Bot) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	var err error
	switch {
	case update.Message != nil && update.Message.From != nil:
		err = b.handleMessage(ctx, update.Message)
	case update.CallbackQuery != nil:
		err = b.HandleCallback(ctx, update.CallbackQuery)
	default:
		return
	}
	if err != nil {
		b.log.WithError(err).WithField("update_id", update.UpdateID).Error("update failed")
	}
}

func (b *Bot) handleMessage(ctx context.Context, message *tgbotapi.Message) error {
	if message.IsCommand() {
		return b.HandleCommand(ctx, message)
	}
	if message.Document != nil && b.isAwaitingUpload(message.Chat.ID) {
		return b.handleDocument(ctx, message)
	}
	return b.replyWithMenu(message.Chat.ID, "I don't understand. Use /help to see the commands.")
}

// HandleCommand handles bot commands
func (b *Bot) HandleCommand(ctx context.Context, message *tgbotapi.Message) error {
	var err error
	switch message.Command() {
	case "start":
		err = b.handleStart(ctx, message)
	case "help", "menu":
		err = b.replyWithMenu(message.Chat.ID, helpText)
	case "due":
		err = b.sendNextDue(ctx, message.From.ID, message.Chat.ID)
	case "plan":
		err = b.handlePlan(ctx, message.From.ID, message.Chat.ID, message.CommandArguments())
	case "review":
		err = b.handleReviewCommand(ctx, message)
	case "add":
		err = b.handleAdd(ctx, message)
	case "topics":
		err = b.handleTopics(ctx, message)
	case "stats":
		err = b.handleStats(ctx, message.From.ID, message.Chat.ID)
	case "settings":
		err = b.handleSettings(ctx, message)
	case "time":
		err = b.handleTimeCommand(ctx, message)
	case "notify":
		err = b.handleNotifyCommand(ctx, message)
	case "import":
		err = b.handleImportCommand(message)
	default:
		err = b.replyWithMenu(message.Chat.ID, "Unknown command. Use /help to see the commands.")
	}
	return err
}

func (b *Bot) handleStart(ctx context.Context, message *tgbotapi.Message) error {
	user := &models.User{
		ID:                  message.From.ID,
		Username:            message.From.UserName,
		FirstName:           message.From.FirstName,
		ItemsPerDay:         models.DefaultItemsPerDay,
		NotificationHour:    models.DefaultNotificationHour,
		NotificationEnabled: true,
	}
	if err := b.svc.RegisterUser(ctx, user); err != nil {
		return fmt.Errorf("failed to register user: %w", err)
	}

	text := "👋 Welcome to the review planner!\n\n" +
		"Add what you want to remember and I will plan your reviews with spaced repetition.\n\n" +
		helpText
	return b.replyWithMenu(message.Chat.ID, text)
}

// sendNextDue shows the most urgent due item with a button to reveal the answer.
func (b *Bot) sendNextDue(ctx context.Context, userID, chatID int64) error {
	items, err := b.svc.Due(ctx, userID, 1)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		return b.replyWithMenu(chatID, "🎉 Nothing is due right now.")
	}
	msg := tgbotapi.NewMessage(chatID, formatItemPrompt(items[0]))
	msg.ReplyMarkup = createKeyboard(revealButtons(items[0]))
	return b.sendMessage(msg)
}

func (b *Bot) handlePlan(ctx context.Context, userID, chatID int64, args string) error {
	req := service.PlanRequest{UserID: userID}
	fields := strings.Fields(args)
	if len(fields) > 0 {
		if days, err := strconv.Atoi(fields[0]); err == nil {
			if days < 1 || days > maxPlanDays {
				return b.sendText(chatID, fmt.Sprintf("Please choose between 1 and %d days.", maxPlanDays))
			}
			req.Days = days
			fields = fields[1:]
		}
	}
	req.Topics = fields

	schedule, err := b.svc.Plan(ctx, req)
	if err != nil {
		return err
	}
	return b.replyWithMenu(chatID, formatSchedule(schedule))
}

func (b *Bot) handleReviewCommand(ctx context.Context, message *tgbotapi.Message) error {
	fields := strings.Fields(message.CommandArguments())
	if len(fields) != 2 {
		return b.sendText(message.Chat.ID, "Usage: /review <id> <0-5>")
	}
	itemID, err := uuid.Parse(fields[0])
	if err != nil {
		return b.sendText(message.Chat.ID, "⚠️ Invalid item id.")
	}
	quality, err := sr.ParseQuality(fields[1])
	if err != nil {
		return b.sendText(message.Chat.ID, "⚠️ The grade must be a number from 0 to 5.")
	}
	return b.review(ctx, message.From.ID, message.Chat.ID, itemID, quality)
}

func (b *Bot) review(ctx context.Context, userID, chatID int64, itemID uuid.UUID, quality sr.Quality) error {
	item, err := b.svc.Review(ctx, userID, itemID, quality)
	switch {
	case errors.Is(err, database.ErrItemNotFound), errors.Is(err, service.ErrForbidden):
		return b.sendText(chatID, "⚠️ Item not found.")
	case err != nil:
		return err
	}

	msg := tgbotapi.NewMessage(chatID, formatReviewResult(*item, quality))
	msg.ReplyMarkup = createKeyboard([][]MenuButton{
		{{Text: "➡️ Next", CallbackData: callbackDue}, {Text: "📅 Plan", CallbackData: callbackPlan}},
	})
	return b.sendMessage(msg)
}

// handleAdd parses "topic | content | question | answer"; only content is required.
func (b *Bot) handleAdd(ctx context.Context, message *tgbotapi.Message) error {
	parts := strings.Split(message.CommandArguments(), "|")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	user, err := b.currentUser(ctx, message)
	if err != nil {
		return err
	}
	req := service.AddItemRequest{UserID: user.ID, Difficulty: 0.5}
	switch len(parts) {
	case 1:
		req.Content = parts[0]
	case 2, 3, 4:
		req.Topic, req.Content = parts[0], parts[1]
		if len(parts) > 2 {
			req.Question = parts[2]
		}
		if len(parts) > 3 {
			req.Answer = parts[3]
		}
	}
	if req.Content == "" {
		return b.sendText(message.Chat.ID, "Usage: /add topic | content | question | answer")
	}

	item, err := b.svc.AddItem(ctx, req)
	if err != nil {
		if sendErr := b.sendText(message.Chat.ID, "⚠️ Could not add the item."); sendErr != nil {
			b.log.WithError(sendErr).Warn("failed to send add error")
		}
		return err
	}
	return b.sendText(message.Chat.ID, fmt.Sprintf("✅ Added. It is due now.\nid: %s", item.ID))
}

func (b *Bot) handleTopics(ctx context.Context, message *tgbotapi.Message) error {
	topics, err := b.svc.Topics(ctx, message.From.ID)
	if err != nil {
		return err
	}
	if len(topics) == 0 {
		return b.sendText(message.Chat.ID, "You have no topics yet. Add items with /add.")
	}
	return b.sendText(message.Chat.ID, "📚 Your topics:\n• "+strings.Join(topics, "\n• "))
}

func (b *Bot) handleStats(ctx context.Context, userID, chatID int64) error {
	stats, err := b.svc.Stats(ctx, userID)
	if err != nil {
		return err
	}
	return b.replyWithMenu(chatID, formatStats(*stats))
}

func (b *Bot) handleSettings(ctx context.Context, message *tgbotapi.Message) error {
	user, err := b.currentUser(ctx, message)
	if err != nil {
		return err
	}
	arg := strings.TrimSpace(message.CommandArguments())
	if arg == "" {
		return b.sendText(message.Chat.ID, formatSettings(*user))
	}

	count, err := strconv.Atoi(arg)
	if err != nil || count < 1 || count > 200 {
		return b.sendText(message.Chat.ID, "Please enter a number from 1 to 200.")
	}
	if err := b.svc.UpdateSettings(ctx, user.ID, count, user.NotificationHour, user.NotificationEnabled); err != nil {
		return err
	}
	user.ItemsPerDay = count
	return b.sendText(message.Chat.ID, formatSettings(*user))
}

func (b *Bot) handleTimeCommand(ctx context.Context, message *tgbotapi.Message) error {
	user, err := b.currentUser(ctx, message)
	if err != nil {
		return err
	}
	hour, err := strconv.Atoi(strings.TrimSpace(message.CommandArguments()))
	if err != nil || hour < 0 || hour > 23 {
		return b.sendText(message.Chat.ID, "Usage: /time <hour 0-23>")
	}
	if err := b.svc.UpdateSettings(ctx, user.ID, user.ItemsPerDay, hour, user.NotificationEnabled); err != nil {
		return err
	}
	return b.sendText(message.Chat.ID, fmt.Sprintf("⏰ Reminders will arrive at %02d:00.", hour))
}

func (b *Bot) handleNotifyCommand(ctx context.Context, message *tgbotapi.Message) error {
	user, err := b.currentUser(ctx, message)
	if err != nil {
		return err
	}
	var enabled bool
	switch strings.ToLower(strings.TrimSpace(message.CommandArguments())) {
	case "on":
		enabled = true
	case "off":
		enabled = false
	default:
		return b.sendText(message.Chat.ID, "Usage: /notify on|off")
	}
	if err := b.svc.UpdateSettings(ctx, user.ID, user.ItemsPerDay, user.NotificationHour, enabled); err != nil {
		return err
	}
	return b.sendText(message.Chat.ID, "🔔 Reminders "+boolToEnabledString(enabled)+".")
}

// currentUser loads the sender, registering them if they skipped /start.
func (b *Bot) currentUser(ctx context.Context, message *tgbotapi.Message) (*models.User, error) {
	user, err := b.svc.User(ctx, message.From.ID)
	if !errors.Is(err, database.ErrUserNotFound) {
		return user, err
	}
	user = &models.User{
		ID:                  message.From.ID,
		Username:            message.From.UserName,
		FirstName:           message.From.FirstName,
		ItemsPerDay:         models.DefaultItemsPerDay,
		NotificationHour:    models.DefaultNotificationHour,
		NotificationEnabled: true,
	}
	if err := b.svc.RegisterUser(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

func (b *Bot) handleImportCommand(message *tgbotapi.Message) error {
	if !b.isAdmin(message.From.ID) {
		return b.replyWithMenu(message.Chat.ID, "This command is only available for administrators.")
	}
	b.setAwaitingUpload(message.Chat.ID, true)
	return b.sendText(message.Chat.ID, "Send an .xlsx or .csv file with columns: content, question, answer, topic, difficulty. In CSV files a line \"# Topic\" sets the topic of the rows below it.")
}

func (b *Bot) handleDocument(ctx context.Context, message *tgbotapi.Message) error {
	b.setAwaitingUpload(message.Chat.ID, false)

	ext := strings.ToLower(filepath.Ext(message.Document.FileName))
	if ext != ".xlsx" && ext != ".csv" {
		return b.sendText(message.Chat.ID, "⚠️ Only .xlsx and .csv files are supported.")
	}
	path, err := b.download(ctx, message.Document.FileID, ext)
	if err != nil {
		return err
	}
	defer os.Remove(path)

	user, err := b.currentUser(ctx, message)
	if err != nil {
		return err
	}
	cfg := excel.DefaultImportConfig()
	cfg.FilePath = path
	cfg.UserID = user.ID
	result, err := b.importer.Import(ctx, cfg)
	if err != nil {
		return err
	}

	text := fmt.Sprintf("📥 Import finished\nRows: %d\nCreated: %d\nSkipped: %d\nErrors: %d",
		result.TotalProcessed, result.Created, result.Skipped, len(result.Errors))
	if len(result.Errors) > 0 {
		shown := result.Errors
		if len(shown) > 5 {
			shown = shown[:5]
		}
		text += "\n\n" + strings.Join(shown, "\n")
	}
	return b.replyWithMenu(message.Chat.ID, text)
}

// download stores a Telegram file in a temporary file and returns its path.
func (b *Bot) download(ctx context.Context, fileID, ext string) (string, error) {
	url, err := b.api.GetFileDirectURL(fileID)
	if err != nil {
		return "", fmt.Errorf("failed to get file url: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to download file: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("failed to download file: status %s", resp.Status)
	}

	tmp, err := os.CreateTemp("", "import-*"+ext)
	if err != nil {
		return "", err
	}
	defer tmp.Close()
	if _, err := io.Copy(tmp, resp.Body); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("failed to save file: %w", err)
	}
	return tmp.Name(), nil
}

// HandleCallback handles inline button presses
func (b *Bot) HandleCallback(ctx context.Context, callback *tgbotapi.CallbackQuery) error {
	if callback.Message == nil || callback.From == nil {
		return fmt.Errorf("invalid callback data: required fields are missing")
	}

	// Always answer the callback query to remove the loading state
	if _, err := b.api.Request(tgbotapi.NewCallback(callback.ID, "")); err != nil {
		b.log.WithError(err).Warn("failed to answer callback")
	}

	userID := callback.From.ID
	chatID := callback.Message.Chat.ID

	switch data := callback.Data; {
	case data == callbackMainMenu:
		return b.replyWithMenu(chatID, helpText)
	case data == callbackDue:
		return b.sendNextDue(ctx, userID, chatID)
	case data == callbackPlan:
		return b.handlePlan(ctx, userID, chatID, "")
	case data == callbackStats:
		return b.handleStats(ctx, userID, chatID)
	case strings.HasPrefix(data, callbackReveal):
		return b.handleReveal(ctx, userID, chatID, strings.TrimPrefix(data, callbackReveal))
	case strings.HasPrefix(data, callbackQuality):
		itemID, quality, err := parseQualityCallback(data)
		if err != nil {
			return err
		}
		return b.review(ctx, userID, chatID, itemID, quality)
	}

	b.log.WithFields(logrus.Fields{"user_id": userID, "data": callback.Data}).Warn("unknown callback")
	return b.sendText(chatID, "⚠️ Unknown action")
}

func (b *Bot) handleReveal(ctx context.Context, userID, chatID int64, rawID string) error {
	itemID, err := uuid.Parse(rawID)
	if err != nil {
		return fmt.Errorf("invalid item id in callback data: %w", err)
	}
	item, err := b.svc.Item(ctx, userID, itemID)
	if errors.Is(err, database.ErrItemNotFound) || errors.Is(err, service.ErrForbidden) {
		return b.sendText(chatID, "⚠️ Item not found.")
	}
	if err != nil {
		return err
	}
	msg := tgbotapi.NewMessage(chatID, formatItemAnswer(*item))
	msg.ReplyMarkup = createKeyboard(qualityButtons(*item))
	return b.sendMessage(msg)
}

func parseQualityCallback(data string) (uuid.UUID, sr.Quality, error) {
	rest := strings.TrimPrefix(data, callbackQuality)
	idx := strings.LastIndex(rest, ":")
	if idx < 0 {
		return uuid.Nil, 0, fmt.Errorf("malformed quality callback %q", data)
	}
	itemID, err := uuid.Parse(rest[:idx])
	if err != nil {
		return uuid.Nil, 0, fmt.Errorf("invalid item id in callback data: %w", err)
	}
	quality, err := sr.ParseQuality(rest[idx+1:])
	if err != nil {
		return uuid.Nil, 0, err
	}
	return itemID, quality, nil
}

func (b *Bot) replyWithMenu(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = createKeyboard(mainMenuButtons())
	return b.sendMessage(msg)
}

package bot

import (
	"context"
	"fmt"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/example/reviewplanner/internal/excel"
	"github.com/example/reviewplanner/internal/service"
	sr "github.com/example/reviewplanner/internal/spaced_repetition"
	"github.com/example/reviewplanner/pkg/models"
)

// Service is the part of the review service the bot drives.
type Service interface {
	RegisterUser(ctx context.Context, user *models.User) error
	User(ctx context.Context, userID int64) (*models.User, error)
	UpdateSettings(ctx context.Context, userID int64, itemsPerDay, notificationHour int, enabled bool) error
	AddItem(ctx context.Context, req service.AddItemRequest) (*models.LearningItem, error)
	Item(ctx context.Context, userID int64, itemID uuid.UUID) (*models.LearningItem, error)
	Review(ctx context.Context, userID int64, itemID uuid.UUID, quality sr.Quality) (*models.LearningItem, error)
	Plan(ctx context.Context, req service.PlanRequest) (models.Schedule, error)
	Due(ctx context.Context, userID int64, limit int) ([]models.LearningItem, error)
	Topics(ctx context.Context, userID int64) ([]string, error)
	Stats(ctx context.Context, userID int64) (*models.ReviewStats, error)
}

// Importer loads items from an uploaded spreadsheet.
type Importer interface {
	Import(ctx context.Context, cfg excel.ImportConfig) (*excel.ImportResult, error)
}

// api is the subset of *tgbotapi.BotAPI the bot uses.
type api interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetFileDirectURL(fileID string) (string, error)
}

// Bot represents the Telegram bot application
type Bot struct {
	api      api
	updates  func() (tgbotapi.UpdatesChannel, func())
	svc      Service
	importer Importer
	admins   map[int64]bool
	log      logrus.FieldLogger

	mu                 sync.Mutex
	awaitingFileUpload map[int64]bool
}

// New connects to Telegram with token.
func New(token string, adminIDs []int64, svc Service, importer Importer, log logrus.FieldLogger) (*Bot, error) {
	if token == "" {
		return nil, fmt.Errorf("telegram token is not set")
	}
	botAPI, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("unable to create bot: %w", err)
	}
	b := newBot(botAPI, adminIDs, svc, importer, log)
	b.updates = func() (tgbotapi.UpdatesChannel, func()) {
		updateConfig := tgbotapi.NewUpdate(0)
		updateConfig.Timeout = 60
		return botAPI.GetUpdatesChan(updateConfig), botAPI.StopReceivingUpdates
	}
	b.log.WithField("account", botAPI.Self.UserName).Info("authorized on telegram")
	return b, nil
}

func newBot(client api, adminIDs []int64, svc Service, importer Importer, log logrus.FieldLogger) *Bot {
	admins := make(map[int64]bool, len(adminIDs))
	for _, id := range adminIDs {
		admins[id] = true
	}
	return &Bot{
		api:                client,
		svc:                svc,
		importer:           importer,
		admins:             admins,
		log:                log.WithField("component", "bot"),
		awaitingFileUpload: make(map[int64]bool),
	}
}

// Run handles updates until ctx is done.
func (b *Bot) Run(ctx context.Context) error {
	if b.updates == nil {
		return fmt.Errorf("bot has no update source")
	}
	updates, stop := b.updates()
	defer stop()

	var wg sync.WaitGroup
	defer wg.Wait()
	for {
		select {
		case <-ctx.Done():
			b.log.Info("bot stopped")
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			wg.Add(1)
			go func() {
				defer wg.Done()
				b.HandleUpdate(ctx, update)
			}()
		}
	}
}

// SendReminder implements scheduler.Notifier. In private chats the chat ID
// equals the user ID.
func (b *Bot) SendReminder(ctx context.Context, user models.User, day models.DailySchedule) error {
	msg := tgbotapi.NewMessage(user.ID, formatReminder(day))
	msg.ReplyMarkup = createKeyboard(mainMenuButtons())
	if err := b.sendMessage(msg); err != nil {
		return fmt.Errorf("send reminder to %d: %w", user.ID, err)
	}
	return nil
}

// isAdmin checks if a user is an admin
func (b *Bot) isAdmin(userID int64) bool {
	return b.admins[userID]
}

func (b *Bot) sendMessage(msg tgbotapi.MessageConfig) error {
	if _, err := b.api.Send(msg); err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}
	return nil
}

func (b *Bot) sendText(chatID int64, text string) error {
	return b.sendMessage(tgbotapi.NewMessage(chatID, text))
}

func (b *Bot) setAwaitingUpload(chatID int64, waiting bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if waiting {
		b.awaitingFileUpload[chatID] = true
	} else {
		delete(b.awaitingFileUpload, chatID)
	}
}

func (b *Bot) isAwaitingUpload(chatID int64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.awaitingFileUpload[chatID]
}

package bot

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
	logtest "github.com/sirupsen/logrus/hooks/test"

	"github.com/example/reviewplanner/internal/database"
	"github.com/example/reviewplanner/internal/excel"
	"github.com/example/reviewplanner/internal/service"
	sr "github.com/example/reviewplanner/internal/spaced_repetition"
	"github.com/example/reviewplanner/pkg/models"
)

type fakeAPI struct {
	mu       sync.Mutex
	sent     []tgbotapi.MessageConfig
	requests int
	fileURL  string
}

func (f *fakeAPI) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if msg, ok := c.(tgbotapi.MessageConfig); ok {
		f.sent = append(f.sent, msg)
	}
	return tgbotapi.Message{}, nil
}

func (f *fakeAPI) Request(tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests++
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (f *fakeAPI) GetFileDirectURL(string) (string, error) { return f.fileURL, nil }

func (f *fakeAPI) last(t *testing.T) tgbotapi.MessageConfig {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.sent) == 0 {
		t.Fatal("no message sent")
	}
	return f.sent[len(f.sent)-1]
}

type fakeService struct {
	items    map[uuid.UUID]models.LearningItem
	users    map[int64]models.User
	reviews  []sr.Quality
	added    []service.AddItemRequest
	planReqs []service.PlanRequest
}

func newFakeService() *fakeService {
	return &fakeService{items: map[uuid.UUID]models.LearningItem{}, users: map[int64]models.User{}}
}

func (s *fakeService) RegisterUser(_ context.Context, u *models.User) error {
	s.users[u.ID] = *u
	return nil
}

func (s *fakeService) User(_ context.Context, id int64) (*models.User, error) {
	u, ok := s.users[id]
	if !ok {
		return nil, database.ErrUserNotFound
	}
	return &u, nil
}

func (s *fakeService) UpdateSettings(_ context.Context, id int64, n, hour int, enabled bool) error {
	u := s.users[id]
	u.ItemsPerDay, u.NotificationHour, u.NotificationEnabled = n, hour, enabled
	s.users[id] = u
	return nil
}

// AddItem rejects unknown owners the way the items foreign key does.
func (s *fakeService) AddItem(_ context.Context, req service.AddItemRequest) (*models.LearningItem, error) {
	if _, ok := s.users[req.UserID]; !ok {
		return nil, fmt.Errorf("owner %d: %w", req.UserID, database.ErrUserNotFound)
	}
	s.added = append(s.added, req)
	item, err := models.NewLearningItem(req.UserID, req.Topic, req.Content, req.Difficulty, time.Now())
	return &item, err
}

func (s *fakeService) Item(_ context.Context, userID int64, id uuid.UUID) (*models.LearningItem, error) {
	it, ok := s.items[id]
	if !ok {
		return nil, database.ErrItemNotFound
	}
	if it.UserID != userID {
		return nil, service.ErrForbidden
	}
	return &it, nil
}

func (s *fakeService) Review(ctx context.Context, userID int64, id uuid.UUID, q sr.Quality) (*models.LearningItem, error) {
	it, err := s.Item(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	s.reviews = append(s.reviews, q)
	it.IntervalDays = 1
	it.NextReview = it.NextReview.Add(24 * time.Hour)
	return it, nil
}

func (s *fakeService) Plan(_ context.Context, req service.PlanRequest) (models.Schedule, error) {
	s.planReqs = append(s.planReqs, req)
	return models.Schedule{UserID: req.UserID}, nil
}

func (s *fakeService) Due(_ context.Context, userID int64, limit int) ([]models.LearningItem, error) {
	var out []models.LearningItem
	for _, it := range s.items {
		if it.UserID == userID {
			out = append(out, it)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *fakeService) Topics(context.Context, int64) ([]string, error) {
	return []string{"go", "math"}, nil
}

func (s *fakeService) Stats(context.Context, int64) (*models.ReviewStats, error) {
	return &models.ReviewStats{TotalItems: 3}, nil
}

type nopImporter struct{}

func (nopImporter) Import(context.Context, excel.ImportConfig) (*excel.ImportResult, error) {
	return &excel.ImportResult{}, nil
}

// serviceImporter adds every import through the service, so an unknown owner
// fails like it does against the database.
type serviceImporter struct {
	svc  *fakeService
	cfgs []excel.ImportConfig
}

func (i *serviceImporter) Import(ctx context.Context, cfg excel.ImportConfig) (*excel.ImportResult, error) {
	i.cfgs = append(i.cfgs, cfg)
	result := &excel.ImportResult{TotalProcessed: 1}
	if _, err := i.svc.AddItem(ctx, service.AddItemRequest{UserID: cfg.UserID, Content: "imported", Difficulty: 0.5}); err != nil {
		result.Errors = append(result.Errors, err.Error())
		return result, nil
	}
	result.Created = 1
	return result, nil
}

func newTestBot(t *testing.T, admins ...int64) (*Bot, *fakeAPI, *fakeService) {
	t.Helper()
	log, _ := logtest.NewNullLogger()
	client := &fakeAPI{}
	svc := newFakeService()
	return newBot(client, admins, svc, nopImporter{}, log), client, svc
}

func command(userID int64, text string) *tgbotapi.Message {
	name := strings.Fields(text)[0]
	return &tgbotapi.Message{
		Text:     text,
		From:     &tgbotapi.User{ID: userID, UserName: "tester"},
		Chat:     &tgbotapi.Chat{ID: userID},
		Entities: []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(name)}},
	}
}

func TestStartRegistersUser(t *testing.T) {
	b, client, svc := newTestBot(t)
	if err := b.HandleCommand(context.Background(), command(5, "/start")); err != nil {
		t.Fatal(err)
	}
	u, ok := svc.users[5]
	if !ok || !u.NotificationEnabled || u.ItemsPerDay != models.DefaultItemsPerDay {
		t.Errorf("user = %+v", u)
	}
	if !strings.Contains(client.last(t).Text, "Welcome") {
		t.Errorf("text = %q", client.last(t).Text)
	}
}

func TestDueAndQualityCallback(t *testing.T) {
	b, client, svc := newTestBot(t)
	item, _ := models.NewLearningItem(5, "go", "Channels", 0.5, time.Now())
	item.Question = "What blocks?"
	svc.items[item.ID] = item
	ctx := context.Background()

	if err := b.HandleCommand(ctx, command(5, "/due")); err != nil {
		t.Fatal(err)
	}
	prompt := client.last(t)
	if !strings.Contains(prompt.Text, "What blocks?") || strings.Contains(prompt.Text, "Channels") {
		t.Errorf("prompt = %q", prompt.Text)
	}
	reveal := prompt.ReplyMarkup.(tgbotapi.InlineKeyboardMarkup).InlineKeyboard[0][0]
	if *reveal.CallbackData != callbackReveal+item.ID.String() {
		t.Errorf("reveal data = %q", *reveal.CallbackData)
	}

	callback := &tgbotapi.CallbackQuery{
		ID:      "1",
		From:    &tgbotapi.User{ID: 5},
		Message: &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: 5}},
		Data:    *reveal.CallbackData,
	}
	if err := b.HandleCallback(ctx, callback); err != nil {
		t.Fatal(err)
	}
	answer := client.last(t)
	if !strings.Contains(answer.Text, "Channels") {
		t.Errorf("answer = %q", answer.Text)
	}
	grades := answer.ReplyMarkup.(tgbotapi.InlineKeyboardMarkup).InlineKeyboard
	callback.Data = *grades[1][1].CallbackData // grade 4
	if err := b.HandleCallback(ctx, callback); err != nil {
		t.Fatal(err)
	}
	if len(svc.reviews) != 1 || svc.reviews[0] != sr.QualityCorrect {
		t.Errorf("reviews = %v", svc.reviews)
	}
	if !strings.Contains(client.last(t).Text, "Next review") {
		t.Errorf("result = %q", client.last(t).Text)
	}
	if client.requests != 2 {
		t.Errorf("callbacks answered %d times, want 2", client.requests)
	}
}

func TestReviewOtherUsersItem(t *testing.T) {
	b, client, svc := newTestBot(t)
	item, _ := models.NewLearningItem(6, "", "secret", 0.5, time.Now())
	svc.items[item.ID] = item

	if err := b.HandleCommand(context.Background(), command(5, "/review "+item.ID.String()+" 5")); err != nil {
		t.Fatal(err)
	}
	if len(svc.reviews) != 0 || !strings.Contains(client.last(t).Text, "not found") {
		t.Errorf("reviews = %v, text = %q", svc.reviews, client.last(t).Text)
	}

	if err := b.HandleCommand(context.Background(), command(5, "/review "+item.ID.String()+" 7")); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(client.last(t).Text, "0 to 5") {
		t.Errorf("text = %q", client.last(t).Text)
	}
}

func TestAddCommand(t *testing.T) {
	b, client, svc := newTestBot(t)
	if err := b.HandleCommand(context.Background(), command(5, "/add go | Channels | What blocks? | Unbuffered send")); err != nil {
		t.Fatal(err)
	}
	if len(svc.added) != 1 {
		t.Fatalf("added = %v", svc.added)
	}
	req := svc.added[0]
	if req.Topic != "go" || req.Content != "Channels" || req.Question != "What blocks?" || req.Answer != "Unbuffered send" {
		t.Errorf("req = %+v", req)
	}

	if err := b.HandleCommand(context.Background(), command(5, "/add")); err != nil {
		t.Fatal(err)
	}
	if len(svc.added) != 1 || !strings.Contains(client.last(t).Text, "Usage") {
		t.Errorf("empty /add was accepted")
	}
}

func TestAddRegistersUnknownSender(t *testing.T) {
	b, client, svc := newTestBot(t)
	if err := b.HandleCommand(context.Background(), command(7, "/add Channels")); err != nil {
		t.Fatal(err)
	}
	if _, ok := svc.users[7]; !ok {
		t.Fatal("sender was not registered")
	}
	if len(svc.added) != 1 || svc.added[0].UserID != 7 {
		t.Errorf("added = %+v", svc.added)
	}
	if !strings.Contains(client.last(t).Text, "Added") {
		t.Errorf("text = %q", client.last(t).Text)
	}
}

func TestImportRegistersUnknownAdmin(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, "content")
		fmt.Fprintln(w, "Channels")
	}))
	defer srv.Close()

	log, _ := logtest.NewNullLogger()
	client := &fakeAPI{fileURL: srv.URL}
	svc := newFakeService()
	importer := &serviceImporter{svc: svc}
	b := newBot(client, []int64{99}, svc, importer, log)
	ctx := context.Background()

	if err := b.HandleCommand(ctx, command(99, "/import")); err != nil {
		t.Fatal(err)
	}
	upload := &tgbotapi.Message{
		From:     &tgbotapi.User{ID: 99, UserName: "admin"},
		Chat:     &tgbotapi.Chat{ID: 99},
		Document: &tgbotapi.Document{FileID: "f1", FileName: "items.csv"},
	}
	if err := b.handleMessage(ctx, upload); err != nil {
		t.Fatal(err)
	}
	if _, ok := svc.users[99]; !ok {
		t.Fatal("admin was not registered before import")
	}
	if len(importer.cfgs) != 1 || importer.cfgs[0].UserID != 99 {
		t.Fatalf("imports = %+v", importer.cfgs)
	}
	if text := client.last(t).Text; !strings.Contains(text, "Created: 1") || !strings.Contains(text, "Errors: 0") {
		t.Errorf("text = %q", text)
	}
}

func TestPlanCommandArguments(t *testing.T) {
	b, client, svc := newTestBot(t)
	if err := b.HandleCommand(context.Background(), command(5, "/plan 3 go math")); err != nil {
		t.Fatal(err)
	}
	if len(svc.planReqs) != 1 {
		t.Fatal("plan not requested")
	}
	req := svc.planReqs[0]
	if req.Days != 3 || len(req.Topics) != 2 || req.Topics[0] != "go" {
		t.Errorf("req = %+v", req)
	}
	if err := b.HandleCommand(context.Background(), command(5, "/plan 90")); err != nil {
		t.Fatal(err)
	}
	if len(svc.planReqs) != 1 || !strings.Contains(client.last(t).Text, "between 1 and") {
		t.Errorf("out of range days accepted")
	}
}

func TestSettingsCommands(t *testing.T) {
	b, _, svc := newTestBot(t)
	ctx := context.Background()
	for _, text := range []string{"/settings 12", "/time 18", "/notify off"} {
		if err := b.HandleCommand(ctx, command(5, text)); err != nil {
			t.Fatalf("%s: %v", text, err)
		}
	}
	u := svc.users[5]
	if u.ItemsPerDay != 12 || u.NotificationHour != 18 || u.NotificationEnabled {
		t.Errorf("user = %+v", u)
	}
}

func TestImportRequiresAdmin(t *testing.T) {
	b, client, _ := newTestBot(t, 99)
	if err := b.HandleCommand(context.Background(), command(5, "/import")); err != nil {
		t.Fatal(err)
	}
	if b.isAwaitingUpload(5) || !strings.Contains(client.last(t).Text, "administrators") {
		t.Error("non-admin was allowed to import")
	}
	if err := b.HandleCommand(context.Background(), command(99, "/import")); err != nil {
		t.Fatal(err)
	}
	if !b.isAwaitingUpload(99) {
		t.Error("admin import not armed")
	}
}

func TestSendReminder(t *testing.T) {
	b, client, _ := newTestBot(t)
	day := models.DailySchedule{Date: "2025-03-10", TotalItems: 1, EstimatedTimeMinutes: 2}
	if err := b.SendReminder(context.Background(), models.User{ID: 77}, day); err != nil {
		t.Fatal(err)
	}
	msg := client.last(t)
	if msg.ChatID != 77 || !strings.Contains(msg.Text, "1 item to review") {
		t.Errorf("msg = %+v", msg)
	}
}

func TestParseQualityCallback(t *testing.T) {
	id := uuid.New()
	gotID, q, err := parseQualityCallback(callbackQuality + id.String() + ":3")
	if err != nil || gotID != id || q != sr.QualityCorrectHesitant {
		t.Errorf("got %v %v %v", gotID, q, err)
	}
	for _, bad := range []string{"q:", "q:nope:3", "q:" + id.String() + ":9"} {
		if _, _, err := parseQualityCallback(bad); err == nil {
			t.Errorf("parseQualityCallback(%q) accepted", bad)
		}
	}
}

func TestQualityButtonsFitCallbackLimit(t *testing.T) {
	item, _ := models.NewLearningItem(1, "", "x", 0.5, time.Now())
	for _, row := range qualityButtons(item) {
		for _, btn := range row {
			if len(btn.CallbackData) > 64 {
				t.Errorf("callback data %q exceeds 64 bytes", btn.CallbackData)
			}
		}
	}
}

func TestFormatSchedule(t *testing.T) {
	if got := formatSchedule(models.Schedule{}); !strings.Contains(got, "Nothing") {
		t.Errorf("empty = %q", got)
	}
	got := formatSchedule(models.Schedule{
		TotalItemsDue:     3,
		OverdueItemsCount: 1,
		Days: []models.DailySchedule{
			{Date: "2025-03-10", TotalItems: 2, NewItemsCount: 1, EstimatedTimeMinutes: 2},
			{Date: "2025-03-11", TotalItems: 1, EstimatedTimeMinutes: 1},
		},
	})
	for _, want := range []string{"3 items", "Overdue: 1", "2025-03-10: 2 items (1 new), ~2 min", "2025-03-11: 1 item (0 new)"} {
		if !strings.Contains(got, want) {
			t.Errorf("missing %q in %q", want, got)
		}
	}
}

func TestFormatInterval(t *testing.T) {
	if got := formatInterval(30.0 / (24 * 60)); got != "30 min" {
		t.Errorf("got %q", got)
	}
	if got := formatInterval(6); got != "6.0 days" {
		t.Errorf("got %q", got)
	}
}

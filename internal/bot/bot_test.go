package bot

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/raine/product-evaluator/internal/evaluation"
	"github.com/raine/product-evaluator/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const (
	adminID = int64(1)
	userID  = int64(2)
)

type botApiMock struct {
	mock.Mock
}

func (m *botApiMock) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	args := m.Called(c)
	return args.Get(0).(tgbotapi.Message), args.Error(1)
}

func (m *botApiMock) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	args := m.Called(c)
	return args.Get(0).(*tgbotapi.APIResponse), args.Error(1)
}

func (m *botApiMock) GetFileDirectURL(fileID string) (string, error) {
	args := m.Called(fileID)
	return args.Get(0).(string), args.Error(1)
}

type evaluatorMock struct {
	mock.Mock
}

func (m *evaluatorMock) Evaluate(ctx context.Context, req evaluation.Request) (*evaluation.Record, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*evaluation.Record), args.Error(1)
}

type testBot struct {
	*Bot
	tg    *botApiMock
	eval  *evaluatorMock
	store *storage.SQLiteStore
	sent  []string
}

func newTestBot(t *testing.T) *testBot {
	t.Helper()
	store, err := storage.NewSQLiteStore(filepath.Join(t.TempDir(), "bot.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	tb := &testBot{tg: new(botApiMock), eval: new(evaluatorMock), store: store}
	tb.Bot = NewBot(tb.tg, tb.eval, store, adminID, time.Hour)
	tb.download = func(func(string) (string, error), string) ([]byte, error) {
		return []byte("jpeg bytes"), nil
	}
	tb.tg.On("Send", mock.AnythingOfType("tgbotapi.MessageConfig")).
		Run(func(args mock.Arguments) {
			tb.sent = append(tb.sent, args.Get(0).(tgbotapi.MessageConfig).Text)
		}).
		Return(tgbotapi.Message{}, nil).Maybe()
	return tb
}

func (tb *testBot) lastSent(t *testing.T) string {
	t.Helper()
	require.NotEmpty(t, tb.sent)
	return tb.sent[len(tb.sent)-1]
}

func textUpdate(from int64, text string) tgbotapi.Update {
	msg := &tgbotapi.Message{
		From: &tgbotapi.User{ID: from},
		Chat: &tgbotapi.Chat{ID: from},
		Text: text,
	}
	if strings.HasPrefix(text, "/") {
		cmd, _, _ := strings.Cut(text, " ")
		msg.Entities = []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(cmd)}}
	}
	return tgbotapi.Update{Message: msg}
}

func photoUpdate(from int64, caption string) tgbotapi.Update {
	return tgbotapi.Update{Message: &tgbotapi.Message{
		From:    &tgbotapi.User{ID: from},
		Chat:    &tgbotapi.Chat{ID: from},
		Caption: caption,
		Photo: []tgbotapi.PhotoSize{
			{FileID: "small", Width: 90},
			{FileID: "large", Width: 1280},
		},
	}}
}

func sampleRecord() *evaluation.Record {
	return &evaluation.Record{
		Identified:       true,
		Description:      "LED desk lamp",
		Title:            "LED Desk Lamp",
		Verdict:          "Low competition with a healthy margin.",
		SupplierCost:     8,
		ShippingCost:     5,
		CompetitorCount:  30,
		Saturation:       evaluation.SaturationLow,
		RiskLevel:        evaluation.RiskLow,
		RecommendedPrice: evaluation.PriceBand{Min: 39, Optimal: 42, Max: 54.6},
		Strengths:        []string{"Low competition", "Good margin"},
		Risks:            []string{"Shipping damage"},
		SEOTags:          []string{"desk lamp", "led lamp"},
		Quality:          evaluation.Quality{Strategy: 1},
	}
}

func TestHandleUpdate_DropsUnknownUsers(t *testing.T) {
	tb := newTestBot(t)

	tb.HandleUpdate(context.Background(), photoUpdate(userID, ""))

	assert.Empty(t, tb.sent)
	tb.eval.AssertNotCalled(t, "Evaluate", mock.Anything, mock.Anything)
}

func TestHandlePhoto_EvaluatesAndSaves(t *testing.T) {
	tb := newTestBot(t)
	require.NoError(t, tb.store.AddAllowedUser(userID, adminID))

	var fileID string
	tb.download = func(_ func(string) (string, error), id string) ([]byte, error) {
		fileID = id
		return []byte("jpeg bytes"), nil
	}
	tb.eval.On("Evaluate", mock.Anything, evaluation.Request{
		Image:    evaluation.ImageRef{Data: []byte("jpeg bytes")},
		CostHint: 8.5,
		Niche:    "home office",
	}).Return(sampleRecord(), nil).Once()

	tb.HandleUpdate(context.Background(), photoUpdate(userID, "home office; $8,50"))

	tb.eval.AssertExpectations(t)
	assert.Equal(t, "large", fileID)
	reply := tb.lastSent(t)
	assert.Contains(t, reply, "LED Desk Lamp")
	assert.Contains(t, reply, "Price: $42.00 (range $39.00 - $54.60)")
	assert.Contains(t, reply, "• Low competition")
	assert.Contains(t, reply, "Tags: desk lamp, led lamp")

	items, err := tb.store.ListEvaluations(userID, 10)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "home office", items[0].Niche)
	assert.Len(t, items[0].ImageHash, 64)
}

func TestHandlePhoto_ReusesCachedEvaluation(t *testing.T) {
	tb := newTestBot(t)
	tb.eval.On("Evaluate", mock.Anything, mock.Anything).Return(sampleRecord(), nil).Once()

	tb.HandleUpdate(context.Background(), photoUpdate(adminID, "lamps"))
	tb.HandleUpdate(context.Background(), photoUpdate(adminID, "lamps"))

	tb.eval.AssertNumberOfCalls(t, "Evaluate", 1)
	assert.Contains(t, tb.lastSent(t), "from an earlier evaluation")
}

func TestHandlePhoto_ErrorReplies(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"busy", evaluation.ErrBusy, "Another evaluation is running"},
		{"config missing", evaluation.NewError(evaluation.KindConfigMissing, "no key", nil), "not configured correctly"},
		{"credential rejected", &evaluation.Error{Kind: evaluation.KindUpstreamRejected, Status: 401}, "not configured correctly"},
		{"timeout", &evaluation.Error{Kind: evaluation.KindTimeout, Attempts: 3}, "try again shortly"},
		{"bad request", &evaluation.Error{Kind: evaluation.KindUpstreamRejected, Status: 400}, "rejected the request"},
		{"canceled", evaluation.NewError(evaluation.KindCanceled, "", context.Canceled), "canceled"},
		{"unexpected", assert.AnError, "Something went wrong"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tb := newTestBot(t)
			tb.eval.On("Evaluate", mock.Anything, mock.Anything).Return(nil, tt.err).Once()

			tb.HandleUpdate(context.Background(), photoUpdate(adminID, ""))

			assert.Contains(t, tb.lastSent(t), tt.want)
			items, err := tb.store.ListEvaluations(adminID, 10)
			require.NoError(t, err)
			assert.Empty(t, items)
		})
	}
}

func TestHandleCommand_History(t *testing.T) {
	tb := newTestBot(t)

	tb.HandleUpdate(context.Background(), textUpdate(adminID, "/history"))
	assert.Contains(t, tb.lastSent(t), "No evaluations yet")

	require.NoError(t, tb.store.SaveEvaluation(&storage.StoredEvaluation{TelegramID: adminID, Record: *sampleRecord()}))
	tb.HandleUpdate(context.Background(), textUpdate(adminID, "/history"))
	assert.Contains(t, tb.lastSent(t), "LED Desk Lamp: $42.00, low saturation")
}

func TestHandleCommand_Allowlist(t *testing.T) {
	tb := newTestBot(t)

	tb.HandleUpdate(context.Background(), textUpdate(adminID, "/allow 2"))
	allowed, err := tb.store.IsUserAllowed(userID)
	require.NoError(t, err)
	assert.True(t, allowed)

	// Allowed users cannot manage the list themselves
	tb.HandleUpdate(context.Background(), textUpdate(userID, "/disallow 2"))
	assert.Contains(t, tb.lastSent(t), "Only the admin")

	tb.HandleUpdate(context.Background(), textUpdate(adminID, "/disallow x"))
	assert.Contains(t, tb.lastSent(t), "Usage: /disallow")

	tb.HandleUpdate(context.Background(), textUpdate(adminID, "/disallow 2"))
	allowed, err = tb.store.IsUserAllowed(userID)
	require.NoError(t, err)
	assert.False(t, allowed)
}

func TestHandleUpdate_TextShowsHelp(t *testing.T) {
	tb := newTestBot(t)
	tb.HandleUpdate(context.Background(), textUpdate(adminID, "hello"))
	assert.Equal(t, helpText, tb.lastSent(t))
}

func TestParseCaption(t *testing.T) {
	tests := []struct {
		caption string
		niche   string
		cost    float64
	}{
		{"", "", 0},
		{"home office", "home office", 0},
		{"home office; 8.50", "home office", 8.5},
		{"pets;$4", "pets", 4},
		{"12,99", "", 12.99},
		{"kitchen; 3 USD", "kitchen", 3},
		{"kitchen; cheap", "kitchen", 0},
		{"kitchen; -5", "kitchen", 0},
	}
	for _, tt := range tests {
		niche, cost := parseCaption(tt.caption)
		assert.Equal(t, tt.niche, niche, tt.caption)
		assert.InDelta(t, tt.cost, cost, 1e-9, tt.caption)
	}
}

func TestRegisterCommands(t *testing.T) {
	tg := new(botApiMock)
	tg.On("Request", mock.MatchedBy(func(cfg tgbotapi.SetMyCommandsConfig) bool {
		return len(cfg.Commands) == len(botCommands) && cfg.Commands[0].Command == "start"
	})).Return(&tgbotapi.APIResponse{Ok: true}, nil).Once()

	RegisterCommands(tg)
	tg.AssertExpectations(t)
}

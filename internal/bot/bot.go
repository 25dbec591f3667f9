package bot

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/raine/product-evaluator/internal/evaluation"
	"github.com/raine/product-evaluator/internal/storage"
	"github.com/rs/zerolog/log"
)

const historyLimit = 5

// BotAPI defines the interface for Telegram bot API operations.
type BotAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetFileDirectURL(fileID string) (string, error)
}

// Evaluator runs a single product evaluation.
type Evaluator interface {
	Evaluate(ctx context.Context, req evaluation.Request) (*evaluation.Record, error)
}

// Store is the part of the storage layer the bot needs.
type Store interface {
	SaveEvaluation(e *storage.StoredEvaluation) error
	ListEvaluations(telegramID int64, limit int) ([]storage.StoredEvaluation, error)
	FindCached(imageHash, niche string, costHint float64, maxAge time.Duration) (*storage.StoredEvaluation, error)
	IsUserAllowed(telegramID int64) (bool, error)
	AddAllowedUser(telegramID, addedBy int64) error
	RemoveAllowedUser(telegramID int64) error
}

// Bot answers product photos with evaluations.
type Bot struct {
	tg          BotAPI
	evaluator   Evaluator
	store       Store
	adminID     int64
	cacheMaxAge time.Duration
	download    func(getFileDirectURL func(string) (string, error), fileID string) ([]byte, error)
}

// NewBot creates a new Bot instance. A zero cacheMaxAge disables reuse of
// earlier evaluations.
func NewBot(tg BotAPI, evaluator Evaluator, store Store, adminID int64, cacheMaxAge time.Duration) *Bot {
	return &Bot{
		tg:          tg,
		evaluator:   evaluator,
		store:       store,
		adminID:     adminID,
		cacheMaxAge: cacheMaxAge,
		download:    downloadFileID,
	}
}

// HandleUpdate is the main message router.
func (b *Bot) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	message := update.Message
	if message == nil || message.From == nil {
		return
	}
	userID := message.From.ID

	// Check if user is allowed (admin always allowed)
	if userID != b.adminID {
		allowed, err := b.store.IsUserAllowed(userID)
		if err != nil {
			log.Error().Err(err).Int64("user_id", userID).Msg("whitelist check failed")
			return // Fail closed
		}
		if !allowed {
			return // Silent drop
		}
	}

	log.Info().Int64("user_id", userID).Str("text", message.Text).Str("caption", message.Caption).Msg("got message")

	if len(message.Photo) > 0 {
		b.handlePhoto(ctx, message)
		return
	}
	if message.IsCommand() {
		b.handleCommand(message)
		return
	}
	b.reply(message.Chat.ID, helpText)
}

func (b *Bot) handleCommand(message *tgbotapi.Message) {
	chatID := message.Chat.ID
	switch message.Command() {
	case "start", "help":
		b.reply(chatID, helpText)
	case "history":
		b.handleHistory(message)
	case "allow", "disallow":
		b.handleAllowlist(message)
	default:
		b.reply(chatID, "Unknown command. Send /help for usage.")
	}
}

func (b *Bot) handleHistory(message *tgbotapi.Message) {
	items, err := b.store.ListEvaluations(message.From.ID, historyLimit)
	if err != nil {
		log.Error().Err(err).Msg("failed to list evaluations")
		b.reply(message.Chat.ID, errorReplyInternal)
		return
	}
	b.reply(message.Chat.ID, formatHistory(items))
}

func (b *Bot) handleAllowlist(message *tgbotapi.Message) {
	chatID := message.Chat.ID
	if message.From.ID != b.adminID {
		b.reply(chatID, "Only the admin can change the allowlist.")
		return
	}

	target, err := strconv.ParseInt(strings.TrimSpace(message.CommandArguments()), 10, 64)
	if err != nil {
		b.reply(chatID, formatReplyText("Usage: /%s <telegram user id>", message.Command()))
		return
	}

	if message.Command() == "allow" {
		err = b.store.AddAllowedUser(target, message.From.ID)
	} else {
		err = b.store.RemoveAllowedUser(target)
	}
	if err != nil {
		log.Error().Err(err).Int64("target", target).Msg("allowlist update failed")
		b.reply(chatID, errorReplyInternal)
		return
	}
	log.Info().Str("command", message.Command()).Int64("target", target).Msg("allowlist updated")
	b.reply(chatID, formatReplyText("Done: /%s %d", message.Command(), target))
}

func (b *Bot) handlePhoto(ctx context.Context, message *tgbotapi.Message) {
	chatID := message.Chat.ID
	niche, costHint := parseCaption(message.Caption)

	// Telegram orders sizes from smallest to largest
	photo := message.Photo[len(message.Photo)-1]
	data, err := b.download(b.tg.GetFileDirectURL, photo.FileID)
	if err != nil {
		log.Error().Err(err).Str("fileID", photo.FileID).Msg("failed to download photo")
		b.reply(chatID, "Could not download the photo, please send it again.")
		return
	}

	sum := sha256.Sum256(data)
	imageHash := hex.EncodeToString(sum[:])

	if b.cacheMaxAge > 0 {
		cached, err := b.store.FindCached(imageHash, niche, costHint, b.cacheMaxAge)
		if err != nil {
			log.Warn().Err(err).Msg("cache lookup failed")
		} else if cached != nil {
			log.Info().Str("id", cached.ID).Msg("reusing cached evaluation")
			b.reply(chatID, formatRecord(&cached.Record, true))
			return
		}
	}

	b.reply(chatID, "Evaluating the product, this can take up to a minute...")

	rec, err := b.evaluator.Evaluate(ctx, evaluation.Request{
		Image:    evaluation.ImageRef{Data: data},
		CostHint: costHint,
		Niche:    niche,
	})
	if err != nil {
		b.reply(chatID, errorReply(err))
		return
	}

	stored := &storage.StoredEvaluation{
		TelegramID: message.From.ID,
		ImageHash:  imageHash,
		Niche:      niche,
		CostHint:   costHint,
		Record:     *rec,
	}
	if err := b.store.SaveEvaluation(stored); err != nil {
		log.Error().Err(err).Msg("failed to save evaluation")
	}

	b.reply(chatID, formatRecord(rec, false))
}

func (b *Bot) reply(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := b.tg.Send(msg); err != nil {
		log.Error().Err(err).Int64("chat_id", chatID).Msg("failed to send message")
	}
}

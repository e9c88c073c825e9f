package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/curiobot/curio/internal/curator"
	"github.com/curiobot/curio/internal/models"
	"github.com/curiobot/curio/internal/taste"
)

// Curator runs one recommendation cycle.
type Curator interface {
	Curate(ctx context.Context, prefs []models.TagWeight, seenURLs, seenTitles []string) (*models.CuratedSet, error)
}

// Storage is the persistence surface the bot needs. All business logic
// stays behind it; the bot only wires transport.
type Storage interface {
	GetTopPreferences(ctx context.Context, userID int64, n int) ([]models.TagWeight, error)
	SetPreference(ctx context.Context, userID int64, tag string, weight int) error
	ResetPreferences(ctx context.Context, userID int64) error
	EnsureDefaults(ctx context.Context, userID int64, tags []string) error
	ApplyRating(ctx context.Context, userID int64, tags []string, rating int) error
	GetExistingURLs(ctx context.Context, userID int64) ([]string, error)
	GetExistingTitles(ctx context.Context, userID int64) ([]string, error)
	SaveRecommendation(ctx context.Context, article models.CuratedArticle) (string, error)
	SaveDelivery(ctx context.Context, userID int64, recommendationID string, messageID int) error
	RecordRating(ctx context.Context, userID int64, recommendationID string, rating int) (bool, error)
	GetRecommendationTags(ctx context.Context, recommendationID string) ([]string, error)
}

// profileSize bounds how much of a profile is loaded for a cycle.
const profileSize = 50

type Bot struct {
	api         *tgbotapi.BotAPI
	webhookURL  string
	serverPort  string
	curator     Curator
	storage     Storage
	defaultTags []string
	server      *http.Server
}

func NewBot(token, webhookURL, serverPort string, c Curator, s Storage, defaultTags []string) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("creating telegram bot: %w", err)
	}

	return &Bot{
		api:         api,
		webhookURL:  webhookURL,
		serverPort:  serverPort,
		curator:     c,
		storage:     s,
		defaultTags: defaultTags,
	}, nil
}

// Start begins receiving updates: webhook transport when a webhook URL
// is configured, long polling otherwise.
func (b *Bot) Start(ctx context.Context) error {
	var updates tgbotapi.UpdatesChannel

	if b.webhookURL != "" {
		webhook, err := tgbotapi.NewWebhook(b.webhookURL)
		if err != nil {
			return err
		}
		if _, err := b.api.Request(webhook); err != nil {
			return err
		}

		info, err := b.api.GetWebhookInfo()
		if err != nil {
			return err
		}
		if info.LastErrorDate != 0 {
			slog.Warn("telegram webhook reported an error", "error", info.LastErrorMessage)
		}

		updates = b.api.ListenForWebhook("/webhook")
		b.startHTTPServer()
	} else {
		u := tgbotapi.NewUpdate(0)
		u.Timeout = 30
		updates = b.api.GetUpdatesChan(u)
	}

	go func() {
		for update := range updates {
			b.handleUpdate(ctx, update)
		}
	}()

	return nil
}

func (b *Bot) Stop(ctx context.Context) error {
	b.api.StopReceivingUpdates()
	if b.server != nil {
		return b.server.Shutdown(ctx)
	}
	return nil
}

func (b *Bot) startHTTPServer() {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, `{"status":"healthy","timestamp":"%s"}`, time.Now().Format(time.RFC3339))
	})

	b.server = &http.Server{
		Addr:    ":" + b.serverPort,
		Handler: mux,
	}

	go func() {
		if err := b.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", "error", err)
		}
	}()
}

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	if update.CallbackQuery != nil {
		b.handleRatingCallback(ctx, update.CallbackQuery)
		return
	}
	if update.Message == nil {
		return
	}

	userID := update.Message.From.ID
	chatID := update.Message.Chat.ID
	text := update.Message.Text

	switch {
	case strings.HasPrefix(text, "/start"):
		b.handleStart(ctx, userID, chatID)
	case strings.HasPrefix(text, "/recommend"):
		b.handleRecommend(ctx, userID, chatID)
	case strings.HasPrefix(text, "/tags"):
		b.handleTags(ctx, userID, chatID)
	case strings.HasPrefix(text, "/set"):
		b.handleSet(ctx, userID, chatID, text)
	case strings.HasPrefix(text, "/reset"):
		b.handleReset(ctx, userID, chatID)
	case strings.HasPrefix(text, "/help"):
		b.handleHelp(chatID)
	default:
		b.sendMessage(chatID, "Unknown command. Use /help for available commands.")
	}
}

func (b *Bot) handleStart(ctx context.Context, userID, chatID int64) {
	if err := b.storage.EnsureDefaults(ctx, userID, b.defaultTags); err != nil {
		slog.Error("failed to seed preferences", "user", userID, "error", err)
		b.sendMessage(chatID, "Something went wrong setting up your profile. Please try /start again.")
		return
	}

	b.sendMessage(chatID, `Welcome to Curio! 📚

I recommend one great piece of writing at a time, tuned to your taste. Rate what I send and I'll learn.

Commands:
/recommend - Get a recommendation now
/tags - See your interest profile
/set tag=weight - Pin an interest (0-100, 50 is neutral)
/reset - Start your profile over
/help - Show this help

Try /recommend to get your first pick.`)
}

func (b *Bot) handleRecommend(ctx context.Context, userID, chatID int64) {
	set, err := b.runCycle(ctx, userID)
	if err != nil {
		slog.Error("curation cycle failed", "user", userID, "error", err)
		b.sendMessage(chatID, "I couldn't put together a recommendation this time. Please try again in a moment.")
		return
	}
	b.deliver(ctx, userID, chatID, set)
}

// DeliverTo runs a full cycle for a user and sends the result. Used by
// the scheduler; chat and user IDs coincide for private chats.
func (b *Bot) DeliverTo(ctx context.Context, userID int64) error {
	set, err := b.runCycle(ctx, userID)
	if err != nil {
		return err
	}
	b.deliver(ctx, userID, userID, set)
	return nil
}

func (b *Bot) runCycle(ctx context.Context, userID int64) (*models.CuratedSet, error) {
	prefs, err := b.storage.GetTopPreferences(ctx, userID, profileSize)
	if err != nil {
		return nil, fmt.Errorf("loading preferences: %w", err)
	}
	if len(prefs) == 0 {
		if err := b.storage.EnsureDefaults(ctx, userID, b.defaultTags); err != nil {
			return nil, fmt.Errorf("seeding preferences: %w", err)
		}
		prefs, err = b.storage.GetTopPreferences(ctx, userID, profileSize)
		if err != nil {
			return nil, fmt.Errorf("loading preferences: %w", err)
		}
	}

	seenURLs, err := b.storage.GetExistingURLs(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("loading seen URLs: %w", err)
	}
	seenTitles, err := b.storage.GetExistingTitles(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("loading seen titles: %w", err)
	}

	return b.curator.Curate(ctx, prefs, seenURLs, seenTitles)
}

func (b *Bot) deliver(ctx context.Context, userID, chatID int64, set *models.CuratedSet) {
	primaryID, err := b.storage.SaveRecommendation(ctx, set.Primary)
	if err != nil {
		slog.Error("failed to persist recommendation", "user", userID, "error", err)
		b.sendMessage(chatID, "I found something but couldn't save it. Please try again.")
		return
	}

	msg := tgbotapi.NewMessage(chatID, formatRecommendation(set))
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = false
	msg.ReplyMarkup = ratingKeyboard(primaryID)

	sent, err := b.api.Send(msg)
	if err != nil {
		slog.Error("failed to send recommendation", "user", userID, "error", err)
		return
	}

	if err := b.storage.SaveDelivery(ctx, userID, primaryID, sent.MessageID); err != nil {
		slog.Error("failed to record delivery", "user", userID, "error", err)
	}

	// Alternates are persisted and linked too so future cycles dedup
	// against them; they carry no rating controls.
	for _, alt := range set.Alternatives {
		altID, err := b.storage.SaveRecommendation(ctx, alt)
		if err != nil {
			slog.Warn("failed to persist alternate", "user", userID, "error", err)
			continue
		}
		if err := b.storage.SaveDelivery(ctx, userID, altID, sent.MessageID); err != nil {
			slog.Warn("failed to record alternate delivery", "user", userID, "error", err)
		}
	}
}

func (b *Bot) handleRatingCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	recommendationID, rating, err := parseRatingCallback(cb.Data)
	if err != nil {
		b.answerCallback(cb.ID, "I didn't understand that rating.")
		return
	}

	ack, applied := b.processRating(ctx, cb.From.ID, recommendationID, rating)
	b.answerCallback(cb.ID, ack)

	// Freeze the buttons so the message shows the rating is in.
	if applied && cb.Message != nil {
		edit := tgbotapi.NewEditMessageReplyMarkup(cb.Message.Chat.ID, cb.Message.MessageID,
			tgbotapi.NewInlineKeyboardMarkup(
				tgbotapi.NewInlineKeyboardRow(
					tgbotapi.NewInlineKeyboardButtonData(ratingLabel(rating), "noop"),
				),
			))
		if _, err := b.api.Request(edit); err != nil {
			slog.Debug("failed to freeze rating keyboard", "error", err)
		}
	}
}

// processRating records a rating and, unless it was a skip, folds its
// impact into every tag on the recommendation. Returns the callback
// acknowledgement and whether the rating landed.
func (b *Bot) processRating(ctx context.Context, userID int64, recommendationID string, rating int) (string, bool) {
	applied, err := b.storage.RecordRating(ctx, userID, recommendationID, rating)
	if err != nil {
		slog.Error("failed to record rating", "user", userID, "error", err)
		return "Couldn't save your rating, please try again.", false
	}
	if !applied {
		return "You already rated this one.", false
	}

	if rating != taste.RatingSkip {
		tags, err := b.storage.GetRecommendationTags(ctx, recommendationID)
		if err != nil {
			slog.Error("failed to load tags for rating", "user", userID, "error", err)
		} else if err := b.storage.ApplyRating(ctx, userID, tags, rating); err != nil {
			slog.Error("failed to apply rating to profile", "user", userID, "error", err)
		}
	}

	return ratingAck(rating), true
}

func (b *Bot) handleTags(ctx context.Context, userID, chatID int64) {
	prefs, err := b.storage.GetTopPreferences(ctx, userID, profileSize)
	if err != nil {
		slog.Error("failed to load profile", "user", userID, "error", err)
		b.sendMessage(chatID, "Couldn't load your profile right now.")
		return
	}
	if len(prefs) == 0 {
		b.sendMessage(chatID, "No profile yet. Use /start to set one up.")
		return
	}

	var sb strings.Builder
	sb.WriteString("Your interest profile: 📊\n\n")
	for _, tw := range prefs {
		sb.WriteString(fmt.Sprintf("%s — %d%%\n", tw.Tag, tw.Weight))
	}
	sb.WriteString("\nRatings move these over time; /set pins one directly.")
	b.sendMessage(chatID, sb.String())
}

func (b *Bot) handleSet(ctx context.Context, userID, chatID int64, text string) {
	parts := strings.Fields(text)
	if len(parts) != 2 || !strings.Contains(parts[1], "=") {
		b.sendMessage(chatID, "Usage: /set Philosophy=80")
		return
	}

	kv := strings.SplitN(parts[1], "=", 2)
	tag := strings.TrimSpace(kv[0])
	weight, err := strconv.Atoi(strings.TrimSpace(kv[1]))
	if err != nil || tag == "" {
		b.sendMessage(chatID, "Usage: /set Philosophy=80")
		return
	}

	if err := b.storage.SetPreference(ctx, userID, tag, weight); err != nil {
		slog.Error("failed to set preference", "user", userID, "error", err)
		b.sendMessage(chatID, "Couldn't save that, please try again.")
		return
	}
	b.sendMessage(chatID, fmt.Sprintf("Done — %s pinned at %d%%. 🎯", tag, taste.ApplyImpact(weight, 0)))
}

func (b *Bot) handleReset(ctx context.Context, userID, chatID int64) {
	if err := b.storage.ResetPreferences(ctx, userID); err != nil {
		slog.Error("failed to reset preferences", "user", userID, "error", err)
		b.sendMessage(chatID, "Couldn't reset your profile, please try again.")
		return
	}
	if err := b.storage.EnsureDefaults(ctx, userID, b.defaultTags); err != nil {
		slog.Error("failed to reseed preferences", "user", userID, "error", err)
	}
	b.sendMessage(chatID, "Profile reset — everything back to neutral. 🔄")
}

func (b *Bot) handleHelp(chatID int64) {
	b.sendMessage(chatID, `Curio Help 📖

Commands:
/recommend - Get a recommendation now
/tags - See your interest profile
/set tag=weight - Pin an interest to a weight (0-100)
/reset - Reset your profile to neutral
/help - Show this help

Rate each pick with the buttons under it:
⏭ skip (doesn't affect your profile), 1-5 stars (teaches me your taste).

Status badges: ✅ verified, 🔒 paywall likely, 🔍 search result, ⚠️ unverified.`)
}

func (b *Bot) sendMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.DisableWebPagePreview = true

	if _, err := b.api.Send(msg); err != nil {
		slog.Error("failed to send telegram message", "chat", chatID, "error", err)
	}
}

func (b *Bot) answerCallback(callbackID, text string) {
	if _, err := b.api.Request(tgbotapi.NewCallback(callbackID, text)); err != nil {
		slog.Debug("failed to answer callback", "error", err)
	}
}

func ratingKeyboard(recommendationID string) tgbotapi.InlineKeyboardMarkup {
	row := []tgbotapi.InlineKeyboardButton{
		tgbotapi.NewInlineKeyboardButtonData("⏭", fmt.Sprintf("rate:%s:0", recommendationID)),
	}
	for stars := 1; stars <= 5; stars++ {
		row = append(row, tgbotapi.NewInlineKeyboardButtonData(
			fmt.Sprintf("%d⭐", stars),
			fmt.Sprintf("rate:%s:%d", recommendationID, stars),
		))
	}
	return tgbotapi.NewInlineKeyboardMarkup(row)
}

func parseRatingCallback(data string) (string, int, error) {
	parts := strings.Split(data, ":")
	if len(parts) != 3 || parts[0] != "rate" {
		return "", 0, fmt.Errorf("unrecognized callback %q", data)
	}
	rating, err := strconv.Atoi(parts[2])
	if err != nil || rating < 0 || rating > 5 {
		return "", 0, errors.New("rating out of range")
	}
	return parts[1], rating, nil
}

func ratingAck(rating int) string {
	if rating == taste.RatingSkip {
		return "Skipped — your profile is unchanged."
	}
	return fmt.Sprintf("Thanks! %d⭐ noted.", rating)
}

func ratingLabel(rating int) string {
	if rating == taste.RatingSkip {
		return "⏭ skipped"
	}
	return fmt.Sprintf("rated %d⭐", rating)
}

func statusEmoji(article models.CuratedArticle) string {
	switch article.StatusBadge() {
	case "verified":
		return "✅ verified"
	case "paywall likely":
		return "🔒 paywall likely"
	case "search result":
		return "🔍 search result"
	default:
		return "⚠️ unverified"
	}
}

func formatRecommendation(set *models.CuratedSet) string {
	p := set.Primary

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("📚 <b>%s</b>\n", escapeHTML(p.Title)))
	if p.Author != "" {
		sb.WriteString(fmt.Sprintf("by %s", escapeHTML(p.Author)))
		if p.Publication != "" {
			sb.WriteString(fmt.Sprintf(" · %s", escapeHTML(p.Publication)))
		}
		sb.WriteString("\n")
	}
	sb.WriteString(fmt.Sprintf("%s\n\n", statusEmoji(p)))

	if p.Description != "" {
		sb.WriteString(fmt.Sprintf("📝 %s\n\n", escapeHTML(p.Description)))
	}
	if p.Reason != "" {
		sb.WriteString(fmt.Sprintf("💡 %s\n\n", escapeHTML(p.Reason)))
	}
	sb.WriteString(fmt.Sprintf("🔗 %s\n", escapeHTML(p.URL)))
	if len(p.Tags) > 0 {
		sb.WriteString(fmt.Sprintf("🏷 %s\n", escapeHTML(strings.Join(p.Tags, ", "))))
	}

	if len(set.Alternatives) > 0 {
		sb.WriteString("\nAlso worth a look:\n")
		for i, alt := range set.Alternatives {
			sb.WriteString(fmt.Sprintf("%d. <a href=\"%s\">%s</a> — %s (%s)\n",
				i+2, escapeHTML(alt.URL), escapeHTML(alt.Title), escapeHTML(alt.Author), statusEmoji(alt)))
		}
	}

	return sb.String()
}

// escapeHTML makes a value safe for Telegram HTML mode, both in text
// and inside quoted attributes like href.
func escapeHTML(s string) string {
	replacer := strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", `"`, "&quot;")
	return replacer.Replace(s)
}

// Compile-time check that the real pipeline satisfies the bot's
// collaborator contract.
var _ Curator = (*curator.Curator)(nil)

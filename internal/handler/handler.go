// Package handler содержит HTTP-обработчики вебхука и служебных эндпоинтов бота.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/mmeshcher/dealhunter-bot/internal/format"
	"github.com/mmeshcher/dealhunter-bot/internal/metrics"
	"github.com/mmeshcher/dealhunter-bot/internal/middleware"
	"github.com/mmeshcher/dealhunter-bot/internal/model"
	"github.com/mmeshcher/dealhunter-bot/internal/telegram"
)

// Service определяет контракт логики бота, используемой обработчиками.
type Service interface {
	HandleText(ctx context.Context, chatID int64, text string) []model.OutboundMessage
	HandleAction(ctx context.Context, chatID int64, token string) []model.OutboundMessage
}

// Bot доставляет ответы в Telegram.
type Bot interface {
	SendMessage(ctx context.Context, msg model.OutboundMessage) error
	AnswerCallbackQuery(ctx context.Context, callbackQueryID, text string) error
}

// Deduplicator отмечает обработанные обновления.
type Deduplicator interface {
	FirstSeen(ctx context.Context, updateID int64) (bool, error)
}

// Deps содержит зависимости обработчика. Dedup и Gatherer необязательны.
type Deps struct {
	Service     Service
	Bot         Bot
	Dedup       Deduplicator
	Logger      *zap.Logger
	Secret      *middleware.WebhookSecret
	Metrics     *metrics.Metrics
	Gatherer    prometheus.Gatherer
	BotUsername string
}

// maxUpdateSize ограничивает тело запроса вебхука.
const maxUpdateSize = 1 << 20

// Handler реализует HTTP-обработчики бота.
type Handler struct {
	service     Service
	bot         Bot
	dedup       Deduplicator
	logger      *zap.Logger
	secret      *middleware.WebhookSecret
	metrics     *metrics.Metrics
	gatherer    prometheus.Gatherer
	botUsername string
}

// NewHandler создаёт новый экземпляр обработчика HTTP-запросов.
func NewHandler(d Deps) *Handler {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.Secret == nil {
		d.Secret = middleware.NewWebhookSecret("")
	}
	if d.Metrics == nil {
		d.Metrics = metrics.New(prometheus.NewRegistry())
	}

	return &Handler{
		service:     d.Service,
		bot:         d.Bot,
		dedup:       d.Dedup,
		logger:      d.Logger,
		secret:      d.Secret,
		metrics:     d.Metrics,
		gatherer:    d.Gatherer,
		botUsername: d.BotUsername,
	}
}

// Webhook принимает обновление Telegram и отвечает 200, даже если доставка ответа не удалась:
// иначе Telegram повторит то же обновление.
func (h *Handler) Webhook(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUpdateSize)

	var upd telegram.Update
	if err := json.NewDecoder(r.Body).Decode(&upd); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			http.Error(w, http.StatusText(http.StatusRequestEntityTooLarge), http.StatusRequestEntityTooLarge)
			return
		}
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	ctx := r.Context()

	if h.dedup != nil {
		first, err := h.dedup.FirstSeen(ctx, upd.UpdateID)
		if err != nil {
			h.logger.Warn("update dedup error", zap.Error(err), zap.Int64("updateID", upd.UpdateID))
		} else if !first {
			h.metrics.DuplicateUpdates.Inc()
			w.WriteHeader(http.StatusOK)
			return
		}
	}

	switch {
	case upd.Message != nil:
		h.metrics.UpdatesTotal.WithLabelValues("message").Inc()
		h.handleMessage(ctx, upd.Message)
	case upd.CallbackQuery != nil:
		h.metrics.UpdatesTotal.WithLabelValues("callback_query").Inc()
		h.handleCallbackQuery(ctx, upd.CallbackQuery)
	default:
		h.metrics.UpdatesTotal.WithLabelValues("other").Inc()
	}

	w.WriteHeader(http.StatusOK)
}

func (h *Handler) handleMessage(ctx context.Context, msg *telegram.Message) {
	if msg.Text == "" {
		return
	}

	replies := h.service.HandleText(ctx, msg.Chat.ID, msg.Text)
	if err := h.send(ctx, replies); err != nil {
		h.logger.Error("send replies error", zap.Error(err), zap.Int64("chatID", msg.Chat.ID))
	}
}

func (h *Handler) handleCallbackQuery(ctx context.Context, cq *telegram.CallbackQuery) {
	answer := ""

	if cq.Message != nil {
		replies := h.service.HandleAction(ctx, cq.Message.Chat.ID, cq.Data)
		if err := h.send(ctx, replies); err != nil {
			h.logger.Error("send callback replies error", zap.Error(err),
				zap.Int64("chatID", cq.Message.Chat.ID), zap.String("data", cq.Data))
			answer = format.CallbackFailText
		}
	}

	if err := h.bot.AnswerCallbackQuery(ctx, cq.ID, answer); err != nil {
		h.metrics.SendFailures.Inc()
		h.logger.Error("answer callback query error", zap.Error(err), zap.String("callbackQueryID", cq.ID))
	}
}

// send отправляет ответы по порядку. Ошибка одного сообщения не мешает
// доставке остальных; каждая учитывается в метриках и журнале.
func (h *Handler) send(ctx context.Context, replies []model.OutboundMessage) error {
	var errs []error
	for i, msg := range replies {
		if err := h.bot.SendMessage(ctx, msg); err != nil {
			h.metrics.SendFailures.Inc()
			h.logger.Warn("send message error", zap.Error(err),
				zap.Int64("chatID", msg.ChatID), zap.Int("index", i))
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

type healthResponse struct {
	Status    string `json:"status"`
	Bot       string `json:"bot"`
	Username  string `json:"username"`
	Timestamp string `json:"timestamp"`
}

// Health сообщает, что сервис запущен.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, healthResponse{
		Status:    "OK",
		Bot:       "DEALHUNTER active",
		Username:  "@" + h.botUsername,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

type rootResponse struct {
	Message       string `json:"message"`
	BotUsername   string `json:"bot_username"`
	AddToTelegram string `json:"add_to_telegram"`
}

// Root возвращает краткую информацию о боте.
func (h *Handler) Root(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, rootResponse{
		Message:       "DEALHUNTER Telegram Bot is running!",
		BotUsername:   "@" + h.botUsername,
		AddToTelegram: "https://t.me/" + h.botUsername,
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
}

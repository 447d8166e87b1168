// Package telegram предоставляет клиент Telegram Bot API.
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"

	"github.com/mmeshcher/dealhunter-bot/internal/model"
)

// DefaultAPIURL задаёт адрес Bot API по умолчанию.
const DefaultAPIURL = "https://api.telegram.org"

// APIError описывает ответ Bot API с ok=false.
type APIError struct {
	Code        int
	Description string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("telegram api error %d: %s", e.Code, e.Description)
}

// Client инкапсулирует HTTP-взаимодействие с Bot API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Option настраивает клиент.
type Option func(*retryablehttp.Client)

// WithRetry задаёт число повторов и границы паузы между ними.
func WithRetry(maxRetries int, waitMin, waitMax time.Duration) Option {
	return func(c *retryablehttp.Client) {
		c.RetryMax = maxRetries
		c.RetryWaitMin = waitMin
		c.RetryWaitMax = waitMax
	}
}

// WithLogger направляет журнал повторов в zap, скрывая токен бота.
func WithLogger(logger *zap.Logger, token string) Option {
	return func(c *retryablehttp.Client) {
		c.Logger = &leveledLogger{sugar: logger.Sugar(), token: token}
	}
}

// NewClient создаёт клиент Bot API для указанного токена.
func NewClient(apiURL, token string, opts ...Option) *Client {
	if apiURL == "" {
		apiURL = DefaultAPIURL
	}

	rc := retryablehttp.NewClient()
	rc.RetryMax = 3
	rc.RetryWaitMin = 500 * time.Millisecond
	rc.RetryWaitMax = 5 * time.Second
	rc.HTTPClient.Timeout = 10 * time.Second
	rc.Logger = nil
	// Последний ответ возвращается как есть: описание ошибки берётся из тела Bot API.
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler

	for _, opt := range opts {
		opt(rc)
	}

	return &Client{
		baseURL:    strings.TrimRight(apiURL, "/") + "/bot" + token,
		httpClient: rc.StandardClient(),
	}
}

// SendMessage отправляет сообщение; каждое действие становится отдельной строкой inline-клавиатуры.
func (c *Client) SendMessage(ctx context.Context, msg model.OutboundMessage) error {
	req := sendMessageRequest{
		ChatID:    msg.ChatID,
		Text:      msg.Text,
		ParseMode: string(msg.ParseMode),
	}

	if len(msg.Actions) > 0 {
		markup := &InlineKeyboardMarkup{
			InlineKeyboard: make([][]InlineKeyboardButton, 0, len(msg.Actions)),
		}
		for _, a := range msg.Actions {
			markup.InlineKeyboard = append(markup.InlineKeyboard, []InlineKeyboardButton{
				{Text: a.Label, CallbackData: a.Token},
			})
		}
		req.ReplyMarkup = markup
	}

	return c.call(ctx, "sendMessage", req)
}

// AnswerCallbackQuery подтверждает нажатие кнопки, при необходимости с текстом уведомления.
func (c *Client) AnswerCallbackQuery(ctx context.Context, callbackQueryID, text string) error {
	return c.call(ctx, "answerCallbackQuery", answerCallbackQueryRequest{
		CallbackQueryID: callbackQueryID,
		Text:            text,
	})
}

// SetWebhook регистрирует адрес, на который Telegram будет присылать обновления.
func (c *Client) SetWebhook(ctx context.Context, webhookURL, secretToken string) error {
	return c.call(ctx, "setWebhook", setWebhookRequest{
		URL:            webhookURL,
		SecretToken:    secretToken,
		AllowedUpdates: []string{"message", "callback_query"},
	})
}

func (c *Client) call(ctx context.Context, method string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode %s request: %w", method, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/"+method, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// url.Error содержит адрес запроса вместе с токеном.
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			err = urlErr.Err
		}
		return fmt.Errorf("do %s request: %w", method, err)
	}
	defer resp.Body.Close()

	var result apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("decode %s response (status %d): %w", method, resp.StatusCode, err)
	}

	if !result.OK {
		code := result.ErrorCode
		if code == 0 {
			code = resp.StatusCode
		}
		return &APIError{Code: code, Description: result.Description}
	}

	return nil
}

type leveledLogger struct {
	sugar *zap.SugaredLogger
	token string
}

func (l *leveledLogger) redact(kv []interface{}) []interface{} {
	if l.token == "" {
		return kv
	}
	out := make([]interface{}, len(kv))
	for i, v := range kv {
		s := fmt.Sprint(v)
		if strings.Contains(s, l.token) {
			out[i] = strings.ReplaceAll(s, l.token, "<redacted>")
			continue
		}
		out[i] = v
	}
	return out
}

func (l *leveledLogger) Error(msg string, kv ...interface{}) { l.sugar.Errorw(msg, l.redact(kv)...) }
func (l *leveledLogger) Info(msg string, kv ...interface{})  { l.sugar.Infow(msg, l.redact(kv)...) }
func (l *leveledLogger) Debug(msg string, kv ...interface{}) { l.sugar.Debugw(msg, l.redact(kv)...) }
func (l *leveledLogger) Warn(msg string, kv ...interface{})  { l.sugar.Warnw(msg, l.redact(kv)...) }

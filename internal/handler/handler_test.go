package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mmeshcher/dealhunter-bot/internal/catalog"
	"github.com/mmeshcher/dealhunter-bot/internal/format"
	"github.com/mmeshcher/dealhunter-bot/internal/metrics"
	"github.com/mmeshcher/dealhunter-bot/internal/middleware"
	"github.com/mmeshcher/dealhunter-bot/internal/model"
	"github.com/mmeshcher/dealhunter-bot/internal/service"
)

type stubBot struct {
	sent     []model.OutboundMessage
	sendErr  error
	reject   func(model.OutboundMessage) error
	answered map[string]string
}

func (b *stubBot) SendMessage(ctx context.Context, msg model.OutboundMessage) error {
	if b.sendErr != nil {
		return b.sendErr
	}
	if b.reject != nil {
		if err := b.reject(msg); err != nil {
			return err
		}
	}
	b.sent = append(b.sent, msg)
	return nil
}

// parseEntities повторяет проверку Bot API для parse_mode=HTML:
// допустимы только парные теги b, i, s и сущности &name; или &#N;.
func parseEntities(msg model.OutboundMessage) error {
	if msg.ParseMode != model.ParseModeHTML {
		return nil
	}

	text := msg.Text
	var open []string
	for i := 0; i < len(text); i++ {
		switch text[i] {
		case '<':
			end := strings.IndexByte(text[i:], '>')
			if end < 0 {
				return fmt.Errorf("can't parse entities: unclosed start tag at byte %d", i)
			}
			tag := text[i+1 : i+end]
			switch tag {
			case "b", "i", "s":
				open = append(open, tag)
			case "/b", "/i", "/s":
				if len(open) == 0 || open[len(open)-1] != tag[1:] {
					return fmt.Errorf("can't parse entities: unexpected end tag %q", tag)
				}
				open = open[:len(open)-1]
			default:
				return fmt.Errorf("can't parse entities: unsupported tag %q", tag)
			}
			i += end
		case '>':
			return fmt.Errorf("can't parse entities: unexpected '>' at byte %d", i)
		case '&':
			end := strings.IndexByte(text[i:], ';')
			if end < 0 || !entityRe.MatchString(text[i:i+end+1]) {
				return fmt.Errorf("can't parse entities: bad entity at byte %d", i)
			}
			i += end
		}
	}
	if len(open) > 0 {
		return fmt.Errorf("can't parse entities: unclosed tags %v", open)
	}
	return nil
}

var entityRe = regexp.MustCompile(`^&(lt|gt|amp|quot|#[0-9]+);$`)

func (b *stubBot) AnswerCallbackQuery(ctx context.Context, callbackQueryID, text string) error {
	if b.answered == nil {
		b.answered = make(map[string]string)
	}
	b.answered[callbackQueryID] = text
	return nil
}

type stubDedup struct {
	seen map[int64]bool
	err  error
}

func (d *stubDedup) FirstSeen(ctx context.Context, updateID int64) (bool, error) {
	if d.err != nil {
		return false, d.err
	}
	if d.seen[updateID] {
		return false, nil
	}
	d.seen[updateID] = true
	return true, nil
}

type testEnv struct {
	handler *Handler
	bot     *stubBot
	metrics *metrics.Metrics
	router  http.Handler
}

func newTestEnv(t *testing.T, dedup Deduplicator, secret string) *testEnv {
	t.Helper()

	logger, err := zap.NewDevelopment()
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}

	c, err := catalog.Builtin()
	require.NoError(t, err)

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	bot := &stubBot{}

	h := NewHandler(Deps{
		Service:     service.NewService(c, service.Settings{BotUsername: "my_dealhunter_bot"}, m),
		Bot:         bot,
		Dedup:       dedup,
		Logger:      logger,
		Secret:      middleware.NewWebhookSecret(secret),
		Metrics:     m,
		Gatherer:    reg,
		BotUsername: "my_dealhunter_bot",
	})

	return &testEnv{handler: h, bot: bot, metrics: m, router: h.SetupRouter()}
}

func (e *testEnv) post(t *testing.T, body string, headers map[string]string) *http.Response {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(body))
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec.Result()
}

const laptopUpdate = `{"update_id":1,"message":{"message_id":10,"chat":{"id":99,"type":"private"},"date":0,"text":"I want a laptop"}}`

func TestWebhook_TextMessage(t *testing.T) {
	env := newTestEnv(t, nil, "")

	res := env.post(t, laptopUpdate, nil)
	require.Equal(t, http.StatusOK, res.StatusCode)

	require.Len(t, env.bot.sent, 4)
	assert.Contains(t, env.bot.sent[0].Text, "Searching for the best deals")
	assert.Equal(t, "purchase_laptop_1", env.bot.sent[1].Actions[0].Token)
	assert.Equal(t, "purchase_laptop_2", env.bot.sent[2].Actions[0].Token)
	for _, m := range env.bot.sent {
		assert.Equal(t, int64(99), m.ChatID)
	}

	assert.Equal(t, 1.0, testutil.ToFloat64(env.metrics.UpdatesTotal.WithLabelValues("message")))
}

func TestWebhook_Command(t *testing.T) {
	env := newTestEnv(t, nil, "")

	res := env.post(t, `{"update_id":2,"message":{"message_id":1,"chat":{"id":5},"text":"/help"}}`, nil)
	require.Equal(t, http.StatusOK, res.StatusCode)

	require.Len(t, env.bot.sent, 1)
	assert.Contains(t, env.bot.sent[0].Text, "@my_dealhunter_bot")
}

func TestWebhook_NonTextMessageIgnored(t *testing.T) {
	env := newTestEnv(t, nil, "")

	res := env.post(t, `{"update_id":3,"message":{"message_id":1,"chat":{"id":5}}}`, nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.Empty(t, env.bot.sent)
}

func TestWebhook_CallbackQuery(t *testing.T) {
	tests := []struct {
		name     string
		data     string
		wantText string
	}{
		{name: "known deal", data: "purchase_phone_1", wantText: "https://apple.com/iphone-15-pro"},
		{name: "stale deal", data: "purchase_unknown_99", wantText: format.UnavailableText},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, nil, "")

			body := `{"update_id":4,"callback_query":{"id":"cb-1","from":{"id":1,"first_name":"A"},` +
				`"message":{"message_id":1,"chat":{"id":77}},"data":"` + tt.data + `"}}`

			res := env.post(t, body, nil)
			require.Equal(t, http.StatusOK, res.StatusCode)

			require.Len(t, env.bot.sent, 1)
			assert.Contains(t, env.bot.sent[0].Text, tt.wantText)
			assert.Equal(t, int64(77), env.bot.sent[0].ChatID)

			text, ok := env.bot.answered["cb-1"]
			require.True(t, ok)
			assert.Empty(t, text)
		})
	}
}

func TestWebhook_CallbackSendFailure(t *testing.T) {
	env := newTestEnv(t, nil, "")
	env.bot.sendErr = errors.New("telegram down")

	body := `{"update_id":5,"callback_query":{"id":"cb-2","from":{"id":1},"message":{"message_id":1,"chat":{"id":77}},"data":"purchase_tv_1"}}`

	res := env.post(t, body, nil)
	require.Equal(t, http.StatusOK, res.StatusCode)

	assert.Equal(t, format.CallbackFailText, env.bot.answered["cb-2"])
	assert.Equal(t, 1.0, testutil.ToFloat64(env.metrics.SendFailures))
}

func TestWebhook_BadJSON(t *testing.T) {
	env := newTestEnv(t, nil, "")

	res := env.post(t, `{"update_id":`, nil)
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
}

func TestWebhook_Secret(t *testing.T) {
	env := newTestEnv(t, nil, "s3cret")

	res := env.post(t, laptopUpdate, nil)
	assert.Equal(t, http.StatusUnauthorized, res.StatusCode)
	assert.Empty(t, env.bot.sent)

	res = env.post(t, laptopUpdate, map[string]string{middleware.SecretTokenHeader: "s3cret"})
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Len(t, env.bot.sent, 4)
}

func TestWebhook_DuplicateUpdate(t *testing.T) {
	env := newTestEnv(t, &stubDedup{seen: map[int64]bool{}}, "")

	env.post(t, laptopUpdate, nil)
	res := env.post(t, laptopUpdate, nil)
	require.Equal(t, http.StatusOK, res.StatusCode)

	assert.Len(t, env.bot.sent, 4)
	assert.Equal(t, 1.0, testutil.ToFloat64(env.metrics.DuplicateUpdates))
}

func TestWebhook_DedupErrorStillProcesses(t *testing.T) {
	env := newTestEnv(t, &stubDedup{err: errors.New("redis down")}, "")

	res := env.post(t, laptopUpdate, nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.Len(t, env.bot.sent, 4)
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t, nil, "")

	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	res := rec.Result()
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, "application/json", res.Header.Get("Content-Type"))

	var body healthResponse
	require.NoError(t, json.NewDecoder(res.Body).Decode(&body))
	assert.Equal(t, "OK", body.Status)
	assert.Equal(t, "@my_dealhunter_bot", body.Username)
	assert.NotEmpty(t, body.Timestamp)
}

func TestRoot(t *testing.T) {
	env := newTestEnv(t, nil, "")

	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	var body rootResponse
	require.NoError(t, json.NewDecoder(rec.Result().Body).Decode(&body))
	assert.Equal(t, "https://t.me/my_dealhunter_bot", body.AddToTelegram)
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t, nil, "")
	env.post(t, laptopUpdate, nil)

	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `dealhunter_queries_total{match="category"} 1`)
}

func TestUnknownRoute(t *testing.T) {
	env := newTestEnv(t, nil, "")

	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	env.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/webhook", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestParseEntities(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		wantErr bool
	}{
		{name: "balanced", text: "<b>a</b> <i>b</i> <s>c</s> &amp; &#39;"},
		{name: "unclosed", text: "<b>a", wantErr: true},
		{name: "raw angle", text: "<script>", wantErr: true},
		{name: "bare ampersand", text: "a & b", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := parseEntities(model.OutboundMessage{Text: tt.text, ParseMode: model.ParseModeHTML})
			assert.Equal(t, tt.wantErr, err != nil)
		})
	}
}

func TestWebhook_RepliesParseForAnyInput(t *testing.T) {
	queries := []string{"usb_c hub", "*laptop", "[tv", "`phone", "<b>tv", "a & b > c"}

	for _, q := range queries {
		t.Run(q, func(t *testing.T) {
			env := newTestEnv(t, nil, "")
			env.bot.reject = parseEntities

			body, err := json.Marshal(map[string]any{
				"update_id": 10,
				"message": map[string]any{
					"message_id": 1,
					"chat":       map[string]any{"id": 3},
					"text":       q,
				},
			})
			require.NoError(t, err)

			res := env.post(t, string(body), nil)
			require.Equal(t, http.StatusOK, res.StatusCode)

			require.GreaterOrEqual(t, len(env.bot.sent), 3)
			assert.Contains(t, env.bot.sent[0].Text, "Searching for the best deals")
			assert.Equal(t, 0.0, testutil.ToFloat64(env.metrics.SendFailures))
		})
	}
}

func TestWebhook_CatalogValuesParse(t *testing.T) {
	env := newTestEnv(t, nil, "")
	env.bot.reject = parseEntities

	for _, data := range []string{"purchase_laptop_1", "purchase_phone_2", "purchase_default_1"} {
		body := `{"update_id":11,"callback_query":{"id":"cb","from":{"id":1},"message":{"message_id":1,"chat":{"id":3}},"data":"` + data + `"}}`
		env.post(t, body, nil)
	}

	assert.Len(t, env.bot.sent, 3)
	assert.Equal(t, 0.0, testutil.ToFloat64(env.metrics.SendFailures))
}

func TestWebhook_SendContinuesAfterFailure(t *testing.T) {
	env := newTestEnv(t, nil, "")
	calls := 0
	env.bot.reject = func(model.OutboundMessage) error {
		calls++
		if calls == 1 {
			return errors.New("Bad Request: can't parse entities")
		}
		return nil
	}

	res := env.post(t, laptopUpdate, nil)
	require.Equal(t, http.StatusOK, res.StatusCode)

	assert.Equal(t, 4, calls)
	require.Len(t, env.bot.sent, 3)
	assert.Equal(t, "purchase_laptop_1", env.bot.sent[0].Actions[0].Token)
	assert.Equal(t, 1.0, testutil.ToFloat64(env.metrics.SendFailures))
}

func TestWebhook_BodyTooLarge(t *testing.T) {
	env := newTestEnv(t, nil, "")

	body := `{"update_id":1,"message":{"message_id":1,"chat":{"id":1},"text":"` +
		strings.Repeat("a", maxUpdateSize) + `"}}`

	res := env.post(t, body, nil)
	assert.Equal(t, http.StatusRequestEntityTooLarge, res.StatusCode)
	assert.Empty(t, env.bot.sent)
}

// Package service реализует сценарии бота: поиск предложений, команды и нажатия кнопок.
package service

import (
	"context"
	"errors"
	"strings"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/mmeshcher/dealhunter-bot/internal/format"
	"github.com/mmeshcher/dealhunter-bot/internal/metrics"
	"github.com/mmeshcher/dealhunter-bot/internal/model"
	"github.com/mmeshcher/dealhunter-bot/internal/resolver"
)

// DefaultDisplayLimit задаёт, сколько предложений показывается на один запрос.
const DefaultDisplayLimit = 3

const commandMarker = "/"

// Settings содержит параметры отображения.
type Settings struct {
	DisplayLimit int
	BotUsername  string
}

// Service содержит логику обработки входящих событий. Состояния между событиями нет.
type Service struct {
	catalog  *model.Catalog
	settings Settings
	metrics  *metrics.Metrics
}

// NewService создаёт сервис поверх неизменяемого каталога.
func NewService(c *model.Catalog, settings Settings, m *metrics.Metrics) *Service {
	if settings.DisplayLimit <= 0 {
		settings.DisplayLimit = DefaultDisplayLimit
	}
	if m == nil {
		m = metrics.New(prometheus.NewRegistry())
	}

	return &Service{
		catalog:  c,
		settings: settings,
		metrics:  m,
	}
}

// HandleText обрабатывает текстовое сообщение и возвращает ответы в порядке отправки.
func (s *Service) HandleText(ctx context.Context, chatID int64, text string) []model.OutboundMessage {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	if strings.HasPrefix(text, commandMarker) {
		return s.HandleCommand(ctx, chatID, text)
	}

	query := strings.ToLower(text)
	res := resolver.Resolve(query, s.catalog)
	s.metrics.QueriesTotal.WithLabelValues(string(res.Match)).Inc()

	replies := []model.OutboundMessage{format.Searching(query)}

	if len(res.Deals) == 0 {
		replies = append(replies, format.NotFound(query))
		return withChat(chatID, replies)
	}

	deals := res.Deals
	if len(deals) > s.settings.DisplayLimit {
		deals = deals[:s.settings.DisplayLimit]
	}
	for _, d := range deals {
		replies = append(replies, format.Deal(d))
	}
	replies = append(replies, format.FollowUp())

	return withChat(chatID, replies)
}

// HandleCommand обрабатывает команды /start и /help. Остальные команды игнорируются.
func (s *Service) HandleCommand(_ context.Context, chatID int64, text string) []model.OutboundMessage {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return nil
	}

	cmd := strings.ToLower(fields[0])
	if i := strings.Index(cmd, "@"); i >= 0 {
		cmd = cmd[:i]
	}

	switch cmd {
	case "/start":
		return withChat(chatID, []model.OutboundMessage{format.Welcome()})
	case "/help":
		return withChat(chatID, []model.OutboundMessage{format.Help(s.settings.BotUsername)})
	default:
		return nil
	}
}

// HandleAction обрабатывает нажатие кнопки по токену корреляции.
func (s *Service) HandleAction(_ context.Context, chatID int64, token string) []model.OutboundMessage {
	d, err := resolver.ResolvePurchase(token, s.catalog)
	switch {
	case err == nil:
		s.metrics.ActionsTotal.WithLabelValues("confirmed").Inc()
		return withChat(chatID, []model.OutboundMessage{format.Confirmation(d)})
	case errors.Is(err, resolver.ErrDealNotFound):
		s.metrics.ActionsTotal.WithLabelValues("unavailable").Inc()
		return withChat(chatID, []model.OutboundMessage{format.Unavailable()})
	default:
		s.metrics.ActionsTotal.WithLabelValues("ignored").Inc()
		return nil
	}
}

func withChat(chatID int64, msgs []model.OutboundMessage) []model.OutboundMessage {
	for i := range msgs {
		msgs[i].ChatID = chatID
	}
	return msgs
}

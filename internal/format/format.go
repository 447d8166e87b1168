// Package format формирует тексты сообщений бота.
//
// Все размеченные сообщения отправляются в режиме HTML, значения из каталога
// и запроса пользователя экранируются.
package format

import (
	"fmt"
	"html"
	"strconv"
	"strings"

	"github.com/mmeshcher/dealhunter-bot/internal/action"
	"github.com/mmeshcher/dealhunter-bot/internal/model"
)

// PurchaseButtonLabel задаёт подпись кнопки получения ссылки на покупку.
const PurchaseButtonLabel = "🔗 Get Purchase Link"

const (
	FollowUpText     = "🤔 <b>Need help choosing?</b> Just ask me questions about any deal, or tell me your specific requirements (budget, features, region, etc.)!"
	UnavailableText  = "Sorry, this deal is no longer available."
	CallbackFailText = "Error processing request"
)

// Deal формирует карточку предложения с кнопкой покупки.
func Deal(d model.Deal) model.OutboundMessage {
	var b strings.Builder

	fmt.Fprintf(&b, "🛒 <b>%s</b>\n", esc(d.Name))
	if d.HasMarkdown() {
		fmt.Fprintf(&b, "💰 <b>Price:</b> %s (<s>%s</s> %s)\n", esc(d.Price), esc(d.OriginalPrice), esc(d.Discount))
	} else {
		fmt.Fprintf(&b, "💰 <b>Price:</b> %s\n", esc(d.Price))
	}
	fmt.Fprintf(&b, "⭐ <b>Rating:</b> %s/5 (%d reviews)\n", Rating(d.Rating), d.Reviews)
	fmt.Fprintf(&b, "🏪 <b>Store:</b> %s\n", esc(d.Store))
	fmt.Fprintf(&b, "🌍 <b>Region:</b> %s\n", esc(d.Region))
	fmt.Fprintf(&b, "🛠️ <b>After-sales:</b> %s\n", esc(d.AfterSales))
	fmt.Fprintf(&b, "🚚 <b>Delivery:</b> %s\n", esc(d.Delivery))
	b.WriteString("\n<i>Select this deal to get your secure purchase link!</i>")

	return model.OutboundMessage{
		Text:      b.String(),
		ParseMode: model.ParseModeHTML,
		Actions: []model.Action{
			{Label: PurchaseButtonLabel, Token: action.PurchaseToken(d.ID)},
		},
	}
}

// Confirmation формирует подтверждение выбора со ссылкой на покупку.
func Confirmation(d model.Deal) model.OutboundMessage {
	var b strings.Builder

	b.WriteString("✅ <b>Perfect Choice!</b>\n\n")
	b.WriteString("Here's your secure purchase link for:\n")
	fmt.Fprintf(&b, "<b>%s</b>\n\n", esc(d.Name))
	fmt.Fprintf(&b, "💰 <b>Final Price:</b> %s\n", esc(d.Price))
	fmt.Fprintf(&b, "⭐ <b>Rating:</b> %s/5 (%d reviews)\n", Rating(d.Rating), d.Reviews)
	fmt.Fprintf(&b, "🏪 <b>Store:</b> %s\n\n", esc(d.Store))
	b.WriteString("🔗 <b>Secure Purchase Link:</b>\n")
	b.WriteString(esc(d.PurchaseURL))
	b.WriteString("\n\n<b>Your transaction happens directly with the store - completely secure!</b> 🛡️")

	return model.OutboundMessage{
		Text:      b.String(),
		ParseMode: model.ParseModeHTML,
	}
}

// Unavailable возвращает ответ на кнопку с устаревшим предложением.
func Unavailable() model.OutboundMessage {
	return model.OutboundMessage{Text: UnavailableText}
}

// Searching возвращает уведомление о начале поиска.
func Searching(query string) model.OutboundMessage {
	return model.OutboundMessage{
		Text:      fmt.Sprintf("🔍 <b>Searching for the best deals on \"%s\"...</b>", esc(query)),
		ParseMode: model.ParseModeHTML,
	}
}

// FollowUp возвращает предложение помочь с выбором после списка предложений.
func FollowUp() model.OutboundMessage {
	return model.OutboundMessage{Text: FollowUpText, ParseMode: model.ParseModeHTML}
}

// NotFound возвращает ответ на случай, когда подходящих предложений нет совсем.
// Сообщение уходит без разметки, запрос вставляется как есть.
func NotFound(query string) model.OutboundMessage {
	return model.OutboundMessage{
		Text: fmt.Sprintf("Sorry, I couldn't find any deals for \"%s\". Try searching for something else like \"laptops\", \"phones\", or \"headphones\"!", query),
	}
}

// Rating печатает рейтинг в кратчайшей десятичной записи: 4.9, 5.
func Rating(r float64) string {
	return strconv.FormatFloat(r, 'f', -1, 64)
}

// esc экранирует текст для режима HTML Bot API: &, <, > и кавычки.
func esc(s string) string {
	return html.EscapeString(s)
}

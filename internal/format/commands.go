package format

import (
	"fmt"

	"github.com/mmeshcher/dealhunter-bot/internal/model"
)

const welcomeText = `👋 <b>Welcome to DEALHUNTER!</b> 🛍️

I'm your AI shopping assistant that finds the best deals worldwide based on:
• 💰 Lowest prices
• ⭐ Best customer reviews
• 🛠️ Excellent after-sales service

<b>Just tell me what you're looking for!</b>

Examples:
• "laptops"
• "smartphones"
• "headphones"
• "tv"
• "gaming console"

I'll find the best deals across global e-commerce stores and provide you with secure purchase links!

<b>Happy hunting!</b> 🎯`

const helpTemplate = `🆘 <b>DEALHUNTER Help</b>

<b>How to use:</b>
1. Simply type what you want to find deals on
2. I'll show you the best options with prices, reviews, and after-sales info
3. Click "Get Purchase Link" to buy securely

<b>Supported searches:</b>
• Electronics (laptops, phones, headphones, tv)
• Home appliances
• Fashion items
• Services (streaming, software)

<b>Features:</b>
✅ Global price comparison
✅ Customer review analysis
✅ After-sales service evaluation
✅ Secure direct purchase links
✅ Regional shopping support

<b>Bot:</b> @%s`

// Welcome возвращает ответ на /start.
func Welcome() model.OutboundMessage {
	return model.OutboundMessage{Text: welcomeText, ParseMode: model.ParseModeHTML}
}

// Help возвращает ответ на /help.
func Help(botUsername string) model.OutboundMessage {
	return model.OutboundMessage{
		Text:      fmt.Sprintf(helpTemplate, esc(botUsername)),
		ParseMode: model.ParseModeHTML,
	}
}

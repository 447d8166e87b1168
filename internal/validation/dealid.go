// Package validation содержит функции валидации входных данных.
package validation

// MaxCallbackDataLen задаёт ограничение Telegram на длину callback_data в байтах.
const MaxCallbackDataLen = 64

// IsValidDealID проверяет, что идентификатор предложения можно передать в кнопке
// вместе с префиксом действия длиной prefixLen.
func IsValidDealID(id string, prefixLen int) bool {
	if id == "" {
		return false
	}

	if prefixLen+len(id) > MaxCallbackDataLen {
		return false
	}

	for i := 0; i < len(id); i++ {
		ch := id[i]
		switch {
		case ch >= 'a' && ch <= 'z':
		case ch >= '0' && ch <= '9':
		case ch == '_' || ch == '-':
		default:
			return false
		}
	}

	return true
}

// Package action описывает токены корреляции интерактивных кнопок.
package action

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnknownAction возвращается для токена с незарегистрированным префиксом.
	ErrUnknownAction = errors.New("unknown action")
	// ErrMalformedToken возвращается, если после префикса нет идентификатора.
	ErrMalformedToken = errors.New("malformed action token")
)

// Kind задаёт тип действия, закодированный в токене.
type Kind int

const (
	KindUnknown Kind = iota
	KindPurchase
)

var prefixes = map[Kind]string{
	KindPurchase: "purchase_",
}

// Prefix возвращает префикс токена для данного типа действия.
func (k Kind) Prefix() string {
	return prefixes[k]
}

func (k Kind) String() string {
	switch k {
	case KindPurchase:
		return "purchase"
	default:
		return "unknown"
	}
}

// Action содержит разобранный токен: тип действия и идентификатор предложения.
type Action struct {
	Kind   Kind
	DealID string
}

// Token собирает токен корреляции вида <prefix><id>.
func Token(kind Kind, dealID string) string {
	return kind.Prefix() + dealID
}

// PurchaseToken собирает токен кнопки покупки.
func PurchaseToken(dealID string) string {
	return Token(KindPurchase, dealID)
}

// Parse разбирает токен. Идентификатором считается весь остаток после префикса.
func Parse(token string) (Action, error) {
	for kind, prefix := range prefixes {
		if !strings.HasPrefix(token, prefix) {
			continue
		}

		id := strings.TrimPrefix(token, prefix)
		if id == "" {
			return Action{}, fmt.Errorf("%w: %q", ErrMalformedToken, token)
		}

		return Action{Kind: kind, DealID: id}, nil
	}

	return Action{}, fmt.Errorf("%w: %q", ErrUnknownAction, token)
}

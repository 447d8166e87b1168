// Package middleware содержит HTTP middleware бота DEALHUNTER.
package middleware

import (
	"crypto/subtle"
	"net/http"
)

// SecretTokenHeader задаёт заголовок, в котором Telegram передаёт секрет вебхука.
const SecretTokenHeader = "X-Telegram-Bot-Api-Secret-Token"

// WebhookSecret проверяет, что запрос к вебхуку пришёл от Telegram.
type WebhookSecret struct {
	secret []byte
}

// NewWebhookSecret создаёт проверку с указанным секретом. Пустой секрет отключает проверку.
func NewWebhookSecret(secret string) *WebhookSecret {
	return &WebhookSecret{
		secret: []byte(secret),
	}
}

// Middleware отклоняет запросы с отсутствующим или неверным секретом.
func (s *WebhookSecret) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if len(s.secret) == 0 {
			next.ServeHTTP(w, r)
			return
		}

		got := []byte(r.Header.Get(SecretTokenHeader))
		if subtle.ConstantTimeCompare(got, s.secret) != 1 {
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r)
	})
}

package middleware

import (
	"crypto/subtle"
	"net/http"
	"os"

	"cryptobroker/pkg/crypto"
)

// DebugAuth защищает служебные endpoints (метрики, debug) базовой
// аутентификацией. Логин берется из DEBUG_USER, пароль - из
// DEBUG_PASSWORD_HASH (bcrypt) или DEBUG_PASSWORD (открытый текст).
// Если пароль не задан - доступ закрыт полностью.
func DebugAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		debugUser := os.Getenv("DEBUG_USER")
		debugHash := os.Getenv("DEBUG_PASSWORD_HASH")
		debugPassword := os.Getenv("DEBUG_PASSWORD")

		if debugHash == "" && debugPassword == "" {
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}

		if debugUser == "" {
			debugUser = "admin"
		}

		user, pass, ok := r.BasicAuth()
		if !ok {
			w.Header().Set("WWW-Authenticate", `Basic realm="Debug endpoints"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		// Сравнение за константное время против timing атак
		userMatch := subtle.ConstantTimeCompare([]byte(user), []byte(debugUser)) == 1

		var passMatch bool
		if debugHash != "" {
			passMatch = crypto.CheckPasswordMatch(pass, debugHash)
		} else {
			passMatch = subtle.ConstantTimeCompare([]byte(pass), []byte(debugPassword)) == 1
		}

		if !userMatch || !passMatch {
			w.Header().Set("WWW-Authenticate", `Basic realm="Debug endpoints"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r)
	})
}

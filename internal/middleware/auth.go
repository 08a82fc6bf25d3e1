package middleware

import (
	"context"
	"net/http"

	"github.com/SergeyBogomolovv/checkout-service/pkg/utils"
)

// Выпуск сессий - внешняя забота: гейтвей аутентифицирует пользователя
// и пробрасывает его id в заголовке. Здесь он только извлекается.
const userIDHeader = "X-User-ID"

type userIDKey struct{}

func Auth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := r.Header.Get(userIDHeader)
		if userID == "" {
			utils.WriteError(w, "unauthenticated", http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), userIDKey{}, userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// UserID возвращает идентификатор текущего пользователя из контекста.
func UserID(ctx context.Context) (string, bool) {
	userID, ok := ctx.Value(userIDKey{}).(string)
	return userID, ok
}

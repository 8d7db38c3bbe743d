package middleware

import (
	"net/http"

	"github.com/go-chi/jwtauth/v5"
	"github.com/sitepass/subscription-whitelist/internal/handler/http/response"
)

func AdminOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, claims, err := jwtauth.FromContext(r.Context())
		if err != nil {
			response.Unauthorized(w, "invalid token")
			return
		}

		admin, ok := claims["is_admin"].(bool)
		if !admin || !ok {
			response.Forbidden(w, "admin privileges required")
			return
		}

		next.ServeHTTP(w, r)
	})
}

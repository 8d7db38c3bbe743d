package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/sitepass/subscription-whitelist/internal/handler/http/response"
)

// CallbackTokenHeader carries the shared secret on platform callbacks.
const CallbackTokenHeader = "X-Callback-Token"

// CallbackToken admits requests whose callback header equals token.
func CallbackToken(token string) func(http.Handler) http.Handler {
	expected := []byte(token)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := []byte(r.Header.Get(CallbackTokenHeader))
			if len(expected) == 0 || subtle.ConstantTimeCompare(got, expected) != 1 {
				response.Unauthorized(w, "invalid callback token")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

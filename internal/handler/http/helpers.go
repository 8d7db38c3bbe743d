package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/sitepass/subscription-whitelist/internal/handler/http/middleware"
	"github.com/sitepass/subscription-whitelist/internal/handler/http/response"
)

const maxBodyBytes = 1 << 20

// decodeJSON reads the request body into dst. An empty body leaves dst
// untouched. It answers 400 itself and returns false on malformed input.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		response.BadRequest(w, "Invalid request body", map[string]string{"body": err.Error()})
		return false
	}
	return true
}

// idParam parses a positive integer URL parameter, answering 400 otherwise.
func idParam(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		response.BadRequest(w, name+" must be a positive integer", nil)
		return 0, false
	}
	return id, true
}

// getIntQueryParam gets an int query parameter with a default value
func getIntQueryParam(r *http.Request, key string, defaultVal int) int {
	val := r.URL.Query().Get(key)
	if val == "" {
		return defaultVal
	}
	intVal, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return intVal
}

func currentUserID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		response.Unauthorized(w, "Unauthorized")
		return 0, false
	}
	return userID, true
}

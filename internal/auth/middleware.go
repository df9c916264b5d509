package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
)

type ctxKey string

const studyIDKey ctxKey = "study_id"

func StudyIDFromContext(ctx context.Context) (string, bool) {
	v := ctx.Value(studyIDKey)
	id, ok := v.(string)
	return id, ok
}

// RequireStudyAccess accepts a bearer token only when it was issued for the
// study named by the URL parameter param.
func RequireStudyAccess(jwtSvc *JWT, param string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := r.Header.Get("Authorization")
			if h == "" || !strings.HasPrefix(h, "Bearer ") {
				unauthorized(w)
				return
			}
			token := strings.TrimPrefix(h, "Bearer ")

			sid, err := jwtSvc.Verify(token)
			if err != nil || sid != chi.URLParam(r, param) {
				unauthorized(w)
				return
			}

			ctx := context.WithValue(r.Context(), studyIDKey, sid)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{"message": "unauthorized"})
}

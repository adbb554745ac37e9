package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/foodcart/internal/domain/session"
	"github.com/xenking/foodcart/internal/notify"
	"github.com/xenking/foodcart/pkg/httpmiddleware"
)

// authenticate attaches the session named by the bearer token. Websocket
// upgrades may pass the token as the "token" query parameter instead, since
// browsers cannot set headers on them. Requests without a token pass through
// anonymously; services reject them where a session is required.
func (h *Handler) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" && notify.IsUpgrade(r) {
			if t := r.URL.Query().Get("token"); t != "" {
				header = "Bearer " + t
			}
		}
		if header == "" {
			next.ServeHTTP(w, r)
			return
		}
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			writeError(r.Context(), w, session.ErrInvalidToken)
			return
		}
		sess, err := h.Tokens.Parse(token)
		if err != nil {
			writeError(r.Context(), w, err)
			return
		}

		ctx := session.NewContext(r.Context(), sess)
		ctx = zctx.With(ctx, zap.Int64("user_id", sess.UserID))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func sessionFrom(r *http.Request) *session.Session {
	sess, _ := session.FromContext(r.Context())
	return sess
}

// callerKey buckets rate limits by user, falling back to the client address.
func callerKey(r *http.Request) string {
	if sess := sessionFrom(r); sess != nil {
		return "user:" + strconv.FormatInt(sess.UserID, 10)
	}
	return "ip:" + httpmiddleware.ClientIP(r)
}

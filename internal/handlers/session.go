package handlers

import (
	"context"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/AbdelrhmanRafat/Funnel-Pages-sub000/internal/i18n"
	"github.com/AbdelrhmanRafat/Funnel-Pages-sub000/internal/platform/requestctx"
	"github.com/AbdelrhmanRafat/Funnel-Pages-sub000/internal/session"
)

type sessionContextKey struct{}

const localeQueryParam = "lang"

// SessionMiddleware loads the visitor session, negotiates the request locale
// and writes the cookie back before the response is committed.
//
// Locale precedence: a supported ?lang= value (remembered in the session),
// then the session locale, then Accept-Language.
func SessionMiddleware(manager *session.Manager, bundle *i18n.Bundle) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess := manager.Load(r)
			lang := negotiateLocale(r, sess, bundle)

			ctx := context.WithValue(r.Context(), sessionContextKey{}, sess)
			ctx = requestctx.WithLocale(ctx, lang)

			sw := &sessionWriter{ResponseWriter: w, manager: manager, sess: sess, logger: requestctx.Logger(ctx)}
			next.ServeHTTP(sw, r.WithContext(ctx))
			sw.persist()
		})
	}
}

func negotiateLocale(r *http.Request, sess *session.Session, bundle *i18n.Bundle) string {
	if bundle == nil {
		return ""
	}
	if q := strings.ToLower(strings.TrimSpace(r.URL.Query().Get(localeQueryParam))); q != "" && bundle.IsSupported(q) {
		sess.SetLocale(q)
		return q
	}
	if lang := sess.Locale(); lang != "" && bundle.IsSupported(lang) {
		return lang
	}
	return bundle.Resolve(r.Header.Get("Accept-Language"))
}

func sessionFromContext(ctx context.Context) *session.Session {
	sess, _ := ctx.Value(sessionContextKey{}).(*session.Session)
	return sess
}

// sessionWriter saves a dirty session on the first header write.
type sessionWriter struct {
	http.ResponseWriter
	manager *session.Manager
	sess    *session.Session
	logger  *zap.Logger
	saved   bool
}

func (w *sessionWriter) persist() {
	if w.saved {
		return
	}
	w.saved = true
	if !w.sess.Dirty() {
		return
	}
	if err := w.manager.Save(w.ResponseWriter, w.sess); err != nil {
		w.logger.Error("session save failed", zap.Error(err))
	}
}

func (w *sessionWriter) WriteHeader(status int) {
	w.persist()
	w.ResponseWriter.WriteHeader(status)
}

func (w *sessionWriter) Write(b []byte) (int, error) {
	w.persist()
	return w.ResponseWriter.Write(b)
}

func (w *sessionWriter) Flush() {
	w.persist()
	_ = http.NewResponseController(w.ResponseWriter).Flush()
}

func (w *sessionWriter) Unwrap() http.ResponseWriter { return w.ResponseWriter }

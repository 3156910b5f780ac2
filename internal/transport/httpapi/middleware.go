package httpapi

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	log "github.com/sirupsen/logrus"
)

// HeaderCustomerID несёт идентификатор вызывающего клиента. Аутентификация
// выполняется перед сервисом, сюда приходит уже проверенное значение.
const HeaderCustomerID = "X-Customer-ID"

type contextKey string

const customerIDKey contextKey = "customer_id"

// Identity кладёт идентификатор клиента в контекст. Без заголовка запрос отклоняется с 401.
func Identity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		customerID := strings.TrimSpace(r.Header.Get(HeaderCustomerID))
		if customerID == "" {
			respondError(w, http.StatusUnauthorized, codeUnauthorized, "missing customer identity")
			return
		}
		ctx := context.WithValue(r.Context(), customerIDKey, customerID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// CustomerIDFromContext возвращает идентификатор, установленный Identity.
func CustomerIDFromContext(ctx context.Context) string {
	if customerID, ok := ctx.Value(customerIDKey).(string); ok {
		return customerID
	}
	return ""
}

// RequestLogger пишет access-лог через logrus.
func RequestLogger(logger *log.Entry) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			started := time.Now()

			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			entry := logger.WithFields(log.Fields{
				"method":      r.Method,
				"path":        r.URL.Path,
				"status":      status,
				"bytes":       ww.BytesWritten(),
				"duration_ms": time.Since(started).Milliseconds(),
				"request_id":  middleware.GetReqID(r.Context()),
			})
			if status >= http.StatusInternalServerError {
				entry.Warn("http request")
				return
			}
			entry.Debug("http request")
		})
	}
}

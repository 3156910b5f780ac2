package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const (
	headerETag            = "ETag"
	headerIfMatch         = "If-Match"
	headerIfModifiedSince = "If-Modified-Since"
	headerLastModified    = "Last-Modified"
	headerLocation        = "Location"
)

var (
	errVersionMissing   = errors.New("If-Match header is required")
	errVersionMalformed = errors.New("If-Match header must carry the order version")
)

// formatVersion кодирует версию заказа в значение ETag. Клиент должен вернуть
// его в If-Match без изменений.
func formatVersion(version int64) string {
	return strconv.FormatInt(version, 10)
}

func setVersionHeader(w http.ResponseWriter, version int64) {
	w.Header().Set(headerETag, formatVersion(version))
}

// parseVersion разбирает If-Match. Допускаются кавычки и слабый префикс W/,
// которые добавляют прокси и браузеры.
func parseVersion(value string) (int64, error) {
	token := strings.TrimSpace(value)
	token = strings.TrimPrefix(token, "W/")
	if len(token) >= 2 && strings.HasPrefix(token, `"`) && strings.HasSuffix(token, `"`) {
		token = token[1 : len(token)-1]
	}
	version, err := strconv.ParseInt(token, 10, 64)
	if err != nil {
		return 0, errVersionMalformed
	}
	return version, nil
}

// optionalVersion читает If-Match для добавления позиции. Нечитаемый токен даёт nil:
// без открытого заказа он не нужен, а с открытым заказом это конфликт.
func optionalVersion(r *http.Request) *int64 {
	value := r.Header.Get(headerIfMatch)
	if value == "" {
		return nil
	}
	version, err := parseVersion(value)
	if err != nil {
		return nil
	}
	return &version
}

// requiredVersion читает обязательный If-Match для удаления позиции и отправки заказа.
func requiredVersion(r *http.Request) (int64, error) {
	value := r.Header.Get(headerIfMatch)
	if strings.TrimSpace(value) == "" {
		return 0, errVersionMissing
	}
	return parseVersion(value)
}

// ifModifiedSince возвращает нулевое время, если заголовок отсутствует или нечитаем.
func ifModifiedSince(r *http.Request) time.Time {
	value := r.Header.Get(headerIfModifiedSince)
	if value == "" {
		return time.Time{}
	}
	since, err := http.ParseTime(value)
	if err != nil {
		return time.Time{}
	}
	return since
}

package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/catalog"
	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// ErrorResponse: тело ответа с ошибкой.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

const (
	codeUnauthorized        = "unauthorized"
	codeInvalidRequest      = "invalid_request"
	codeValidationFailed    = "validation_failed"
	codeVersionRequired     = "version_required"
	codeOrderModified       = "order_modified"
	codeInvalidState        = "invalid_state"
	codeCatalogDown         = "catalog_unavailable"
	codeTimeout             = "timeout"
	codeInternal            = "internal"
	codeCustomerNotFound    = "customer_not_found"
	codeProductNotFound     = "product_not_found"
	codeOrderNotFound       = "order_not_found"
	codeLineItemNotFound    = "line_item_not_found"
	codeInvalidQuantity     = "invalid_quantity"
	codeInvalidAddress      = "invalid_address"
	codeInvalidCustomerInfo = "invalid_customer_info"
)

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.WithError(err).Warn("failed to encode response")
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, ErrorResponse{Error: message, Code: code})
}

// statusFor переводит ошибку сервиса в HTTP-статус. Это единственное место
// соответствия доменных ошибок и кодов ответа.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrOrderModified):
		return http.StatusPreconditionFailed, codeOrderModified
	case errors.Is(err, domain.ErrCustomerNotFound):
		return http.StatusNotFound, codeCustomerNotFound
	case errors.Is(err, domain.ErrProductNotFound):
		return http.StatusNotFound, codeProductNotFound
	case errors.Is(err, domain.ErrOrderNotFound):
		return http.StatusNotFound, codeOrderNotFound
	case errors.Is(err, domain.ErrLineItemNotFound):
		return http.StatusNotFound, codeLineItemNotFound
	case errors.Is(err, domain.ErrInvalidQuantity):
		return http.StatusBadRequest, codeInvalidQuantity
	case errors.Is(err, domain.ErrAddressInvalid):
		return http.StatusBadRequest, codeInvalidAddress
	case errors.Is(err, domain.ErrCustomerInfoInvalid):
		return http.StatusBadRequest, codeInvalidCustomerInfo
	case errors.Is(err, domain.ErrInvalidState):
		return http.StatusConflict, codeInvalidState
	case errors.Is(err, catalog.ErrUnavailable):
		return http.StatusServiceUnavailable, codeCatalogDown
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, codeTimeout
	default:
		return http.StatusInternalServerError, codeInternal
	}
}

func (h *Handler) respondServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := statusFor(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		h.logger.WithError(err).WithFields(log.Fields{
			"method": r.Method,
			"path":   r.URL.Path,
		}).Error("request failed")
		message = "internal error"
	}
	respondError(w, status, code, message)
}

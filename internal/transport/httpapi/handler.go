// Package httpapi отображает протокол открытого заказа на HTTP: версия заказа
// уходит в ETag и возвращается в If-Match, история поддерживает If-Modified-Since.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/service/orders"
)

const (
	defaultRequestTimeout = 10 * time.Second
	maxBodyBytes          = 1 << 20

	customerPath = "/api/v1/customer"
)

// OrderService: операции открытого заказа, которые нужны транспорту.
type OrderService interface {
	AddLineItem(ctx context.Context, customerID string, productID int64, quantity int32, expectedVersion *int64) (domain.Order, error)
	RemoveLineItem(ctx context.Context, customerID string, productID int64, expectedVersion int64) (domain.Order, error)
	Submit(ctx context.Context, customerID string, expectedVersion int64) (domain.Order, error)
	LoadOpenOrder(ctx context.Context, customerID string) (domain.Order, bool, error)
	OrderHistory(ctx context.Context, customerID string, since time.Time) (orders.History, error)
	Timeline(ctx context.Context, customerID, orderID string) ([]domain.TimelineEvent, error)
}

// CustomerService: операции профиля клиента.
type CustomerService interface {
	Load(ctx context.Context, customerID string) (domain.Customer, *domain.Order, error)
	UpdateAddress(ctx context.Context, customerID string, address domain.Address) error
	UpdateInfo(ctx context.Context, customerID string, info domain.CustomerInfo) error
	FormMetadata(ctx context.Context, customerID string) (domain.FormMeta, error)
}

// Config задаёт параметры HTTP-обработчиков.
type Config struct {
	RequestTimeout time.Duration
	Logger         *log.Entry
}

// Handler обслуживает REST API витрины.
type Handler struct {
	orders    OrderService
	customers CustomerService
	validate  *validator.Validate
	timeout   time.Duration
	logger    *log.Entry
}

// NewHandler конструирует обработчики.
func NewHandler(orderSvc OrderService, customerSvc CustomerService, cfg Config) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = log.WithField("component", "http-api")
	}
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	return &Handler{
		orders:    orderSvc,
		customers: customerSvc,
		validate:  newValidator(),
		timeout:   timeout,
		logger:    logger,
	}
}

// Routes собирает chi-роутер API.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger(h.logger))
	r.Use(middleware.Recoverer)

	r.Route(customerPath, func(r chi.Router) {
		r.Use(Identity)

		r.Get("/", h.GetCustomer)
		r.Put("/address", h.UpdateAddress)
		r.Post("/info", h.UpdateInfo)
		r.Get("/type-form", h.GetTypeForm)

		r.Get("/open-order", h.GetOpenOrder)
		r.Post("/open-order", h.SubmitOrder)
		r.Post("/open-order/line-items", h.AddLineItem)
		r.Delete("/open-order/line-items/{productID}", h.RemoveLineItem)

		r.Get("/orders", h.GetOrderHistory)
		r.Get("/orders/{orderID}/timeline", h.GetOrderTimeline)
	})

	return r
}

// GET /api/v1/customer
func (h *Handler) GetCustomer(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	customer, open, err := h.customers.Load(ctx, CustomerIDFromContext(ctx))
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	if open != nil {
		setVersionHeader(w, open.Version)
	}
	respondJSON(w, http.StatusOK, customerFromDomain(customer, open))
}

// PUT /api/v1/customer/address
func (h *Handler) UpdateAddress(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req addressPayload
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.customers.UpdateAddress(ctx, CustomerIDFromContext(ctx), req.toDomain()); err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// POST /api/v1/customer/info
func (h *Handler) UpdateInfo(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req updateInfoRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.customers.UpdateInfo(ctx, CustomerIDFromContext(ctx), req.toDomain()); err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GET /api/v1/customer/type-form
func (h *Handler) GetTypeForm(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	form, err := h.customers.FormMetadata(ctx, CustomerIDFromContext(ctx))
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, form)
}

// GET /api/v1/customer/open-order
func (h *Handler) GetOpenOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	order, found, err := h.orders.LoadOpenOrder(ctx, CustomerIDFromContext(ctx))
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	if !found {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	setVersionHeader(w, order.Version)
	respondJSON(w, http.StatusOK, orderFromDomain(order))
}

// POST /api/v1/customer/open-order/line-items
func (h *Handler) AddLineItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req addLineItemRequest
	if !h.decode(w, r, &req) {
		return
	}

	order, err := h.orders.AddLineItem(ctx, CustomerIDFromContext(ctx), *req.ProductID, *req.Quantity, optionalVersion(r))
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	setVersionHeader(w, order.Version)
	w.Header().Set(headerLocation, customerPath)
	respondJSON(w, http.StatusOK, orderFromDomain(order))
}

// DELETE /api/v1/customer/open-order/line-items/{productID}
func (h *Handler) RemoveLineItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	productID, err := strconv.ParseInt(chi.URLParam(r, "productID"), 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, codeInvalidRequest, "productID must be an integer")
		return
	}
	version, ok := h.versionOrReject(w, r)
	if !ok {
		return
	}

	order, err := h.orders.RemoveLineItem(ctx, CustomerIDFromContext(ctx), productID, version)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	setVersionHeader(w, order.Version)
	respondJSON(w, http.StatusOK, orderFromDomain(order))
}

// POST /api/v1/customer/open-order
func (h *Handler) SubmitOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	version, ok := h.versionOrReject(w, r)
	if !ok {
		return
	}
	if _, err := h.orders.Submit(ctx, CustomerIDFromContext(ctx), version); err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GET /api/v1/customer/orders
func (h *Handler) GetOrderHistory(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	history, err := h.orders.OrderHistory(ctx, CustomerIDFromContext(ctx), ifModifiedSince(r))
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	if !history.LastModified.IsZero() {
		w.Header().Set(headerLastModified, history.LastModified.UTC().Format(http.TimeFormat))
	}
	if history.NotModified {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	resp := make([]orderResponse, 0, len(history.Orders))
	for _, order := range history.Orders {
		resp = append(resp, orderFromDomain(order))
	}
	respondJSON(w, http.StatusOK, resp)
}

// GET /api/v1/customer/orders/{orderID}/timeline
func (h *Handler) GetOrderTimeline(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	events, err := h.orders.Timeline(ctx, CustomerIDFromContext(ctx), chi.URLParam(r, "orderID"))
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	resp := make([]timelineEventResponse, 0, len(events))
	for _, event := range events {
		resp = append(resp, timelineEventResponse{
			Type:     event.Type,
			Reason:   event.Reason,
			Version:  event.Version,
			Occurred: event.Occurred,
		})
	}
	respondJSON(w, http.StatusOK, resp)
}

// versionOrReject достаёт обязательную версию. Отсутствующий или нечитаемый
// токен отвечает 412 до вызова сервиса.
func (h *Handler) versionOrReject(w http.ResponseWriter, r *http.Request) (int64, bool) {
	version, err := requiredVersion(r)
	switch {
	case err == nil:
		return version, true
	case errors.Is(err, errVersionMissing):
		respondError(w, http.StatusPreconditionFailed, codeVersionRequired, err.Error())
	default:
		respondError(w, http.StatusPreconditionFailed, codeOrderModified, err.Error())
	}
	return 0, false
}

// decode читает JSON-тело и прогоняет валидацию тегов. При ошибке ответ уже записан.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, out any) bool {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(out); err != nil {
		respondError(w, http.StatusBadRequest, codeInvalidRequest, "invalid JSON body")
		return false
	}
	if err := h.validate.Struct(out); err != nil {
		respondError(w, http.StatusBadRequest, codeValidationFailed, validationMessage(err))
		return false
	}
	return true
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func validationMessage(err error) string {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return err.Error()
	}
	first := fieldErrs[0]
	return first.Field() + " failed on " + first.Tag()
}

package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/storefront/internal/catalog"
	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/service/orders"
)

type stubOrders struct {
	order   domain.Order
	found   bool
	history orders.History
	err     error

	gotVersion   *int64
	gotRequired  int64
	gotProductID int64
	gotQuantity  int32
	gotSince     time.Time
	calls        int
}

func (s *stubOrders) AddLineItem(_ context.Context, _ string, productID int64, quantity int32, expectedVersion *int64) (domain.Order, error) {
	s.calls++
	s.gotProductID = productID
	s.gotQuantity = quantity
	s.gotVersion = expectedVersion
	return s.order, s.err
}

func (s *stubOrders) RemoveLineItem(_ context.Context, _ string, productID int64, expectedVersion int64) (domain.Order, error) {
	s.calls++
	s.gotProductID = productID
	s.gotRequired = expectedVersion
	return s.order, s.err
}

func (s *stubOrders) Submit(_ context.Context, _ string, expectedVersion int64) (domain.Order, error) {
	s.calls++
	s.gotRequired = expectedVersion
	return s.order, s.err
}

func (s *stubOrders) LoadOpenOrder(context.Context, string) (domain.Order, bool, error) {
	s.calls++
	return s.order, s.found, s.err
}

func (s *stubOrders) OrderHistory(_ context.Context, _ string, since time.Time) (orders.History, error) {
	s.calls++
	s.gotSince = since
	return s.history, s.err
}

func (s *stubOrders) Timeline(context.Context, string, string) ([]domain.TimelineEvent, error) {
	s.calls++
	return []domain.TimelineEvent{{Type: domain.TimelineOrderOpened, Version: 1}}, s.err
}

type stubCustomers struct {
	customer domain.Customer
	open     *domain.Order
	err      error

	gotAddress domain.Address
	gotInfo    domain.CustomerInfo
}

func (s *stubCustomers) Load(context.Context, string) (domain.Customer, *domain.Order, error) {
	return s.customer, s.open, s.err
}

func (s *stubCustomers) UpdateAddress(_ context.Context, _ string, address domain.Address) error {
	s.gotAddress = address
	return s.err
}

func (s *stubCustomers) UpdateInfo(_ context.Context, _ string, info domain.CustomerInfo) error {
	s.gotInfo = info
	return s.err
}

func (s *stubCustomers) FormMetadata(context.Context, string) (domain.FormMeta, error) {
	if s.err != nil {
		return domain.FormMeta{}, s.err
	}
	return s.customer.FormMetadata()
}

func openOrder(version int64) domain.Order {
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	order := domain.NewOpenOrder("order-1", "customer-1", now)
	order.Items = append(order.Items, domain.LineItem{ProductID: 7, Quantity: 2, UnitPriceMinor: 250, AddedAt: now})
	order.Version = version
	return order
}

func newTestRouter(o *stubOrders, c *stubCustomers) http.Handler {
	return NewHandler(o, c, Config{}).Routes()
}

func doRequest(t *testing.T, router http.Handler, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	request := httptest.NewRequest(method, path, strings.NewReader(body))
	request.Header.Set(HeaderCustomerID, "customer-1")
	for key, value := range headers {
		if value == "" {
			request.Header.Del(key)
			continue
		}
		request.Header.Set(key, value)
	}

	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, request)
	return recorder
}

func decodeError(t *testing.T, recorder *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &resp))
	return resp
}

func TestIdentity_MissingHeader(t *testing.T) {
	router := newTestRouter(&stubOrders{}, &stubCustomers{})

	recorder := doRequest(t, router, http.MethodGet, "/api/v1/customer/open-order", "", map[string]string{HeaderCustomerID: ""})

	assert.Equal(t, http.StatusUnauthorized, recorder.Code)
	assert.Equal(t, codeUnauthorized, decodeError(t, recorder).Code)
}

func TestAddLineItem_FirstAddWithoutVersion(t *testing.T) {
	stub := &stubOrders{order: openOrder(1)}
	router := newTestRouter(stub, &stubCustomers{})

	recorder := doRequest(t, router, http.MethodPost, "/api/v1/customer/open-order/line-items",
		`{"productId":7,"quantity":2}`, nil)

	require.Equal(t, http.StatusOK, recorder.Code)
	assert.Equal(t, "1", recorder.Header().Get("ETag"))
	assert.Equal(t, "/api/v1/customer", recorder.Header().Get("Location"))
	assert.Nil(t, stub.gotVersion)
	assert.Equal(t, int64(7), stub.gotProductID)
	assert.Equal(t, int32(2), stub.gotQuantity)

	var resp orderResponse
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &resp))
	assert.Equal(t, int64(500), resp.TotalMinor)
	assert.Equal(t, int64(1), resp.Version)
	require.Len(t, resp.Items, 1)
	assert.Equal(t, int64(500), resp.Items[0].SubtotalMinor)
}

func TestAddLineItem_VersionForms(t *testing.T) {
	cases := map[string]*int64{
		`4`:       ptr(4),
		`"4"`:     ptr(4),
		`W/"4"`:   ptr(4),
		` 4 `:     ptr(4),
		`abc`:     nil,
		`"4`:      nil,
		`4, 5`:    nil,
		`*`:       nil,
		`-1`:      ptr(-1),
		`"12345"`: ptr(12345),
	}

	for header, want := range cases {
		t.Run(header, func(t *testing.T) {
			stub := &stubOrders{order: openOrder(5)}
			router := newTestRouter(stub, &stubCustomers{})

			recorder := doRequest(t, router, http.MethodPost, "/api/v1/customer/open-order/line-items",
				`{"productId":7,"quantity":1}`, map[string]string{"If-Match": header})

			require.Equal(t, http.StatusOK, recorder.Code)
			assert.Equal(t, want, stub.gotVersion)
		})
	}
}

func TestAddLineItem_Validation(t *testing.T) {
	stub := &stubOrders{}
	router := newTestRouter(stub, &stubCustomers{})

	recorder := doRequest(t, router, http.MethodPost, "/api/v1/customer/open-order/line-items", `{"productId":7}`, nil)
	assert.Equal(t, http.StatusBadRequest, recorder.Code)
	resp := decodeError(t, recorder)
	assert.Equal(t, codeValidationFailed, resp.Code)
	assert.Contains(t, resp.Error, "quantity")

	recorder = doRequest(t, router, http.MethodPost, "/api/v1/customer/open-order/line-items", `{"productId":`, nil)
	assert.Equal(t, http.StatusBadRequest, recorder.Code)
	assert.Equal(t, codeInvalidRequest, decodeError(t, recorder).Code)

	assert.Zero(t, stub.calls)
}

func TestAddLineItem_ZeroQuantityReachesService(t *testing.T) {
	stub := &stubOrders{err: domain.ErrInvalidQuantity}
	router := newTestRouter(stub, &stubCustomers{})

	recorder := doRequest(t, router, http.MethodPost, "/api/v1/customer/open-order/line-items",
		`{"productId":7,"quantity":0}`, nil)

	assert.Equal(t, http.StatusBadRequest, recorder.Code)
	assert.Equal(t, codeInvalidQuantity, decodeError(t, recorder).Code)
	assert.Equal(t, 1, stub.calls)
}

func TestAddLineItem_Conflict(t *testing.T) {
	stub := &stubOrders{err: domain.ErrOrderModified}
	router := newTestRouter(stub, &stubCustomers{})

	recorder := doRequest(t, router, http.MethodPost, "/api/v1/customer/open-order/line-items",
		`{"productId":7,"quantity":1}`, map[string]string{"If-Match": "1"})

	assert.Equal(t, http.StatusPreconditionFailed, recorder.Code)
	assert.Equal(t, codeOrderModified, decodeError(t, recorder).Code)
	assert.Empty(t, recorder.Header().Get("ETag"))
}

func TestRemoveLineItem_RequiresVersion(t *testing.T) {
	stub := &stubOrders{order: openOrder(3)}
	router := newTestRouter(stub, &stubCustomers{})

	recorder := doRequest(t, router, http.MethodDelete, "/api/v1/customer/open-order/line-items/7", "", nil)
	assert.Equal(t, http.StatusPreconditionFailed, recorder.Code)
	assert.Equal(t, codeVersionRequired, decodeError(t, recorder).Code)

	recorder = doRequest(t, router, http.MethodDelete, "/api/v1/customer/open-order/line-items/7", "",
		map[string]string{"If-Match": "v2"})
	assert.Equal(t, http.StatusPreconditionFailed, recorder.Code)
	assert.Equal(t, codeOrderModified, decodeError(t, recorder).Code)

	assert.Zero(t, stub.calls)
}

func TestRemoveLineItem_OK(t *testing.T) {
	stub := &stubOrders{order: openOrder(4)}
	router := newTestRouter(stub, &stubCustomers{})

	recorder := doRequest(t, router, http.MethodDelete, "/api/v1/customer/open-order/line-items/7", "",
		map[string]string{"If-Match": `W/"3"`})

	require.Equal(t, http.StatusOK, recorder.Code)
	assert.Equal(t, "4", recorder.Header().Get("ETag"))
	assert.Equal(t, int64(3), stub.gotRequired)
	assert.Equal(t, int64(7), stub.gotProductID)
}

func TestRemoveLineItem_BadProductID(t *testing.T) {
	router := newTestRouter(&stubOrders{}, &stubCustomers{})

	recorder := doRequest(t, router, http.MethodDelete, "/api/v1/customer/open-order/line-items/apple", "",
		map[string]string{"If-Match": "3"})

	assert.Equal(t, http.StatusBadRequest, recorder.Code)
}

func TestSubmitOrder(t *testing.T) {
	stub := &stubOrders{}
	router := newTestRouter(stub, &stubCustomers{})

	recorder := doRequest(t, router, http.MethodPost, "/api/v1/customer/open-order", "", nil)
	assert.Equal(t, http.StatusPreconditionFailed, recorder.Code)
	assert.Zero(t, stub.calls)

	recorder = doRequest(t, router, http.MethodPost, "/api/v1/customer/open-order", "", map[string]string{"If-Match": "9"})
	assert.Equal(t, http.StatusNoContent, recorder.Code)
	assert.Equal(t, int64(9), stub.gotRequired)
}

func TestGetOpenOrder(t *testing.T) {
	stub := &stubOrders{}
	router := newTestRouter(stub, &stubCustomers{})

	recorder := doRequest(t, router, http.MethodGet, "/api/v1/customer/open-order", "", nil)
	assert.Equal(t, http.StatusNoContent, recorder.Code)
	assert.Empty(t, recorder.Header().Get("ETag"))

	stub.order, stub.found = openOrder(6), true
	recorder = doRequest(t, router, http.MethodGet, "/api/v1/customer/open-order", "", nil)
	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.Equal(t, "6", recorder.Header().Get("ETag"))
}

func TestGetCustomer(t *testing.T) {
	open := openOrder(2)
	customers := &stubCustomers{
		customer: domain.Customer{
			ID:   "customer-1",
			Name: "Acme",
			Info: domain.CustomerInfo{
				Kind:     domain.CustomerKindBusiness,
				Business: &domain.BusinessInfo{Description: "anvils", VolumeDiscount: true},
			},
			OpenOrderID: open.ID,
		},
		open: &open,
	}
	router := newTestRouter(&stubOrders{}, customers)

	recorder := doRequest(t, router, http.MethodGet, "/api/v1/customer", "", nil)

	require.Equal(t, http.StatusOK, recorder.Code)
	assert.Equal(t, "2", recorder.Header().Get("ETag"))

	var resp customerResponse
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &resp))
	assert.Equal(t, "business", resp.Type)
	require.NotNil(t, resp.Business)
	assert.True(t, resp.Business.VolumeDiscount)
	assert.Nil(t, resp.Residential)
	require.NotNil(t, resp.OpenOrder)
	assert.Equal(t, open.ID, resp.OpenOrder.ID)

	customers.open = nil
	recorder = doRequest(t, router, http.MethodGet, "/api/v1/customer", "", nil)
	assert.Empty(t, recorder.Header().Get("ETag"))

	customers.err = domain.ErrCustomerNotFound
	recorder = doRequest(t, router, http.MethodGet, "/api/v1/customer", "", nil)
	assert.Equal(t, http.StatusNotFound, recorder.Code)
}

func TestUpdateAddress(t *testing.T) {
	customers := &stubCustomers{}
	router := newTestRouter(&stubOrders{}, customers)

	recorder := doRequest(t, router, http.MethodPut, "/api/v1/customer/address",
		`{"line1":"1 Main St","city":"Springfield","country":"US"}`, nil)
	assert.Equal(t, http.StatusNoContent, recorder.Code)
	assert.Equal(t, "Springfield", customers.gotAddress.City)

	recorder = doRequest(t, router, http.MethodPut, "/api/v1/customer/address", `{"line1":"1 Main St"}`, nil)
	assert.Equal(t, http.StatusBadRequest, recorder.Code)
	assert.Equal(t, codeValidationFailed, decodeError(t, recorder).Code)
}

func TestUpdateInfo(t *testing.T) {
	customers := &stubCustomers{}
	router := newTestRouter(&stubOrders{}, customers)

	recorder := doRequest(t, router, http.MethodPost, "/api/v1/customer/info", `{"type":"residential","householdSize":4}`, nil)
	require.Equal(t, http.StatusNoContent, recorder.Code)
	assert.Equal(t, domain.CustomerKindResidential, customers.gotInfo.Kind)
	require.NotNil(t, customers.gotInfo.Residential)
	assert.Equal(t, int16(4), customers.gotInfo.Residential.HouseholdSize)
	assert.Nil(t, customers.gotInfo.Business)

	recorder = doRequest(t, router, http.MethodPost, "/api/v1/customer/info", `{"type":"residential"}`, nil)
	assert.Equal(t, http.StatusBadRequest, recorder.Code)

	recorder = doRequest(t, router, http.MethodPost, "/api/v1/customer/info", `{"type":"alien"}`, nil)
	assert.Equal(t, http.StatusBadRequest, recorder.Code)

	recorder = doRequest(t, router, http.MethodPost, "/api/v1/customer/info", `{"type":"business","description":"tools","householdSize":3}`, nil)
	require.Equal(t, http.StatusNoContent, recorder.Code)
	assert.NotNil(t, customers.gotInfo.Residential, "mixed payload is passed on for the service to reject")
	assert.ErrorIs(t, customers.gotInfo.Validate(), domain.ErrCustomerInfoInvalid)
}

func TestGetTypeForm(t *testing.T) {
	customers := &stubCustomers{customer: domain.Customer{
		ID:   "customer-1",
		Info: domain.CustomerInfo{Kind: domain.CustomerKindResidential, Residential: &domain.ResidentialInfo{HouseholdSize: 1}},
	}}
	router := newTestRouter(&stubOrders{}, customers)

	recorder := doRequest(t, router, http.MethodGet, "/api/v1/customer/type-form", "", nil)
	require.Equal(t, http.StatusOK, recorder.Code)

	var form domain.FormMeta
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &form))
	assert.Equal(t, "residential", form.Type)
	assert.Len(t, form.Fields, 3)
}

func TestGetOrderHistory(t *testing.T) {
	lastModified := time.Date(2024, 5, 2, 8, 30, 0, 0, time.UTC)
	submitted := openOrder(3)
	submitted.Status = domain.OrderStatusSubmitted
	submitted.SubmittedAt = lastModified

	stub := &stubOrders{history: orders.History{Orders: []domain.Order{submitted}, LastModified: lastModified}}
	router := newTestRouter(stub, &stubCustomers{})

	recorder := doRequest(t, router, http.MethodGet, "/api/v1/customer/orders", "", nil)
	require.Equal(t, http.StatusOK, recorder.Code)
	assert.Equal(t, lastModified.Format(http.TimeFormat), recorder.Header().Get("Last-Modified"))
	assert.True(t, stub.gotSince.IsZero())

	var resp []orderResponse
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &resp))
	require.Len(t, resp, 1)
	require.NotNil(t, resp[0].SubmittedAt)

	stub.history = orders.History{LastModified: lastModified, NotModified: true}
	recorder = doRequest(t, router, http.MethodGet, "/api/v1/customer/orders", "",
		map[string]string{"If-Modified-Since": lastModified.Format(http.TimeFormat)})
	assert.Equal(t, http.StatusNotModified, recorder.Code)
	assert.Empty(t, recorder.Body.String())
	assert.True(t, stub.gotSince.Equal(lastModified))

	recorder = doRequest(t, router, http.MethodGet, "/api/v1/customer/orders", "",
		map[string]string{"If-Modified-Since": "yesterday"})
	assert.True(t, stub.gotSince.IsZero(), "unparsable date is ignored")
}

func TestGetOrderTimeline(t *testing.T) {
	router := newTestRouter(&stubOrders{}, &stubCustomers{})

	recorder := doRequest(t, router, http.MethodGet, "/api/v1/customer/orders/order-1/timeline", "", nil)
	require.Equal(t, http.StatusOK, recorder.Code)

	var resp []timelineEventResponse
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &resp))
	require.Len(t, resp, 1)
	assert.Equal(t, domain.TimelineOrderOpened, resp[0].Type)
}

func TestStatusFor(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{domain.ErrOrderModified, http.StatusPreconditionFailed},
		{fmt.Errorf("save: %w", domain.ErrOrderModified), http.StatusPreconditionFailed},
		{domain.ErrCustomerNotFound, http.StatusNotFound},
		{domain.ErrProductNotFound, http.StatusNotFound},
		{domain.ErrOrderNotFound, http.StatusNotFound},
		{domain.ErrLineItemNotFound, http.StatusNotFound},
		{domain.ErrInvalidQuantity, http.StatusBadRequest},
		{domain.ErrAddressInvalid, http.StatusBadRequest},
		{domain.ErrCustomerInfoInvalid, http.StatusBadRequest},
		{domain.ErrInvalidState, http.StatusConflict},
		{fmt.Errorf("products: %w", catalog.ErrUnavailable), http.StatusServiceUnavailable},
		{context.DeadlineExceeded, http.StatusGatewayTimeout},
		{errors.New("pq: connection refused"), http.StatusInternalServerError},
	}

	for _, tc := range cases {
		status, _ := statusFor(tc.err)
		assert.Equal(t, tc.status, status, tc.err.Error())
	}
}

func TestInternalErrorHidesDetails(t *testing.T) {
	stub := &stubOrders{err: errors.New("dial tcp 10.0.0.5:5432: connection refused")}
	router := newTestRouter(stub, &stubCustomers{})

	recorder := doRequest(t, router, http.MethodGet, "/api/v1/customer/open-order", "", nil)

	assert.Equal(t, http.StatusInternalServerError, recorder.Code)
	resp := decodeError(t, recorder)
	assert.Equal(t, codeInternal, resp.Code)
	assert.NotContains(t, resp.Error, "10.0.0.5")
}

func TestParseVersion(t *testing.T) {
	version, err := parseVersion(`"17"`)
	require.NoError(t, err)
	assert.Equal(t, int64(17), version)

	_, err = parseVersion("")
	assert.ErrorIs(t, err, errVersionMalformed)

	assert.Equal(t, "17", formatVersion(17))
}

func ptr(v int64) *int64 {
	return &v
}

package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	apporder "github.com/orderledger/backend/internal/application/order"
	"github.com/orderledger/backend/internal/application/projection"
	"github.com/orderledger/backend/internal/application/query"
	"github.com/orderledger/backend/internal/infrastructure/persistence"
	"github.com/orderledger/backend/internal/interfaces/http/dto"
)

type testServer struct {
	engine *gin.Engine
	events *persistence.MemoryEventStore
	views  *persistence.MemoryViewStore
}

func setupTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	log := zap.NewNop()

	events := persistence.NewMemoryEventStore()
	views := persistence.NewMemoryViewStore()

	proj := projection.NewEngine(events, views, log, projection.Config{
		BufferSize:  64,
		MaxAttempts: 2,
		RetryDelay:  time.Millisecond,
	})
	events.Subscribe(proj)
	require.NoError(t, proj.Start(context.Background()))
	t.Cleanup(func() { _ = proj.Stop(context.Background()) })

	commands := apporder.NewCommandHandler(events, apporder.NoopPaymentAuthorizer{}, nil, log, apporder.RetryConfig{
		MaxRetries:  3,
		BaseBackoff: time.Millisecond,
		MaxBackoff:  5 * time.Millisecond,
	})
	queries := query.NewOrderQueryService(views, log)

	engine := gin.New()
	api := engine.Group("/api/v1")
	NewOrderHandler(commands, log).RegisterRoutes(api)
	NewQueryHandler(queries, log).RegisterRoutes(api)
	NewAdminHandler(proj, log).RegisterRoutes(api)

	return &testServer{engine: engine, events: events, views: views}
}

func (s *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.engine.ServeHTTP(rec, req)
	return rec
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) dto.Response {
	t.Helper()
	var resp dto.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func createOrderRequest() gin.H {
	return gin.H{
		"customer_id":   uuid.New().String(),
		"customer_name": "Test Customer",
		"items": []gin.H{
			{
				"product_id":   uuid.New().String(),
				"product_name": "Widget",
				"quantity":     2,
				"unit_price":   "9.99",
			},
		},
	}
}

func createOrderID(t *testing.T, s *testServer) string {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/api/v1/orders", createOrderRequest())
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp struct {
		Data dto.CommandAcceptedResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.Data.OrderID
}

func TestCreateOrder(t *testing.T) {
	s := setupTestServer(t)

	rec := s.do(t, http.MethodPost, "/api/v1/orders", createOrderRequest())
	require.Equal(t, http.StatusCreated, rec.Code)

	resp := decodeResponse(t, rec)
	assert.True(t, resp.Success)
}

func TestCreateOrder_MissingItemsRejected(t *testing.T) {
	s := setupTestServer(t)

	rec := s.do(t, http.MethodPost, "/api/v1/orders", gin.H{
		"customer_id":   uuid.New().String(),
		"customer_name": "Test Customer",
		"items":         []gin.H{},
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	resp := decodeResponse(t, rec)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "VALIDATION_ERROR", resp.Error.Code)
}

func TestCreateOrder_FractionalQuantity(t *testing.T) {
	s := setupTestServer(t)

	rec := s.do(t, http.MethodPost, "/api/v1/orders", gin.H{
		"customer_id":   uuid.New().String(),
		"customer_name": "Test Customer",
		"items": []gin.H{
			{
				"product_id":   uuid.New().String(),
				"product_name": "Bulk Grain",
				"quantity":     "2.5",
				"unit_price":   "4.00",
			},
		},
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var created struct {
		Data dto.CommandAcceptedResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))

	assert.Eventually(t, func() bool {
		rec := s.do(t, http.MethodGet, "/api/v1/orders/"+created.Data.OrderID, nil)
		return rec.Code == http.StatusOK
	}, 2*time.Second, 10*time.Millisecond)

	rec = s.do(t, http.MethodGet, "/api/v1/orders/"+created.Data.OrderID, nil)
	var resp struct {
		Data dto.OrderViewResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Data.TotalAmount.Equal(decimal.NewFromInt(10)))
}

func TestCreateOrder_ZeroQuantityRejected(t *testing.T) {
	s := setupTestServer(t)

	rec := s.do(t, http.MethodPost, "/api/v1/orders", gin.H{
		"customer_id":   uuid.New().String(),
		"customer_name": "Test Customer",
		"items": []gin.H{
			{
				"product_id":   uuid.New().String(),
				"product_name": "Widget",
				"quantity":     "0",
				"unit_price":   "9.99",
			},
		},
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	resp := decodeResponse(t, rec)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "VALIDATION_ERROR", resp.Error.Code)
}

func TestConfirmOrder(t *testing.T) {
	s := setupTestServer(t)
	orderID := createOrderID(t, s)

	rec := s.do(t, http.MethodPost, fmt.Sprintf("/api/v1/orders/%s/confirm", orderID), gin.H{})
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestConfirmOrder_UnknownOrderIs404(t *testing.T) {
	s := setupTestServer(t)

	rec := s.do(t, http.MethodPost, fmt.Sprintf("/api/v1/orders/%s/confirm", uuid.New()), gin.H{})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCancelOrder_RequiresReason(t *testing.T) {
	s := setupTestServer(t)
	orderID := createOrderID(t, s)

	rec := s.do(t, http.MethodPost, fmt.Sprintf("/api/v1/orders/%s/cancel", orderID), gin.H{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodPost, fmt.Sprintf("/api/v1/orders/%s/cancel", orderID), gin.H{
		"reason": "customer changed their mind",
	})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAddItem_AfterCancelIs422(t *testing.T) {
	s := setupTestServer(t)
	orderID := createOrderID(t, s)

	rec := s.do(t, http.MethodPost, fmt.Sprintf("/api/v1/orders/%s/cancel", orderID), gin.H{
		"reason": "customer changed their mind",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodPost, fmt.Sprintf("/api/v1/orders/%s/items", orderID), gin.H{
		"item": gin.H{
			"product_id":   uuid.New().String(),
			"product_name": "Gadget",
			"quantity":     1,
			"unit_price":   "4.50",
		},
	})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	resp := decodeResponse(t, rec)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "INVARIANT_VIOLATION", resp.Error.Code)
}

// The read side is eventually consistent: a fresh order appears once the
// projection engine has consumed the append notification.
func TestGetOrder_BecomesVisibleAfterProjection(t *testing.T) {
	s := setupTestServer(t)
	orderID := createOrderID(t, s)

	assert.Eventually(t, func() bool {
		rec := s.do(t, http.MethodGet, "/api/v1/orders/"+orderID, nil)
		return rec.Code == http.StatusOK
	}, 2*time.Second, 10*time.Millisecond)

	rec := s.do(t, http.MethodGet, "/api/v1/orders/"+orderID, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data dto.OrderViewResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, orderID, resp.Data.ID)
	assert.Equal(t, "CREATED", resp.Data.Status)
	assert.Equal(t, 1, resp.Data.ItemCount)
}

func TestGetOrder_UnknownIs404(t *testing.T) {
	s := setupTestServer(t)

	rec := s.do(t, http.MethodGet, "/api/v1/orders/"+uuid.New().String(), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListOrders_FiltersByStatus(t *testing.T) {
	s := setupTestServer(t)
	orderID := createOrderID(t, s)

	rec := s.do(t, http.MethodPost, fmt.Sprintf("/api/v1/orders/%s/confirm", orderID), gin.H{})
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Eventually(t, func() bool {
		rec := s.do(t, http.MethodGet, "/api/v1/orders?status=CONFIRMED", nil)
		if rec.Code != http.StatusOK {
			return false
		}
		var resp struct {
			Data []dto.OrderViewResponse `json:"data"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			return false
		}
		return len(resp.Data) == 1 && resp.Data[0].Status == "CONFIRMED"
	}, 2*time.Second, 10*time.Millisecond)
}

func TestListOrders_InvalidStatusRejected(t *testing.T) {
	s := setupTestServer(t)

	rec := s.do(t, http.MethodGet, "/api/v1/orders?status=SHIPPED", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRebuildProjection(t *testing.T) {
	s := setupTestServer(t)
	orderID := createOrderID(t, s)

	rec := s.do(t, http.MethodPost, fmt.Sprintf("/api/v1/admin/projections/orders/%s/rebuild", orderID), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data dto.OrderViewResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, orderID, resp.Data.ID)
	assert.Equal(t, int64(1), resp.Data.LastAppliedSequence)
}

func TestQuarantineListStartsEmpty(t *testing.T) {
	s := setupTestServer(t)

	rec := s.do(t, http.MethodGet, "/api/v1/admin/projections/quarantine", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decodeResponse(t, rec)
	assert.True(t, resp.Success)
}

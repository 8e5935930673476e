package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/erp/stockledger/internal/domain/shared"
	"github.com/erp/stockledger/internal/interfaces/http/dto"
	"github.com/erp/stockledger/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
	middleware.SetupValidator()
}

func newTestContext(method, body string) (*gin.Context, *httptest.ResponseRecorder) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, "/", nil)
	} else {
		req = httptest.NewRequest(method, "/", strings.NewReader(body))
	}
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	return c, w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) dto.ErrorInfo {
	t.Helper()
	var resp dto.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.False(t, resp.Success)
	require.NotNil(t, resp.Error)
	return *resp.Error
}

func TestGetRequestID(t *testing.T) {
	t.Run("context key wins", func(t *testing.T) {
		c, _ := newTestContext(http.MethodGet, "")
		c.Request.Header.Set(middleware.RequestIDHeader, "from-header")
		c.Set(requestIDKey, "from-context")
		assert.Equal(t, "from-context", getRequestID(c))
	})

	t.Run("falls back to header", func(t *testing.T) {
		c, _ := newTestContext(http.MethodGet, "")
		c.Request.Header.Set(middleware.RequestIDHeader, "from-header")
		assert.Equal(t, "from-header", getRequestID(c))
	})
}

func TestHandleError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"not found", shared.ErrNotFound, http.StatusNotFound, dto.ErrCodeNotFound},
		{"validation", shared.NewDomainError(shared.CodeValidation, "quantity must be positive"), http.StatusBadRequest, dto.ErrCodeValidation},
		{"insufficient stock", shared.ErrInsufficientStock, http.StatusUnprocessableEntity, dto.ErrCodeInsufficientStock},
		{"insufficient available", shared.ErrInsufficientAvailable, http.StatusUnprocessableEntity, dto.ErrCodeInsufficientAvailable},
		{"over receipt", shared.ErrOverReceipt, http.StatusUnprocessableEntity, dto.ErrCodeOverReceipt},
		{"invalid transition", shared.ErrInvalidTransition, http.StatusUnprocessableEntity, dto.ErrCodeInvalidTransition},
		{"concurrent modification", shared.ErrConcurrentModification, http.StatusConflict, dto.ErrCodeConcurrentModification},
		{"lock timeout", shared.ErrLockTimeout, http.StatusConflict, dto.ErrCodeLockTimeout},
		{"duplicate reference", shared.ErrDuplicateReference, http.StatusConflict, dto.ErrCodeDuplicateReference},
		{"wrapped domain error", fmt.Errorf("allocate line: %w", shared.ErrInsufficientAvailable), http.StatusUnprocessableEntity, dto.ErrCodeInsufficientAvailable},
		{"unknown error", errors.New("connection reset by peer"), http.StatusInternalServerError, dto.ErrCodeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, w := newTestContext(http.MethodPost, "")
			c.Set(requestIDKey, "req-42")

			h := &BaseHandler{}
			h.HandleError(c, tt.err)

			assert.Equal(t, tt.wantStatus, w.Code)
			info := decodeError(t, w)
			assert.Equal(t, tt.wantCode, info.Code)
			assert.Equal(t, "req-42", info.RequestID)
			assert.Equal(t, tt.wantCode, c.GetString(middleware.ErrorCodeKey))
		})
	}

	t.Run("unknown error hides the cause", func(t *testing.T) {
		c, w := newTestContext(http.MethodPost, "")
		(&BaseHandler{}).HandleError(c, errors.New("pq: password authentication failed"))

		info := decodeError(t, w)
		assert.Equal(t, "an unexpected error occurred", info.Message)
		assert.Len(t, c.Errors, 1)
	})

	t.Run("nil error writes nothing", func(t *testing.T) {
		c, w := newTestContext(http.MethodPost, "")
		(&BaseHandler{}).HandleError(c, nil)
		assert.False(t, c.Writer.Written())
		assert.Equal(t, 0, w.Body.Len())
	})
}

type allocateBody struct {
	WarehouseID string          `json:"warehouse_id" binding:"required,uuid"`
	Quantity    decimal.Decimal `json:"quantity" binding:"required,gt=0"`
}

func TestBindJSON(t *testing.T) {
	h := &BaseHandler{}

	t.Run("valid body", func(t *testing.T) {
		c, _ := newTestContext(http.MethodPost, `{"warehouse_id":"3f1c2a7e-8a52-4b9e-9d0e-4f7b6d2c1a90","quantity":"2.5"}`)
		var body allocateBody
		require.True(t, h.bindJSON(c, &body))
		assert.True(t, body.Quantity.Equal(decimal.RequireFromString("2.5")))
	})

	t.Run("empty body", func(t *testing.T) {
		c, w := newTestContext(http.MethodPost, "")
		var body allocateBody
		assert.False(t, h.bindJSON(c, &body))
		assert.Equal(t, http.StatusBadRequest, w.Code)
		info := decodeError(t, w)
		assert.Equal(t, dto.ErrCodeInvalidJSON, info.Code)
		assert.Equal(t, "request body is empty", info.Message)
	})

	t.Run("malformed JSON", func(t *testing.T) {
		c, w := newTestContext(http.MethodPost, `{"warehouse_id":`)
		var body allocateBody
		assert.False(t, h.bindJSON(c, &body))
		info := decodeError(t, w)
		assert.Equal(t, dto.ErrCodeInvalidJSON, info.Code)
		assert.True(t, strings.HasPrefix(info.Message, "malformed JSON"))
	})

	t.Run("validation failure", func(t *testing.T) {
		c, w := newTestContext(http.MethodPost, `{"warehouse_id":"north-dock","quantity":"0"}`)
		var body allocateBody
		assert.False(t, h.bindJSON(c, &body))
		assert.Equal(t, http.StatusBadRequest, w.Code)

		info := decodeError(t, w)
		assert.Equal(t, dto.ErrCodeValidation, info.Code)
		fields := make([]string, 0, len(info.Details))
		for _, d := range info.Details {
			fields = append(fields, d.Field)
		}
		assert.ElementsMatch(t, []string{"warehouse_id", "quantity"}, fields)
	})
}

func TestUUIDParam(t *testing.T) {
	h := &BaseHandler{}

	c, w := newTestContext(http.MethodGet, "")
	c.Params = gin.Params{{Key: "id", Value: "not-a-uuid"}}
	_, ok := h.uuidParam(c, "id")
	assert.False(t, ok)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid id format", decodeError(t, w).Message)

	c, _ = newTestContext(http.MethodGet, "")
	c.Params = gin.Params{{Key: "id", Value: "3f1c2a7e-8a52-4b9e-9d0e-4f7b6d2c1a90"}}
	id, ok := h.uuidParam(c, "id")
	assert.True(t, ok)
	assert.Equal(t, "3f1c2a7e-8a52-4b9e-9d0e-4f7b6d2c1a90", id.String())
}

func TestSuccessWithMeta_DefaultsPagination(t *testing.T) {
	c, w := newTestContext(http.MethodGet, "")
	(&BaseHandler{}).SuccessWithMeta(c, []string{}, 45, 0, 0)

	var resp dto.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotNil(t, resp.Meta)
	assert.Equal(t, 1, resp.Meta.Page)
	assert.Equal(t, 20, resp.Meta.PageSize)
	assert.Equal(t, 3, resp.Meta.TotalPages)
}

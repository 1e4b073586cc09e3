package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MdanzDev/nickstore/internal/fulfillment"
	"github.com/MdanzDev/nickstore/internal/storage"
	"github.com/MdanzDev/nickstore/internal/store"
)

type failingChannel struct{}

func (failingChannel) Deliver(context.Context, fulfillment.Payload) error {
	return errors.New("channel down")
}

func setup(t *testing.T, opts ...store.Option) (*gin.Engine, *store.Manager) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	log, _ := test.NewNullLogger()

	opts = append([]store.Option{
		store.WithLogger(log),
		store.WithLocation(time.UTC),
	}, opts...)
	m := store.New(storage.NewMemory(), opts...)
	require.NoError(t, m.Load(context.Background()))
	t.Cleanup(func() { _ = m.Close(context.Background()) })

	wa := fulfillment.NewWhatsApp("60197661697", time.UTC, log)
	r := gin.New()
	RegisterStoreRoutes(r, HandlerConfig{Manager: m, WhatsApp: wa})
	return r, m
}

func do(t *testing.T, r *gin.Engine, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader([]byte(body)))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var out map[string]any
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	}
	return w, out
}

const gems = `{"game":"X","gameSlug":"x","denom":"100 Gems","price":10,"userId":"111","icon":"/x.png","productId":"x-100"}`
const diamonds = `{"game":"Y","gameSlug":"mobile-legends","denom":"86 Diamonds","price":5.5,"userId":"222","zoneId":"3333","icon":"/y.png","productId":"ml-86"}`

func TestCartRoutes(t *testing.T) {
	r, m := setup(t)

	w, body := do(t, r, http.MethodPost, "/cart/items", gems)
	require.Equal(t, http.StatusCreated, w.Code)
	first := int64(body["id"].(float64))

	w, _ = do(t, r, http.MethodPost, "/cart/items", diamonds)
	require.Equal(t, http.StatusCreated, w.Code)

	w, body = do(t, r, http.MethodGet, "/cart", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(2), body["count"])
	assert.Equal(t, 15.5, body["total"])

	w, _ = do(t, r, http.MethodDelete, "/cart/items/"+strconv.FormatInt(first, 10), "")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, 1, m.CartCount())

	// unknown id is a no-op
	w, _ = do(t, r, http.MethodDelete, "/cart/items/42", "")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, 1, m.CartCount())

	w, _ = do(t, r, http.MethodDelete, "/cart/items/abc", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = do(t, r, http.MethodDelete, "/cart", "")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Zero(t, m.CartCount())
}

func TestAddToCart_Validation(t *testing.T) {
	r, m := setup(t)

	w, body := do(t, r, http.MethodPost, "/cart/items", `{"game":"Y","gameSlug":"mobile-legends","denom":"86","price":5,"userId":"222","productId":"ml-86"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "validation_failed", body["error"])
	assert.Contains(t, body["fields"], "ZoneID")

	w, body = do(t, r, http.MethodPost, "/cart/items", `{"game":`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid_request_body", body["error"])

	assert.Zero(t, m.CartCount())
}

func TestCheckout(t *testing.T) {
	r, m := setup(t)

	w, body := do(t, r, http.MethodPost, "/checkout", "")
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "cart_empty", body["error"])

	do(t, r, http.MethodPost, "/cart/items", gems)
	do(t, r, http.MethodPost, "/cart/items", diamonds)

	w, body = do(t, r, http.MethodPost, "/checkout", "")
	require.Equal(t, http.StatusCreated, w.Code)
	orderID := body["order_id"].(string)
	assert.NotEmpty(t, orderID)
	assert.Equal(t, 15.5, body["total"])
	assert.Equal(t, "pending", body["status"])
	assert.True(t, strings.HasPrefix(body["link"].(string), "https://wa.me/60197661697?text="))
	assert.NotContains(t, body, "handoff_error")
	assert.Equal(t, "/history/"+orderID, w.Header().Get("Location"))
	assert.Zero(t, m.CartCount())

	w, body = do(t, r, http.MethodGet, "/history/"+orderID, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, orderID, body["id"])
	assert.Len(t, body["items"], 2)

	w, _ = do(t, r, http.MethodGet, "/history/missing", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, body = do(t, r, http.MethodGet, "/history", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, body["orders"], 1)

	w, _ = do(t, r, http.MethodDelete, "/history", "")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Empty(t, m.History())
}

func TestCheckout_HandoffFailureStillCreated(t *testing.T) {
	r, m := setup(t, store.WithFulfiller(fulfillment.Handoff{Channel: failingChannel{}}))

	do(t, r, http.MethodPost, "/cart/items", gems)
	w, body := do(t, r, http.MethodPost, "/checkout", "")
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Contains(t, body["handoff_error"], "channel down")
	assert.Len(t, m.History(), 1)
	assert.Zero(t, m.CartCount())
}

func TestThemeRoutes(t *testing.T) {
	r, m := setup(t)

	w, body := do(t, r, http.MethodGet, "/theme", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "dark", body["theme"])

	w, body = do(t, r, http.MethodPut, "/theme", `{"theme":"light"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "light", body["theme"])
	assert.Equal(t, store.ThemeLight, m.Theme())

	w, _ = do(t, r, http.MethodPut, "/theme", `{"theme":"sepia"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, store.ThemeLight, m.Theme())
}

func TestStatus(t *testing.T) {
	r, _ := setup(t)

	w, body := do(t, r, http.MethodGet, "/status", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, body["loaded"])
	assert.Equal(t, false, body["degraded"])
	assert.NotContains(t, body, "persist_error")
}

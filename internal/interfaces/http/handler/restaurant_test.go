package handler

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uniorder/backend/internal/domain/ordering"
	"github.com/uniorder/backend/internal/infrastructure/settings"
)

type recordingGauge struct {
	values []bool
}

func (g *recordingGauge) RestaurantOpen(open bool) {
	g.values = append(g.values, open)
}

func setupRestaurantRouter(store ordering.SettingsStore, gauge RestaurantGauge) *gin.Engine {
	router := gin.New()
	h := NewRestaurantHandler(store, gauge)
	router.GET("/restaurant/status", h.GetStatus)
	router.PATCH("/restaurant/status", h.SetStatus)
	router.PATCH("/restaurant/auto-accept", h.SetAutoAccept)
	return router
}

func decodeSettings(t *testing.T, body []byte) ordering.RestaurantSettings {
	t.Helper()
	var resp struct {
		Data ordering.RestaurantSettings `json:"data"`
	}
	require.NoError(t, json.Unmarshal(body, &resp))
	return resp.Data
}

func TestRestaurantHandler(t *testing.T) {
	store := settings.NewMemoryStore(ordering.DefaultRestaurantSettings(), nil)
	gauge := &recordingGauge{}
	router := setupRestaurantRouter(store, gauge)

	w := doJSON(router, http.MethodGet, "/restaurant/status", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, ordering.DefaultRestaurantSettings(), decodeSettings(t, w.Body.Bytes()))

	w = doJSON(router, http.MethodPatch, "/restaurant/status", map[string]any{"is_open": false})
	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, decodeSettings(t, w.Body.Bytes()).IsOpen)
	assert.Equal(t, []bool{false}, gauge.values)

	w = doJSON(router, http.MethodPatch, "/restaurant/auto-accept", map[string]any{"auto_accept": true})
	require.Equal(t, http.StatusOK, w.Code)
	got := decodeSettings(t, w.Body.Bytes())
	assert.True(t, got.AutoAccept)
	assert.False(t, got.IsOpen)
}

func TestRestaurantHandler_RequiresField(t *testing.T) {
	store := settings.NewMemoryStore(ordering.DefaultRestaurantSettings(), nil)
	router := setupRestaurantRouter(store, nil)

	w := doJSON(router, http.MethodPatch, "/restaurant/status", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(router, http.MethodPatch, "/restaurant/auto-accept", map[string]any{"is_open": true})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	assert.True(t, store.Settings(t.Context()).IsOpen)
}

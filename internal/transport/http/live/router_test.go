package livehttp

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"algotrade/internal/engine"
	"algotrade/internal/gateway"
	"algotrade/internal/gateway/paper"
	"algotrade/internal/types"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubHistory struct {
	orders []types.Order
	err    error
}

func (h stubHistory) RecentOrders(ctx context.Context, ticker string, limit int) ([]types.Order, error) {
	return h.orders, h.err
}

func (h stubHistory) RecentTrades(ctx context.Context, ticker string, limit int) ([]types.Trade, error) {
	return nil, h.err
}

func newTestServer(t *testing.T, history History) (*Server, *engine.Engine, *paper.Gateway) {
	t.Helper()
	g := paper.New(paper.Config{
		Account:        "acc",
		InitialBalance: 1000,
		Lots:           []types.PositionRecord{{Ticker: "X", Direction: types.DirectionBuy, Volume: 4, Price: 10}},
	})
	eng, err := engine.New(engine.Config{Gateway: g, Login: gateway.LoginParams{Account: "acc", Tickers: []string{"X"}}})
	require.NoError(t, err)
	t.Cleanup(func() { _ = eng.Close() })
	require.NoError(t, eng.Login(context.Background()))
	g.PublishTick(types.Tick{Ticker: "X", Time: time.Now(), LastPrice: 11})
	settle(t, g, eng)

	srv, err := NewServer(ServerConfig{Engine: eng, History: history})
	require.NoError(t, err)
	return srv, eng, g
}

func settle(t *testing.T, g *paper.Gateway, eng *engine.Engine) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, g.Flush(ctx))
	require.NoError(t, eng.Flush(ctx))
}

func do(t *testing.T, srv *Server, method, path string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	var body map[string]any
	_ = json.Unmarshal(rec.Body.Bytes(), &body)
	return rec, body
}

func TestNewServerRequiresEngine(t *testing.T) {
	_, err := NewServer(ServerConfig{})
	assert.Error(t, err)
}

func TestHealthAndQueries(t *testing.T) {
	srv, _, _ := newTestServer(t, nil)
	assert.Equal(t, ":9991", srv.Addr())

	rec, body := do(t, srv, http.MethodGet, "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["position_synced"])

	rec, body = do(t, srv, http.MethodGet, "/api/positions")
	require.Equal(t, http.StatusOK, rec.Code)
	positions := body["positions"].([]any)
	require.Len(t, positions, 1)
	assert.Equal(t, "10.0000", positions[0].(map[string]any)["avg_price"])

	rec, body = do(t, srv, http.MethodGet, "/api/account")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "acc", body["account_id"])

	rec, body = do(t, srv, http.MethodGet, "/api/ticks/X?limit=5")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, body["ticks"], 1)

	rec, _ = do(t, srv, http.MethodGet, "/api/ticks/NOPE")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, body = do(t, srv, http.MethodGet, "/api/candles/X?sma=50")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, body["candles"], 1)
	assert.NotContains(t, body, "sma")

	rec, body = do(t, srv, http.MethodGet, "/api/stats")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, body, "dispatched")
}

func TestOrdersAndCancel(t *testing.T) {
	srv, eng, g := newTestServer(t, nil)
	id, err := eng.BuyOpen("X", 1, types.OrderTypeLimit, 5)
	require.NoError(t, err)
	settle(t, g, eng)

	rec, body := do(t, srv, http.MethodGet, "/api/orders?open=true")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 1, body["count"])

	rec, body = do(t, srv, http.MethodGet, "/api/orders/"+id)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, string(types.OrderStatusAccepted), body["status"])

	rec, _ = do(t, srv, http.MethodGet, "/api/orders/missing")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = do(t, srv, http.MethodPost, "/api/orders/"+id+"/cancel")
	assert.Equal(t, http.StatusAccepted, rec.Code)
	settle(t, g, eng)

	rec, _ = do(t, srv, http.MethodPost, "/api/orders/"+id+"/cancel")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, body = do(t, srv, http.MethodPost, "/api/orders/cancel_all?ticker=X")
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.EqualValues(t, 0, body["requested"])
}

func TestHistoryEndpoints(t *testing.T) {
	srv, _, _ := newTestServer(t, nil)
	rec, _ := do(t, srv, http.MethodGet, "/api/history/orders")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	srv, _, _ = newTestServer(t, stubHistory{orders: []types.Order{{ID: "h1"}}})
	rec, body := do(t, srv, http.MethodGet, "/api/history/orders?ticker=X")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, body["orders"], 1)

	srv, _, _ = newTestServer(t, stubHistory{err: errors.New("disk")})
	rec, _ = do(t, srv, http.MethodGet, "/api/history/trades")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestStreamPushesTicks(t *testing.T) {
	g := paper.New(paper.Config{Account: "acc"})
	eng, err := engine.New(engine.Config{Gateway: g, Login: gateway.LoginParams{Account: "acc", Tickers: []string{"X"}}})
	require.NoError(t, err)
	t.Cleanup(func() { _ = eng.Close() })
	require.NoError(t, eng.Login(context.Background()))

	stream := NewBroadcaster()
	require.NoError(t, eng.MountStrategy("X", stream))
	srv, err := NewServer(ServerConfig{Engine: eng, Stream: stream})
	require.NoError(t, err)

	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()
	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/api/stream", nil)
	require.NoError(t, err)
	defer conn.Close()
	require.Eventually(t, func() bool { return stream.Subscribers() == 1 }, 2*time.Second, 5*time.Millisecond)

	g.PublishTick(types.Tick{Ticker: "X", Time: time.Now(), LastPrice: 42})
	settle(t, g, eng)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var msg struct {
		Type string     `json:"type"`
		Data types.Tick `json:"data"`
	}
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "tick", msg.Type)
	assert.Equal(t, 42.0, msg.Data.LastPrice)
}

func TestBroadcasterDropsWhenSubscriberLags(t *testing.T) {
	b := NewBroadcaster()
	ch, unsub := b.Subscribe()
	for i := 0; i < streamBuffer+10; i++ {
		b.OnTick(types.Tick{Ticker: "X"})
	}
	assert.Len(t, ch, streamBuffer)
	assert.Equal(t, uint64(10), b.Dropped())
	unsub()
	unsub()
	assert.Equal(t, 0, b.Subscribers())
}

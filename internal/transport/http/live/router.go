package livehttp

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"algotrade/internal/engine"
	"algotrade/internal/market"

	"github.com/gin-gonic/gin"
)

const (
	defaultLimit = 100
	maxLimit     = 1000
)

// Router 暴露引擎查询与撤单接口。
type Router struct {
	Engine  Engine
	History History
	Stream  *Broadcaster
}

func NewRouter(eng Engine, history History, stream *Broadcaster) *Router {
	return &Router{Engine: eng, History: history, Stream: stream}
}

// Register 将路由挂载到给定分组下。
func (r *Router) Register(group *gin.RouterGroup) {
	if group == nil {
		return
	}
	group.GET("/orders", r.handleOrders)
	group.GET("/orders/:id", r.handleOrderByID)
	group.POST("/orders/:id/cancel", r.handleCancel)
	group.POST("/orders/cancel_all", r.handleCancelAll)
	group.GET("/positions", r.handlePositions)
	group.GET("/account", r.handleAccount)
	group.GET("/ticks/:ticker", r.handleTicks)
	group.GET("/candles/:ticker", r.handleCandles)
	group.GET("/stats", r.handleStats)
	group.GET("/history/orders", r.handleHistoryOrders)
	group.GET("/history/trades", r.handleHistoryTrades)
	if r.Stream != nil {
		group.GET("/stream", r.handleStream)
	}
}

func queryLimit(c *gin.Context) int {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultLimit)))
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	return limit
}

func (r *Router) handleOrders(c *gin.Context) {
	ticker := strings.TrimSpace(c.Query("ticker"))
	orders := r.Engine.Orders(ticker)
	if c.Query("open") == "true" {
		open := orders[:0]
		for _, o := range orders {
			if o.IsOpen() {
				open = append(open, o)
			}
		}
		orders = open
	}
	c.JSON(http.StatusOK, gin.H{"orders": orders, "count": len(orders)})
}

func (r *Router) handleOrderByID(c *gin.Context) {
	o, ok := r.Engine.Order(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "订单不存在"})
		return
	}
	c.JSON(http.StatusOK, o)
}

func (r *Router) handleCancel(c *gin.Context) {
	id := c.Param("id")
	err := r.Engine.CancelOrder(id)
	switch {
	case err == nil:
		c.JSON(http.StatusAccepted, gin.H{"order_id": id, "status": "cancel_requested"})
	case errors.Is(err, engine.ErrUnknownOrder):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, engine.ErrClosed):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
	}
}

func (r *Router) handleCancelAll(c *gin.Context) {
	ticker := strings.TrimSpace(c.Query("ticker"))
	n := r.Engine.CancelAll(ticker)
	c.JSON(http.StatusAccepted, gin.H{"ticker": ticker, "requested": n})
}

func (r *Router) handlePositions(c *gin.Context) {
	positions := r.Engine.Positions()
	out := make([]positionView, 0, len(positions))
	for _, p := range positions {
		out = append(out, positionView{Position: p, Avg: p.AvgPrice().StringFixed(4)})
	}
	c.JSON(http.StatusOK, gin.H{"positions": out, "synced": r.Engine.IsPositionSynced()})
}

func (r *Router) handleAccount(c *gin.Context) {
	acct, ok := r.Engine.Account()
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "账户尚未同步"})
		return
	}
	c.JSON(http.StatusOK, acct)
}

func (r *Router) handleTicks(c *gin.Context) {
	ticker := c.Param("ticker")
	db := r.Engine.TickDB(ticker)
	if db == nil || db.Total() == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "无行情数据"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ticker": ticker, "total": db.Total(), "ticks": db.Last(queryLimit(c))})
}

// handleCandles 返回 K 线，可选 sma=N / rsi=N 附带最新指标值。
func (r *Router) handleCandles(c *gin.Context) {
	ticker := c.Param("ticker")
	if db := r.Engine.TickDB(ticker); db == nil || db.Total() == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "无行情数据"})
		return
	}
	chart, err := r.Engine.LoadCandleChart(ticker)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	view := candleView{Ticker: ticker, Period: chart.Period().String(), Candles: chart.Last(queryLimit(c))}
	if n, _ := strconv.Atoi(c.Query("sma")); n > 0 {
		view.SMA = latestOf(chart.SMA(n))
	}
	if n, _ := strconv.Atoi(c.Query("rsi")); n > 0 {
		view.RSI = latestOf(chart.RSI(n))
	}
	c.JSON(http.StatusOK, view)
}

func latestOf(series []float64, err error) *float64 {
	if err != nil {
		return nil
	}
	v, ok := market.Latest(series)
	if !ok {
		return nil
	}
	return &v
}

func (r *Router) handleStats(c *gin.Context) {
	c.JSON(http.StatusOK, r.Engine.Stats())
}

func (r *Router) handleHistoryOrders(c *gin.Context) {
	if r.History == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "历史记录未启用"})
		return
	}
	orders, err := r.History.RecentOrders(c.Request.Context(), c.Query("ticker"), queryLimit(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": orders})
}

func (r *Router) handleHistoryTrades(c *gin.Context) {
	if r.History == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "历史记录未启用"})
		return
	}
	trades, err := r.History.RecentTrades(c.Request.Context(), c.Query("ticker"), queryLimit(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"trades": trades})
}

package livehttp

import (
	"net/http"
	"sync"
	"time"

	"algotrade/internal/logger"
	"algotrade/internal/strategy"
	"algotrade/internal/types"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const (
	streamBuffer       = 256
	streamWriteTimeout = 5 * time.Second
)

// StreamMessage 是推送给 websocket 客户端的一帧。
type StreamMessage struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// Broadcaster 以策略身份挂载到引擎，把行情、订单和成交转发给所有 websocket 订阅者。
// 订阅者跟不上时丢弃消息，绝不阻塞事件分发。
type Broadcaster struct {
	strategy.Base

	mu      sync.Mutex
	subs    map[chan StreamMessage]struct{}
	dropped uint64
}

func NewBroadcaster() *Broadcaster {
	return &Broadcaster{subs: make(map[chan StreamMessage]struct{})}
}

func (b *Broadcaster) Name() string { return "http-stream" }

func (b *Broadcaster) OnTick(t types.Tick)    { b.publish(StreamMessage{Type: "tick", Data: t}) }
func (b *Broadcaster) OnOrder(o types.Order)  { b.publish(StreamMessage{Type: "order", Data: o}) }
func (b *Broadcaster) OnTrade(tr types.Trade) { b.publish(StreamMessage{Type: "trade", Data: tr}) }

func (b *Broadcaster) publish(msg StreamMessage) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subs {
		select {
		case ch <- msg:
		default:
			b.dropped++
		}
	}
}

// Subscribe 返回消息通道与取消函数。
func (b *Broadcaster) Subscribe() (<-chan StreamMessage, func()) {
	ch := make(chan StreamMessage, streamBuffer)
	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()
	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, ch)
			b.mu.Unlock()
		})
	}
}

// Dropped 返回因订阅者缓冲已满而丢弃的消息数。
func (b *Broadcaster) Dropped() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dropped
}

func (b *Broadcaster) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

func (r *Router) handleStream(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Warnf("ws upgrade error: %v", err)
		return
	}
	defer conn.Close()

	stream, unsub := r.Stream.Subscribe()
	defer unsub()

	// 读循环只用于感知客户端断开
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-closed:
			return
		case <-c.Request.Context().Done():
			return
		case msg := <-stream:
			_ = conn.SetWriteDeadline(time.Now().Add(streamWriteTimeout))
			if err := conn.WriteJSON(msg); err != nil {
				logger.Debugf("ws write error: %v", err)
				return
			}
		}
	}
}

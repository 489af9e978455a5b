package risk

import (
	"sync"

	"algotrade/internal/logger"

	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"
)

// Limits are the static rules of LimitManager. Zero disables a rule.
type Limits struct {
	KillSwitch        bool
	MaxOrderVolume    int
	MaxPositionVolume int
	MaxOpenOrders     int
	MaxOrderNotional  float64
	OrdersPerSecond   float64
	OrderBurst        int
}

// LimitManager applies Limits in a fixed order. Volume rules shrink the order where
// possible; the other rules reject. Limits can be swapped at runtime.
type LimitManager struct {
	mu      sync.Mutex
	limits  Limits
	limiter *rate.Limiter
}

func NewLimitManager(l Limits) *LimitManager {
	m := &LimitManager{}
	m.UpdateLimits(l)
	return m
}

func (m *LimitManager) UpdateLimits(l Limits) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.limits = l
	if l.OrdersPerSecond <= 0 {
		m.limiter = nil
		return
	}
	burst := l.OrderBurst
	if burst <= 0 {
		burst = 1
	}
	if m.limiter == nil {
		m.limiter = rate.NewLimiter(rate.Limit(l.OrdersPerSecond), burst)
	} else {
		m.limiter.SetLimit(rate.Limit(l.OrdersPerSecond))
		m.limiter.SetBurst(burst)
	}
	logger.Infof("risk: limits updated %+v", l)
}

func (m *LimitManager) Limits() Limits {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.limits
}

func (m *LimitManager) Check(p Proposal, view View) Decision {
	m.mu.Lock()
	defer m.mu.Unlock()
	l := m.limits

	if l.KillSwitch {
		return Reject(ReasonKillSwitch, "trading halted")
	}
	if l.MaxOpenOrders > 0 && view.OpenOrderCount(p.Ticker) >= l.MaxOpenOrders {
		return Reject(ReasonOpenOrders, "%s already has %d open orders", p.Ticker, l.MaxOpenOrders)
	}

	vol := p.Volume
	reason := ReasonNone
	if p.Offset.IsClose() {
		held := view.Position(p.Ticker, p.Direction.Opposite()).Volume
		if held <= 0 {
			return Reject(ReasonNothingToClose, "no %s position on %s", p.Direction.Opposite(), p.Ticker)
		}
		if vol > held {
			vol, reason = held, ReasonNothingToClose
		}
	}
	if l.MaxOrderVolume > 0 && vol > l.MaxOrderVolume {
		vol, reason = l.MaxOrderVolume, ReasonMaxVolume
	}
	if !p.Offset.IsClose() && l.MaxPositionVolume > 0 {
		room := l.MaxPositionVolume - view.Position(p.Ticker, p.Direction).Volume
		if room <= 0 {
			return Reject(ReasonPositionLimit, "%s %s position at limit %d", p.Ticker, p.Direction, l.MaxPositionVolume)
		}
		if vol > room {
			vol, reason = room, ReasonPositionLimit
		}
	}
	if l.MaxOrderNotional > 0 && p.Type.NeedsPrice() && p.Price > 0 {
		price := decimal.NewFromFloat(p.Price)
		maxNotional := decimal.NewFromFloat(l.MaxOrderNotional)
		if price.Mul(decimal.NewFromInt(int64(vol))).GreaterThan(maxNotional) {
			fit := maxNotional.Div(price).Floor().IntPart()
			if fit <= 0 {
				return Reject(ReasonMaxNotional, "one lot at %s exceeds notional %s", price, maxNotional)
			}
			vol, reason = int(fit), ReasonMaxNotional
		}
	}
	if m.limiter != nil && !m.limiter.Allow() {
		return Reject(ReasonRateLimit, "more than %g orders/s", l.OrdersPerSecond)
	}
	if vol != p.Volume {
		return Adjust(reason, vol, p.Price)
	}
	return Approve()
}

var _ Manager = (*LimitManager)(nil)

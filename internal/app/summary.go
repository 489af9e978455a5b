package app

import (
	"fmt"
	"strings"

	"algotrade/internal/config"
	"algotrade/internal/logger"
)

// StartupSummary 启动时打印一次的配置摘要。
type StartupSummary struct {
	Env        string
	Gateway    string
	Account    string
	Tickers    []string
	Risk       config.RiskConfig
	Candle     string
	Resync     string
	HTTPAddr   string
	StorePath  string
	Strategies []string
}

func newStartupSummary(cfg *config.Config, strategies []string) *StartupSummary {
	resync := "off"
	if d := cfg.Engine.ResyncInterval(); d > 0 {
		resync = d.String()
	}
	return &StartupSummary{
		Env:        cfg.App.Env,
		Gateway:    cfg.Gateway.Kind,
		Account:    cfg.Gateway.Account,
		Tickers:    cfg.Gateway.Tickers,
		Risk:       cfg.Risk,
		Candle:     cfg.Engine.CandleInterval,
		Resync:     resync,
		HTTPAddr:   cfg.App.HTTPAddr,
		StorePath:  cfg.Store.Path,
		Strategies: strategies,
	}
}

func (s *StartupSummary) String() string {
	var b strings.Builder
	line := strings.Repeat("=", 60)
	b.WriteString(line + "\n")
	b.WriteString("启动配置摘要 (STARTUP SUMMARY)\n")
	b.WriteString(line + "\n")
	fmt.Fprintf(&b, "[网关] %s 账户=%s 环境=%s\n", s.Gateway, s.Account, s.Env)
	fmt.Fprintf(&b, "  合约: %s\n", formatList(s.Tickers))
	fmt.Fprintf(&b, "  K线周期: %s  定时对账: %s\n", s.Candle, s.Resync)
	fmt.Fprintf(&b, "[风控] kill_switch=%v 单笔<=%s 持仓<=%s 挂单<=%s 名义<=%s 频率=%s/s\n",
		s.Risk.KillSwitch,
		limitText(float64(s.Risk.MaxOrderVolume)),
		limitText(float64(s.Risk.MaxPositionVolume)),
		limitText(float64(s.Risk.MaxOpenOrders)),
		limitText(s.Risk.MaxOrderNotional),
		limitText(s.Risk.OrdersPerSecond),
	)
	fmt.Fprintf(&b, "[策略] %s\n", formatList(s.Strategies))
	store := s.StorePath
	if store == "" {
		store = "(关闭)"
	}
	fmt.Fprintf(&b, "[HTTP] %s  [历史库] %s\n", s.HTTPAddr, store)
	b.WriteString(line)
	return b.String()
}

func (s *StartupSummary) Print() {
	logger.InfoBlock(s.String())
}

func limitText(v float64) string {
	if v <= 0 {
		return "-"
	}
	return fmt.Sprintf("%g", v)
}

func formatList(items []string) string {
	if len(items) == 0 {
		return "-"
	}
	return strings.Join(items, ", ")
}

package notify

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"MGProject/logger"
	"MGProject/tools/safe"
)

// NatsConfig 通知通道配置
type NatsConfig struct {
	Servers       []string
	Name          string
	Subject       string
	ReconnectWait time.Duration
	Timeout       time.Duration
}

type natsNotifier struct {
	nc      *nats.Conn
	subject string
}

// NewNatsNotifier 连接 NATS（core 模式，无持久化——投递语义就是尽力而为）
func NewNatsNotifier(cfg NatsConfig) (Notifier, error) {
	if len(cfg.Servers) == 0 {
		return nil, nats.ErrNoServers
	}
	if cfg.ReconnectWait == 0 {
		cfg.ReconnectWait = 500 * time.Millisecond
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 3 * time.Second
	}
	if cfg.Name == "" {
		cfg.Name = "social-notifier"
	}
	opts := []nats.Option{
		nats.Name(cfg.Name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.ReconnectJitter(100*time.Millisecond, 500*time.Millisecond),
		nats.Timeout(cfg.Timeout),
	}
	nc, err := nats.Connect(strings.Join(cfg.Servers, ","), opts...)
	if err != nil {
		return nil, err
	}
	return &natsNotifier{nc: nc, subject: cfg.Subject}, nil
}

func (n *natsNotifier) Publish(ctx context.Context, ev Event) {
	safe.SafeGo(func() {
		data, err := json.Marshal(ev)
		if err != nil {
			logger.Error("notify marshal failed", zap.String("type", ev.Type), zap.Error(err))
			return
		}
		if err := n.nc.Publish(n.subject, data); err != nil {
			logger.Error("notify publish failed",
				zap.String("type", ev.Type), zap.String("to", ev.To), zap.Error(err))
		}
	})
}

// Package heartbeat publishes a periodic liveness message for the daemon.
package heartbeat

import (
	"context"
	"time"

	"go.uber.org/zap"

	"hlampctl-go/bus"
)

var (
	topicConfigHeartbeat = bus.T("config", "heartbeat")
	topicHeartbeat       = bus.T("svc", "heartbeat")
)

const defaultInterval = 10 * time.Second

// Config is the payload expected on config/heartbeat.
type Config struct {
	IntervalS int `json:"interval_s" mapstructure:"interval_s"`
}

// Beat is published retained on svc/heartbeat.
type Beat struct {
	TS      int64  `json:"ts_ns"`
	UptimeS int64  `json:"uptime_s"`
	Seq     uint64 `json:"seq"`
}

type Service struct {
	log   *zap.Logger
	start time.Time
	seq   uint64
}

func New(log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{log: log.Named("heartbeat")}
}

func (s *Service) serviceLoop(ctx context.Context, conn *bus.Connection) {
	cfgSub := conn.Subscribe(topicConfigHeartbeat)
	defer conn.Unsubscribe(cfgSub)

	tick := time.NewTicker(defaultInterval)
	defer tick.Stop()

	s.beat(conn, time.Now())
	for {
		select {
		case <-ctx.Done():
			s.log.Info("stopping")
			return
		case t := <-tick.C:
			s.beat(conn, t)
		case msg := <-cfgSub.Channel():
			cfg, ok := msg.Payload.(Config)
			if !ok || cfg.IntervalS <= 0 {
				s.log.Warn("ignoring config", zap.Any("payload", msg.Payload))
				continue
			}
			tick.Reset(time.Duration(cfg.IntervalS) * time.Second)
			s.log.Info("interval set", zap.Int("seconds", cfg.IntervalS))
		}
	}
}

func (s *Service) beat(conn *bus.Connection, t time.Time) {
	s.seq++
	conn.Publish(conn.NewMessage(topicHeartbeat, Beat{
		TS:      t.UnixNano(),
		UptimeS: int64(t.Sub(s.start) / time.Second),
		Seq:     s.seq,
	}, true))
	s.log.Debug("beat", zap.Uint64("seq", s.seq))
}

// Start the heartbeat service.
func (s *Service) Start(ctx context.Context, conn *bus.Connection) {
	s.start = time.Now()
	go s.serviceLoop(ctx, conn)
}

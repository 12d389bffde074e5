// Package hal binds bus-attached devices to capability topics.
//
// A HAL listens for its configuration on config/hal, builds each configured
// device through the builder registry, and then serves:
//
//	hal/cap/<domain>/<kind>/<name>/info            retained capability info
//	hal/cap/<domain>/<kind>/<name>/status          retained link state
//	hal/cap/<domain>/<kind>/<name>/value           retained last reading
//	hal/cap/<domain>/<kind>/<name>/control/<verb>  request/reply controls
//	hal/state                                      retained HAL state
//
// All publication happens on the Run goroutine.
package hal

import (
	"context"
	"time"

	"go.uber.org/zap"

	"hlampctl-go/bus"
	"hlampctl-go/errcode"
	"hlampctl-go/types"
)

const (
	eventQueueLen = 16
	pollQueueLen  = 16
)

type HAL struct {
	conn *bus.Connection
	res  Resources
	log  *zap.Logger

	// Device registry
	dev map[string]Device // devID -> device

	// Capability index: address -> devID
	capIndex map[CapAddr]string

	poller *Poller
	pollCh chan PollReq

	// Single-threaded publication of device events
	evCh chan Event

	ready bool
}

// NewHAL wires a HAL to a bus connection. A nil logger disables logging.
func NewHAL(conn *bus.Connection, res Resources, log *zap.Logger) *HAL {
	if log == nil {
		log = zap.NewNop()
	}
	h := &HAL{
		conn:     conn,
		res:      res,
		log:      log.Named("hal"),
		dev:      map[string]Device{},
		capIndex: map[CapAddr]string{},
		pollCh:   make(chan PollReq, pollQueueLen),
		evCh:     make(chan Event, eventQueueLen),
	}
	h.poller = NewPoller(h.pollCh)
	// HAL provides the emitter to devices.
	h.res.Pub = h
	return h
}

func (h *HAL) Run(ctx context.Context) {
	cfgSub := h.conn.Subscribe(topicConfigHAL())
	ctrlSub := h.conn.Subscribe(ctrlWildcard())
	defer h.conn.Unsubscribe(cfgSub)
	defer h.conn.Unsubscribe(ctrlSub)

	pctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go h.poller.Run(pctx)

	h.pubHALState("idle", "awaiting_config", "")
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			h.pubHALState("stopped", "context_cancelled", "")
			return
		case msg := <-cfgSub.Channel():
			cfg, err := As[types.HALConfig](msg.Payload)
			if err != nil {
				h.log.Warn("config has wrong type")
				h.pubHALState("error", "config_wrong_type", string(errcode.Of(err)))
				continue
			}
			failed := h.applyConfig(ctx, cfg)
			h.ready = true
			h.pubHALState("ready", "configured", failed)
		case m := <-ctrlSub.Channel():
			if !h.ready {
				// Reject controls until HAL has a configuration.
				h.replyErr(m, errcode.HALNotReady)
				continue
			}
			h.handleControl(m)
		case req := <-h.pollCh:
			h.handlePoll(req)
		case ev := <-h.evCh:
			h.handleEvent(ev)
		}
	}
}

// applyConfig is additive for devices already running and removes devices
// that disappeared from the config. It returns the last build error code.
func (h *HAL) applyConfig(ctx context.Context, cfg types.HALConfig) string {
	seen := map[string]struct{}{}
	failed := ""

	for i := range cfg.Devices {
		dc := cfg.Devices[i]
		seen[dc.ID] = struct{}{}
		if _, exists := h.dev[dc.ID]; exists {
			continue
		}
		log := h.log.With(zap.String("dev", dc.ID), zap.String("type", dc.Type))

		b, ok := lookupBuilder(dc.Type)
		if !ok {
			log.Warn("no builder for type")
			failed = string(errcode.Unsupported)
			continue
		}
		dev, err := b.Build(ctx, BuilderInput{
			ID:     dc.ID,
			Type:   dc.Type,
			Params: dc.Params,
			Res:    h.res,
		})
		if err != nil {
			log.Error("build failed", zap.Error(err))
			failed = string(errcode.Of(err))
			continue
		}
		if err := dev.Init(ctx); err != nil {
			log.Error("init failed", zap.Error(err))
			_ = dev.Close()
			failed = string(errcode.Of(err))
			continue
		}
		h.dev[dev.ID()] = dev
		log.Info("device ready")

		// Register capabilities, publish retained info + initial status:down
		for _, cs := range dev.Capabilities() {
			a := cs.Addr()
			h.capIndex[a] = dev.ID()
			h.conn.Publish(h.conn.NewMessage(capInfo(a), cs.Info, true))
			h.conn.Publish(h.conn.NewMessage(
				capStatus(a),
				types.CapabilityStatus{Link: types.LinkDown, TS: time.Now().UnixNano()},
				true,
			))
			if cs.PollEveryMs > 0 {
				every := time.Duration(cs.PollEveryMs) * time.Millisecond
				h.poller.Upsert(a, VerbRead, every, every/10)
			}
		}
	}

	for _, ps := range cfg.Pollers {
		verb := ps.Verb
		if verb == "" {
			verb = VerbRead
		}
		h.poller.Upsert(
			CapAddr{Domain: ps.Domain, Kind: ps.Kind, Name: ps.Name}, verb,
			time.Duration(ps.IntervalMs)*time.Millisecond,
			time.Duration(ps.JitterMs)*time.Millisecond,
		)
	}

	// Tidy-up devices not in config.
	for id, dev := range h.dev {
		if _, ok := seen[id]; ok {
			continue
		}
		h.removeDevice(id, dev)
	}
	return failed
}

func (h *HAL) removeDevice(id string, dev Device) {
	for _, cs := range dev.Capabilities() {
		a := cs.Addr()
		h.poller.StopAll(a)
		delete(h.capIndex, a)
		h.conn.Publish(h.conn.NewMessage(capInfo(a), nil, true))
		h.conn.Publish(h.conn.NewMessage(capValue(a), nil, true))
		h.conn.Publish(h.conn.NewMessage(
			capStatus(a),
			types.CapabilityStatus{Link: types.LinkDown, TS: time.Now().UnixNano()},
			true,
		))
	}
	if err := dev.Close(); err != nil {
		h.log.Warn("close failed", zap.String("dev", id), zap.Error(err))
	}
	delete(h.dev, id)
	h.log.Info("device removed", zap.String("dev", id))
}

func (h *HAL) closeAll() {
	for id, dev := range h.dev {
		if err := dev.Close(); err != nil {
			h.log.Warn("close failed", zap.String("dev", id), zap.Error(err))
		}
	}
}

func (h *HAL) handleControl(msg *bus.Message) {
	a, verb, ok := addrFromCtrl(msg.Topic)
	if !ok {
		h.replyErr(msg, errcode.InvalidTopic)
		return
	}
	dev, ok := h.owner(a)
	if !ok {
		h.replyErr(msg, errcode.UnknownCapability)
		return
	}

	switch verb {
	case VerbPollStart:
		p, err := As[types.PollStart](msg.Payload)
		if err != nil || p.IntervalMs == 0 {
			h.replyErr(msg, errcode.InvalidPayload)
			return
		}
		v := p.Verb
		if v == "" {
			v = VerbRead
		}
		h.poller.Upsert(a, v, time.Duration(p.IntervalMs)*time.Millisecond, time.Duration(p.JitterMs)*time.Millisecond)
		h.replyOK(msg)
		return
	case VerbPollStop:
		p, err := As[types.PollStop](msg.Payload)
		if err != nil {
			h.replyErr(msg, errcode.InvalidPayload)
			return
		}
		v := p.Verb
		if v == "" {
			v = VerbRead
		}
		h.poller.Stop(a, v)
		h.replyOK(msg)
		return
	}

	res, err := dev.Control(a, verb, msg.Payload)
	if err != nil {
		if verb == VerbRead {
			h.pubDegraded(a, err)
		}
		h.replyFromError(msg, err)
		return
	}
	if verb == VerbRead {
		h.pubValue(a, res)
	}
	if !msg.CanReply() {
		return
	}
	if res == nil {
		h.replyOK(msg)
		return
	}
	h.conn.Reply(msg, res, false)
}

func (h *HAL) handlePoll(req PollReq) {
	dev, ok := h.owner(req.Addr)
	if !ok {
		return
	}
	res, err := dev.Control(req.Addr, req.Verb, nil)
	if err != nil {
		h.log.Debug("poll failed",
			zap.String("cap", capBase(req.Addr).String()),
			zap.Duration("every", req.Every),
			zap.Error(err))
		h.pubDegraded(req.Addr, err)
		return
	}
	if req.Verb == VerbRead {
		h.pubValue(req.Addr, res)
	}
}

func (h *HAL) handleEvent(ev Event) {
	if _, ok := h.capIndex[ev.Addr]; !ok {
		return
	}
	ts := ev.TS
	if ts == 0 {
		ts = time.Now().UnixNano()
	}
	if ev.Err != "" {
		h.conn.Publish(h.conn.NewMessage(
			capStatus(ev.Addr),
			types.CapabilityStatus{Link: types.LinkDegraded, TS: ts, Error: ev.Err},
			true,
		))
		return
	}
	h.conn.Publish(h.conn.NewMessage(capValue(ev.Addr), ev.Payload, true))
	h.conn.Publish(h.conn.NewMessage(
		capStatus(ev.Addr),
		types.CapabilityStatus{Link: types.LinkUp, TS: ts},
		true,
	))
}

func (h *HAL) owner(a CapAddr) (Device, bool) {
	id, ok := h.capIndex[a]
	if !ok {
		return nil, false
	}
	dev, ok := h.dev[id]
	return dev, ok
}

func (h *HAL) pubValue(a CapAddr, v any) {
	h.handleEvent(Event{Addr: a, Payload: v, TS: time.Now().UnixNano()})
}

func (h *HAL) pubDegraded(a CapAddr, err error) {
	h.handleEvent(Event{Addr: a, Err: string(errcode.Of(err)), TS: time.Now().UnixNano()})
}

func (h *HAL) pubHALState(level, status, errCode string) {
	h.conn.Publish(h.conn.NewMessage(
		topicHALState(),
		types.HALState{Level: level, Status: status, TS: time.Now().UnixNano(), Error: errCode},
		true,
	))
}

// ---- HAL as EventEmitter (enqueue to single publisher) ----

func (h *HAL) Emit(ev Event) bool {
	select {
	case h.evCh <- ev:
		return true
	default:
		return false
	}
}

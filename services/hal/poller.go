package hal

import (
	"container/heap"
	"context"
	"math/rand"
	"sync"
	"time"
)

// PollReq asks the HAL to run verb on a capability.
type PollReq struct {
	Addr  CapAddr
	Verb  string
	Every time.Duration
}

type schedKey struct {
	addr CapAddr
	verb string
}

type schedule struct {
	key    schedKey
	next   time.Time
	every  time.Duration
	jitter time.Duration
	slot   int // heap position, -1 when detached
}

// dueQueue orders schedules by next fire time.
type dueQueue []*schedule

func (q dueQueue) Len() int           { return len(q) }
func (q dueQueue) Less(i, j int) bool { return q[i].next.Before(q[j].next) }
func (q dueQueue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].slot, q[j].slot = i, j
}
func (q *dueQueue) Push(x any) {
	s := x.(*schedule)
	s.slot = len(*q)
	*q = append(*q, s)
}
func (q *dueQueue) Pop() any {
	old := *q
	s := old[len(old)-1]
	old[len(old)-1] = nil
	s.slot = -1
	*q = old[:len(old)-1]
	return s
}

// Poller fires PollReq values on out when schedules come due. Sends never
// block: a busy consumer loses that tick, not the schedule.
type Poller struct {
	mu    sync.Mutex
	byKey map[schedKey]*schedule
	queue dueQueue
	rng   *rand.Rand
	kick  chan struct{}
	out   chan<- PollReq
}

func NewPoller(out chan<- PollReq) *Poller {
	return &Poller{
		byKey: map[schedKey]*schedule{},
		rng:   rand.New(rand.NewSource(time.Now().UnixNano())),
		kick:  make(chan struct{}, 1),
		out:   out,
	}
}

// Upsert installs or replaces the schedule for (a, verb). Every fire,
// including the first, is delayed by interval plus up to jitter.
func (p *Poller) Upsert(a CapAddr, verb string, interval, jitter time.Duration) {
	if interval <= 0 || verb == "" {
		return
	}
	jitter = max(jitter, 0)
	k := schedKey{addr: a, verb: verb}

	p.mu.Lock()
	s, ok := p.byKey[k]
	if !ok {
		s = &schedule{key: k, slot: -1}
		p.byKey[k] = s
	}
	s.every, s.jitter = interval, jitter
	s.next = time.Now().Add(p.delay(s))
	if s.slot < 0 {
		heap.Push(&p.queue, s)
	} else {
		heap.Fix(&p.queue, s.slot)
	}
	p.mu.Unlock()
	p.nudge()
}

// Stop removes the schedule for (a, verb), if any.
func (p *Poller) Stop(a CapAddr, verb string) {
	p.mu.Lock()
	p.drop(schedKey{addr: a, verb: verb})
	p.mu.Unlock()
	p.nudge()
}

// StopAll removes every schedule for a capability.
func (p *Poller) StopAll(a CapAddr) {
	p.mu.Lock()
	for k := range p.byKey {
		if k.addr == a {
			p.drop(k)
		}
	}
	p.mu.Unlock()
	p.nudge()
}

// Len reports the number of active schedules.
func (p *Poller) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.byKey)
}

func (p *Poller) Run(ctx context.Context) {
	timer := time.NewTimer(time.Hour)
	defer timer.Stop()

	for {
		fire, wait, idle := p.take(time.Now())
		if fire != nil {
			select {
			case p.out <- *fire:
			default:
			}
			continue
		}

		var tc <-chan time.Time
		if !idle {
			timer.Reset(wait)
			tc = timer.C
		}
		select {
		case <-ctx.Done():
			return
		case <-p.kick:
			// Go 1.23+ timers: Stop leaves no stale value behind.
			timer.Stop()
		case <-tc:
		}
	}
}

// take pops and re-arms the head schedule when it is due. Otherwise it
// returns how long to wait, or idle when nothing is scheduled.
func (p *Poller) take(now time.Time) (fire *PollReq, wait time.Duration, idle bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.queue) == 0 {
		return nil, 0, true
	}
	head := p.queue[0]
	if d := head.next.Sub(now); d > 0 {
		return nil, d, false
	}
	head.next = now.Add(p.delay(head))
	heap.Fix(&p.queue, 0)
	return &PollReq{Addr: head.key.addr, Verb: head.key.verb, Every: head.every}, 0, false
}

// drop must be called with mu held.
func (p *Poller) drop(k schedKey) {
	s, ok := p.byKey[k]
	if !ok {
		return
	}
	if s.slot >= 0 {
		heap.Remove(&p.queue, s.slot)
	}
	delete(p.byKey, k)
}

func (p *Poller) nudge() {
	select {
	case p.kick <- struct{}{}:
	default:
	}
}

// delay is every plus a uniform [0..jitter] offset. Called with mu held.
func (p *Poller) delay(s *schedule) time.Duration {
	if s.jitter <= 0 {
		return s.every
	}
	return s.every + time.Duration(p.rng.Int63n(int64(s.jitter)+1))
}

// bus/bus_test.go
package bus

import (
	"context"
	"sort"
	"testing"
	"time"
)

var (
	topicVoltage = T("hal", "cap", "lamp", "voltage", "main", "value")
	topicTemp    = T("hal", "cap", "lamp", "temperature", "main", "value")
	topicSwitch  = T("hal", "cap", "lamp", "switch", "main", "value")
)

func TestBasicPubSub(t *testing.T) {
	b := NewBus(4)
	conn := b.NewConnection("test")

	sub := conn.Subscribe(topicVoltage)
	conn.Publish(conn.NewMessage(topicVoltage, "128", false))
	expectOneOf(t, sub, "128")
}

func TestRetainedMessage(t *testing.T) {
	b := NewBus(2)
	conn := b.NewConnection("test")

	conn.Publish(conn.NewMessage(T("hal", "state"), "ready", true))

	sub := conn.Subscribe(T("hal", "state"))
	expectOneOf(t, sub, "ready")
}

func TestQueueDropsOldest(t *testing.T) {
	b := NewBus(2)
	c := b.NewConnection("test")
	s := c.Subscribe(topicTemp)

	for _, p := range []string{"1", "2", "3"} {
		c.Publish(c.NewMessage(topicTemp, p, false))
	}
	assertUnorderedEqual(t, drainPayloads(t, s, 2), []string{"2", "3"})
}

// -----------------------------------------------------------------------------
// Wildcards
// -----------------------------------------------------------------------------

func TestWildcard_SingleLevel(t *testing.T) {
	b := NewBus(16)
	c := b.NewConnection("test")

	sAnyKind := c.Subscribe(T("hal", "cap", "lamp", "+", "main", "value"))
	sVoltage := c.Subscribe(T("hal", "cap", "lamp", "voltage", "+", "value"))
	sNo := c.Subscribe(T("hal", "cap", "lamp", "+", "main", "status"))

	c.Publish(b.NewMessage(topicVoltage, "v", false))
	expectOneOf(t, sAnyKind, "v")
	expectOneOf(t, sVoltage, "v")
	expectNoMessage(t, sNo)

	c.Publish(b.NewMessage(topicSwitch, "s", false))
	expectOneOf(t, sAnyKind, "s")
	expectNoMessage(t, sVoltage)
	expectNoMessage(t, sNo)
}

func TestWildcard_MultiLevel(t *testing.T) {
	b := NewBus(16)
	c := b.NewConnection("test")

	sHAL := c.Subscribe(T("hal", "#"))
	sAll := c.Subscribe(T("#"))
	sLamp := c.Subscribe(T("hal", "cap", "lamp", "#"))
	sExact := c.Subscribe(T("hal"))

	c.Publish(b.NewMessage(T("hal"), "p1", false))
	expectOneOf(t, sHAL, "p1")
	expectOneOf(t, sAll, "p1")
	expectOneOf(t, sExact, "p1")
	expectNoMessage(t, sLamp)

	c.Publish(b.NewMessage(topicTemp, "p2", false))
	expectOneOf(t, sHAL, "p2")
	expectOneOf(t, sAll, "p2")
	expectOneOf(t, sLamp, "p2")
	expectNoMessage(t, sExact)
}

func TestWildcard_RetainedDelivery(t *testing.T) {
	b := NewBus(32)
	c := b.NewConnection("test")

	c.Publish(b.NewMessage(topicVoltage, "r0", true))
	c.Publish(b.NewMessage(topicTemp, "r1", true))
	c.Publish(b.NewMessage(topicSwitch, "r2", true))
	c.Publish(b.NewMessage(T("hal", "state"), "r3", true))

	sCaps := c.Subscribe(T("hal", "cap", "#"))
	assertUnorderedEqual(t, drainPayloads(t, sCaps, 3), []string{"r0", "r1", "r2"})

	sInputs := c.Subscribe(T("hal", "cap", "lamp", "+", "main", "value"))
	assertUnorderedEqual(t, drainPayloads(t, sInputs, 3), []string{"r0", "r1", "r2"})

	sTop := c.Subscribe(T("hal", "+"))
	assertUnorderedEqual(t, drainPayloads(t, sTop, 1), []string{"r3"})
}

func TestWildcard_RetainedClear(t *testing.T) {
	b := NewBus(16)
	c := b.NewConnection("test")

	c.Publish(b.NewMessage(topicVoltage, "keep", true))
	c.Publish(b.NewMessage(topicTemp, "other", true))
	c.Publish(b.NewMessage(topicVoltage, nil, true))

	s := c.Subscribe(T("hal", "#"))
	got := drainPayloads(t, s, 1)
	if got[0] != "other" {
		t.Fatalf("expected only 'other' after clear, got %v", got)
	}
}

func TestMatch(t *testing.T) {
	cases := []struct {
		pattern, topic Topic
		want           bool
	}{
		{T("a", "+", "c"), T("a", "b", "c"), true},
		{T("a", "+", "c"), T("a", "c"), false},
		{T("a", "+", "c"), T("a", "b", "d"), false},
		{T("a", "#"), T("a"), true},
		{T("a", 1), T("a", 1), true},
		{T("a", 1), T("a", "1"), false},
		{T("a"), T("a", "b"), false},
	}
	for _, c := range cases {
		if got := Match(c.pattern, c.topic); got != c.want {
			t.Errorf("Match(%v, %v) = %v, want %v", c.pattern, c.topic, got, c.want)
		}
	}
}

func TestUnsubscribeTwiceIsSafe(t *testing.T) {
	b := NewBus(4)
	c := b.NewConnection("test")
	s := c.Subscribe(topicSwitch)
	s.Unsubscribe()
	s.Unsubscribe()
	if _, ok := <-s.Channel(); ok {
		t.Fatal("channel should be closed")
	}
	c.Publish(c.NewMessage(topicSwitch, "x", false))
}

// -----------------------------------------------------------------------------
// Request–Reply
// -----------------------------------------------------------------------------

func TestRequestReply_RequestWait(t *testing.T) {
	b := NewBus(8)
	reqConn := b.NewConnection("requester")
	respConn := b.NewConnection("responder")

	reqTopic := T("hal", "cap", "lamp", "switch", "main", "control", "set")
	respSub := respConn.Subscribe(reqTopic)
	defer respConn.Unsubscribe(respSub)

	go func() {
		if msg, ok := <-respSub.Channel(); ok {
			respConn.Reply(msg, "OK", false)
		}
	}()

	req := b.NewMessage(reqTopic, nil, false)
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	reply, err := reqConn.RequestWait(ctx, req)
	if err != nil {
		t.Fatalf("unexpected error waiting for reply: %v", err)
	}
	if got, ok := reply.Payload.(string); !ok || got != "OK" {
		t.Fatalf("unexpected reply payload: %#v", reply.Payload)
	}
	if !req.CanReply() {
		t.Fatal("request lacks ReplyTo after RequestWait")
	}
	if !Match(req.ReplyTo, reply.Topic) {
		t.Fatalf("reply topic %v != request ReplyTo %v", reply.Topic, req.ReplyTo)
	}
}

func TestRequestReply_Timeout(t *testing.T) {
	b := NewBus(8)
	reqConn := b.NewConnection("requester")

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := reqConn.RequestWait(ctx, b.NewMessage(T("hal", "noop"), nil, false))
	if err == nil {
		t.Fatal("expected timeout error, got nil")
	}
}

// -----------------------------------------------------------------------------
// helpers
// -----------------------------------------------------------------------------

func expectOneOf(t *testing.T, sub *Subscription, want string) {
	t.Helper()
	select {
	case got := <-sub.Channel():
		s, ok := got.Payload.(string)
		if !ok || s != want {
			t.Fatalf("unexpected payload: %v (want %q)", got.Payload, want)
		}
	case <-time.After(200 * time.Millisecond):
		t.Fatalf("timeout waiting for %q", want)
	}
}

func expectNoMessage(t *testing.T, sub *Subscription) {
	t.Helper()
	select {
	case got := <-sub.Channel():
		t.Fatalf("unexpected message: %#v", got)
	case <-time.After(30 * time.Millisecond):
	}
}

func drainPayloads(t *testing.T, sub *Subscription, n int) []string {
	t.Helper()
	var out []string
	deadline := time.Now().Add(300 * time.Millisecond)
	for len(out) < n && time.Now().Before(deadline) {
		select {
		case m := <-sub.Channel():
			s, ok := m.Payload.(string)
			if !ok {
				t.Fatalf("non-string payload in drain: %#v", m.Payload)
			}
			out = append(out, s)
		case <-time.After(10 * time.Millisecond):
		}
	}
	if len(out) != n {
		t.Fatalf("drainPayloads: expected %d messages, got %d (%v)", n, len(out), out)
	}
	return out
}

func assertUnorderedEqual(t *testing.T, got, want []string) {
	t.Helper()
	sort.Strings(got)
	sort.Strings(want)
	if len(got) != len(want) {
		t.Fatalf("length mismatch: got %v, want %v", got, want)
	}
	for i := range got {
		if got[i] != want[i] {
			t.Fatalf("mismatch at %d: got %v, want %v", i, got, want)
		}
	}
}

func TestTopic_InvalidTokenPanics(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Fatal("expected panic for invalid token, got none")
		}
	}()
	_ = T([]byte{1, 2, 3})
}

package ws

import (
	"errors"
	"testing"
	"time"
)

type fakeSubscriber struct {
	received chan []byte
	sendErr  error
	closed   chan struct{}
}

func newFakeSubscriber() *fakeSubscriber {
	return &fakeSubscriber{
		received: make(chan []byte, 8),
		closed:   make(chan struct{}, 1),
	}
}

func (s *fakeSubscriber) Send(payload []byte) error {
	if s.sendErr != nil {
		return s.sendErr
	}
	s.received <- payload
	return nil
}

func (s *fakeSubscriber) Close() {
	select {
	case s.closed <- struct{}{}:
	default:
	}
}

func waitFor(t *testing.T, ch chan []byte) []byte {
	t.Helper()
	select {
	case payload := <-ch:
		return payload
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for broadcast")
		return nil
	}
}

func TestHubBroadcastsToDeploymentSubscribers(t *testing.T) {
	hub := NewHub(4)
	sub := newFakeSubscriber()
	other := newFakeSubscriber()
	hub.Register("dep-1", sub)
	hub.Register("dep-2", other)

	hub.Broadcast("dep-1", []byte(`{"status":"Deployed"}`))

	got := waitFor(t, sub.received)
	if string(got) != `{"status":"Deployed"}` {
		t.Fatalf("unexpected payload %s", got)
	}
	select {
	case payload := <-other.received:
		t.Fatalf("subscriber on another deployment received %s", payload)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHubDropsFailingSubscriber(t *testing.T) {
	hub := NewHub(4)
	failing := newFakeSubscriber()
	failing.sendErr = errors.New("connection reset")
	healthy := newFakeSubscriber()
	hub.Register("dep-1", failing)
	hub.Register("dep-1", healthy)

	hub.Broadcast("dep-1", []byte("first"))
	waitFor(t, healthy.received)

	select {
	case <-failing.closed:
	case <-time.After(2 * time.Second):
		t.Fatal("failing subscriber was not closed")
	}

	hub.Broadcast("dep-1", []byte("second"))
	if got := waitFor(t, healthy.received); string(got) != "second" {
		t.Fatalf("unexpected payload %s", got)
	}
}

func TestHubUnregisterStopsDelivery(t *testing.T) {
	hub := NewHub(4)
	sub := newFakeSubscriber()
	hub.Register("dep-1", sub)
	hub.Unregister("dep-1", sub)

	hub.Broadcast("dep-1", []byte("late"))

	select {
	case payload := <-sub.received:
		t.Fatalf("unregistered subscriber received %s", payload)
	case <-time.After(50 * time.Millisecond):
	}
}

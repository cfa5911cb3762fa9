package publishers

import (
	"context"
	"errors"
	"strings"
	"testing"
)

type stubPublisher struct {
	id       string
	typ      string
	err      error
	closeErr error
	calls    int
	closed   bool
}

func (s *stubPublisher) ID() string   { return s.id }
func (s *stubPublisher) Type() string { return s.typ }
func (s *stubPublisher) Publish(context.Context, Event) error {
	s.calls++
	return s.err
}

func (s *stubPublisher) Close() error {
	s.closed = true
	return s.closeErr
}

func TestFanoutPublishAggregatesErrors(t *testing.T) {
	bad := errors.New("failed")
	ok := &stubPublisher{id: "ok", typ: "http"}
	fanout := NewFanout([]Publisher{
		ok,
		nil,
		&stubPublisher{id: "bad", typ: "sqs", err: bad},
	})

	if fanout.Size() != 2 {
		t.Fatalf("expected nil publishers to be dropped, size %d", fanout.Size())
	}

	count, err := fanout.Publish(context.Background(), Event{})
	if count != 1 {
		t.Fatalf("expected 1 success, got %d", count)
	}
	if !errors.Is(err, bad) {
		t.Fatalf("expected aggregated error to wrap publisher error, got %v", err)
	}
	if ok.calls != 1 {
		t.Fatalf("healthy publisher should still receive the event")
	}
}

func TestFanoutNilIsNoop(t *testing.T) {
	var fanout *Fanout
	if n, err := fanout.Publish(context.Background(), Event{}); n != 0 || err != nil {
		t.Fatalf("nil fanout should be a noop, got %d %v", n, err)
	}
	if err := fanout.Close(); err != nil {
		t.Fatalf("nil fanout close: %v", err)
	}
}

func TestFanoutCloseClosesEveryPublisher(t *testing.T) {
	first := &stubPublisher{id: "a", typ: "http", closeErr: errors.New("close failed")}
	second := &stubPublisher{id: "b", typ: "http"}

	if err := NewFanout([]Publisher{first, second}).Close(); err == nil {
		t.Fatalf("expected close error to surface")
	}
	if !first.closed || !second.closed {
		t.Fatalf("expected all publishers to be closed")
	}
}

func TestBuildAllWithDefaultRegistry(t *testing.T) {
	reg := DefaultRegistry()
	pubs, err := BuildAll(context.Background(), reg, []PublisherConfig{
		{ID: "http", Type: TypeHTTP, HTTP: &HTTPPublisherConfig{URL: "https://example.com"}},
	}, nil)
	if err != nil {
		t.Fatalf("BuildAll: %v", err)
	}
	if len(pubs) != 1 || pubs[0].Type() != TypeHTTP {
		t.Fatalf("expected 1 http publisher, got %#v", pubs)
	}
}

func TestBuildAllUnknownType(t *testing.T) {
	_, err := BuildAll(context.Background(), DefaultRegistry(), []PublisherConfig{{ID: "k", Type: "kafka"}}, nil)
	if err == nil {
		t.Fatalf("expected error for unregistered type")
	}
	if !strings.Contains(err.Error(), "http, pubsub, sns, sqs") {
		t.Fatalf("expected known types in error, got %v", err)
	}
}

func TestBuildAllNamesFailingPublisher(t *testing.T) {
	_, err := BuildAll(context.Background(), DefaultRegistry(), []PublisherConfig{
		{ID: "ok", Type: TypeHTTP, HTTP: &HTTPPublisherConfig{URL: "https://example.com"}},
		{ID: "broken", Type: TypeHTTP},
	}, nil)
	if err == nil || !strings.Contains(err.Error(), `publisher "broken" (http)`) {
		t.Fatalf("expected error naming the broken publisher, got %v", err)
	}
}

func TestRegistryRegisterNormalizesType(t *testing.T) {
	reg := NewRegistry(nil)
	reg.Register(" Webhook ", newHTTPPublisher)
	reg.Register("", newHTTPPublisher)
	reg.Register("nil", nil)

	if got := reg.Types(); len(got) != 1 || got[0] != "webhook" {
		t.Fatalf("unexpected types %v", got)
	}
	pub, err := reg.PublisherFor(context.Background(), PublisherConfig{
		ID:   "hook",
		Type: "WEBHOOK",
		HTTP: &HTTPPublisherConfig{URL: "https://example.com"},
	}, nil)
	if err != nil {
		t.Fatalf("PublisherFor: %v", err)
	}
	_ = pub.(closer).Close()
}

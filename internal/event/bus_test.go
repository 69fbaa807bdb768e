package event

import (
	"bytes"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestTopic_Matches(t *testing.T) {
	tests := []struct {
		pattern Topic
		topic   Topic
		want    bool
	}{
		{TopicFileChanged, TopicFileChanged, true},
		{TopicFileChanged, TopicTerminalOutput, false},
		{TopicGitAll, TopicGitCommitCreated, true},
		{TopicGitAll, TopicGitSyncCompleted, true},
		{TopicGitAll, "git", false},
		{TopicGitAll, "gitx.commit", false},
		{TopicSessionAll, TopicWorkspaceOpened, true},
		{TopicAll, TopicTerminalOutput, true},
	}

	for _, tt := range tests {
		if got := tt.pattern.Matches(tt.topic); got != tt.want {
			t.Errorf("%q.Matches(%q) = %v, want %v", tt.pattern, tt.topic, got, tt.want)
		}
	}
}

func TestBus_SubscribeValidation(t *testing.T) {
	bus := NewBus()

	if _, err := bus.Subscribe(TopicFileChanged, nil); err != ErrNilHandler {
		t.Errorf("expected ErrNilHandler, got %v", err)
	}
	if _, err := bus.Subscribe("", func(Event) {}); err != ErrEmptyTopic {
		t.Errorf("expected ErrEmptyTopic, got %v", err)
	}

	bus.Close()
	if _, err := bus.Subscribe(TopicFileChanged, func(Event) {}); err != ErrBusClosed {
		t.Errorf("expected ErrBusClosed, got %v", err)
	}
}

func TestBus_PublishOrder(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	var got []string
	bus.Subscribe(TopicTerminalOutput, func(e Event) {
		got = append(got, "first:"+e.Payload.(TerminalOutput).Text)
	})
	bus.Subscribe(TopicAll, func(e Event) {
		got = append(got, "second:"+e.Payload.(TerminalOutput).Text)
	})

	bus.Publish(TopicTerminalOutput, TerminalOutput{Kind: OutputStdout, Text: "a"})
	bus.Publish(TopicTerminalOutput, TerminalOutput{Kind: OutputStdout, Text: "b"})

	want := []string{"first:a", "second:a", "first:b", "second:b"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("delivery %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestBus_WildcardSubscription(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	var count atomic.Int32
	bus.Subscribe(TopicGitAll, func(Event) { count.Add(1) })

	bus.Publish(TopicGitCommitCreated, GitCommitCreated{Hash: "abc"})
	bus.Publish(TopicGitSyncCompleted, GitSyncCompleted{Branch: "main"})
	bus.Publish(TopicFileChanged, FileChanged{Path: "/x"})

	if got := count.Load(); got != 2 {
		t.Errorf("expected 2 git events, got %d", got)
	}
}

func TestOn_FiltersPayloadType(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	var paths []string
	if _, err := On(bus, TopicFileChanged, func(p FileChanged) {
		paths = append(paths, p.Path)
	}); err != nil {
		t.Fatalf("On() failed: %v", err)
	}

	bus.Publish(TopicFileChanged, FileChanged{Path: "/a"})
	bus.Publish(TopicFileChanged, "not a payload")

	if len(paths) != 1 || paths[0] != "/a" {
		t.Errorf("unexpected paths: %v", paths)
	}
}

func TestSubscription_Unsubscribe(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	var count atomic.Int32
	sub, err := bus.Subscribe(TopicFileChanged, func(Event) { count.Add(1) })
	if err != nil {
		t.Fatalf("Subscribe() failed: %v", err)
	}

	bus.Publish(TopicFileChanged, FileChanged{})
	sub.Unsubscribe()
	sub.Unsubscribe()
	bus.Publish(TopicFileChanged, FileChanged{})

	if got := count.Load(); got != 1 {
		t.Errorf("expected 1 delivery, got %d", got)
	}
	if sub.IsActive() {
		t.Error("expected subscription to be inactive")
	}
	if bus.SubscriptionCount() != 0 {
		t.Errorf("expected 0 subscriptions, got %d", bus.SubscriptionCount())
	}
}

func TestSubscription_UnsubscribeWaitsForDelivery(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	entered := make(chan struct{})
	release := make(chan struct{})
	var finished atomic.Bool

	sub, _ := bus.Subscribe(TopicTerminalOutput, func(Event) {
		close(entered)
		<-release
		finished.Store(true)
	})

	go bus.Publish(TopicTerminalOutput, TerminalOutput{})
	<-entered

	done := make(chan struct{})
	go func() {
		sub.Unsubscribe()
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("Unsubscribe returned while handler was running")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Unsubscribe did not return")
	}
	if !finished.Load() {
		t.Error("expected handler to have finished before Unsubscribe returned")
	}
}

func TestSubscription_CancelInsideHandler(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	var count int
	var sub *Subscription
	sub, _ = bus.Subscribe(TopicFileChanged, func(Event) {
		count++
		sub.Cancel()
	})

	bus.Publish(TopicFileChanged, FileChanged{})
	bus.Publish(TopicFileChanged, FileChanged{})

	if count != 1 {
		t.Errorf("expected 1 delivery, got %d", count)
	}
}

func TestBus_PanicRecovered(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	bus := NewBus(WithLogger(logger))
	defer bus.Close()

	var after atomic.Int32
	bus.Subscribe(TopicFileChanged, func(Event) { panic("boom") })
	bus.Subscribe(TopicFileChanged, func(Event) { after.Add(1) })

	bus.Publish(TopicFileChanged, FileChanged{})

	if after.Load() != 1 {
		t.Error("expected later subscriber to still receive the event")
	}
	stats := bus.Stats()
	if stats.Panics != 1 {
		t.Errorf("expected 1 panic, got %d", stats.Panics)
	}
	if stats.Delivered != 1 {
		t.Errorf("expected 1 delivery, got %d", stats.Delivered)
	}
	if !bytes.Contains(buf.Bytes(), []byte("event handler panicked")) {
		t.Errorf("expected panic to be logged, got %q", buf.String())
	}
}

func TestBus_HandlerNotConcurrentWithItself(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	var inFlight, maxInFlight atomic.Int32
	bus.Subscribe(TopicTerminalOutput, func(Event) {
		n := inFlight.Add(1)
		for {
			m := maxInFlight.Load()
			if n <= m || maxInFlight.CompareAndSwap(m, n) {
				break
			}
		}
		time.Sleep(time.Millisecond)
		inFlight.Add(-1)
	})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			bus.Publish(TopicTerminalOutput, TerminalOutput{})
		}()
	}
	wg.Wait()

	if got := maxInFlight.Load(); got != 1 {
		t.Errorf("expected at most 1 concurrent delivery, got %d", got)
	}
}

func TestBus_CloseIsIdempotent(t *testing.T) {
	bus := NewBus()
	var count atomic.Int32
	bus.Subscribe(TopicAll, func(Event) { count.Add(1) })

	bus.Close()
	bus.Close()
	bus.Publish(TopicFileChanged, FileChanged{})

	if count.Load() != 0 {
		t.Error("expected no delivery after Close")
	}
	if !bus.IsClosed() {
		t.Error("expected bus to be closed")
	}
}

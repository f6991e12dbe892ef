package events

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"media-converter/internal/converter"
)

func progressEvent(id string, pct float64) Event {
	return FromProgress(converter.Progress{JobID: id, Progress: pct, Status: converter.StatusConverting})
}

func drain(t *testing.T, ch <-chan Event) []Event {
	t.Helper()
	var got []Event
	timeout := time.After(2 * time.Second)
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				return got
			}
			got = append(got, ev)
		case <-timeout:
			t.Fatal("subscription was not closed")
			return got
		}
	}
}

func TestHubDeliversInOrderAndClosesOnResult(t *testing.T) {
	hub := NewHub(0)
	ctx := context.Background()

	ch, cancel := hub.Subscribe("job-1")
	defer cancel()

	for _, pct := range []float64{0, 5, 40} {
		if err := hub.Publish(ctx, progressEvent("job-1", pct)); err != nil {
			t.Fatalf("Publish() error: %v", err)
		}
	}
	if err := hub.Publish(ctx, FromResult(converter.Result{JobID: "job-1", Success: true, OutputSize: 10})); err != nil {
		t.Fatalf("Publish() error: %v", err)
	}

	got := drain(t, ch)
	if len(got) != 4 {
		t.Fatalf("received %d events, want 4", len(got))
	}
	for i, want := range []float64{0, 5, 40, 100} {
		if got[i].Progress != want {
			t.Errorf("event %d progress = %v, want %v", i, got[i].Progress, want)
		}
	}
	last := got[3]
	if !last.Terminal() || last.Result == nil || !last.Result.Success {
		t.Errorf("last event = %+v, want successful result", last)
	}
	if last.Status != converter.StatusCompleted {
		t.Errorf("result status = %q, want completed", last.Status)
	}
	if hub.Subscribers("job-1") != 0 {
		t.Errorf("Subscribers() = %d after result, want 0", hub.Subscribers("job-1"))
	}
}

func TestHubReplaysLastEvent(t *testing.T) {
	hub := NewHub(0)
	ctx := context.Background()

	_ = hub.Publish(ctx, progressEvent("job-2", 5))
	_ = hub.Publish(ctx, progressEvent("job-2", 60))

	ch, cancel := hub.Subscribe("job-2")
	defer cancel()

	select {
	case ev := <-ch:
		if ev.Progress != 60 {
			t.Errorf("replayed progress = %v, want 60", ev.Progress)
		}
	case <-time.After(time.Second):
		t.Fatal("no replayed event")
	}
}

func TestHubLateSubscriberGetsResult(t *testing.T) {
	hub := NewHub(0)
	_ = hub.Publish(context.Background(), FromResult(converter.Result{JobID: "job-3", Error: "boom", Reason: "encode"}))

	ch, cancel := hub.Subscribe("job-3")
	defer cancel()

	got := drain(t, ch)
	if len(got) != 1 || !got[0].Terminal() {
		t.Fatalf("got %+v, want exactly the result event", got)
	}
	if got[0].Status != converter.StatusFailed {
		t.Errorf("status = %q, want failed", got[0].Status)
	}
	if got[0].Result.Reason != "encode" {
		t.Errorf("reason = %q, want encode", got[0].Result.Reason)
	}
}

func TestHubIgnoresEventsAfterResult(t *testing.T) {
	hub := NewHub(0)
	ctx := context.Background()

	_ = hub.Publish(ctx, FromResult(converter.Result{JobID: "job-4", Success: true}))
	_ = hub.Publish(ctx, progressEvent("job-4", 50))

	ev, ok := hub.Last("job-4")
	if !ok || !ev.Terminal() {
		t.Errorf("Last() = %+v, %v; want the result", ev, ok)
	}
}

func TestHubProgressNeverRegresses(t *testing.T) {
	hub := NewHub(0)
	ctx := context.Background()

	_ = hub.Publish(ctx, progressEvent("job-5", 70))
	_ = hub.Publish(ctx, progressEvent("job-5", 30))

	ev, _ := hub.Last("job-5")
	if ev.Progress != 70 {
		t.Errorf("progress = %v, want 70", ev.Progress)
	}
}

func TestHubSlowSubscriberStillGetsResult(t *testing.T) {
	hub := NewHub(0)
	ctx := context.Background()

	ch, cancel := hub.Subscribe("job-6")
	defer cancel()

	// Nobody reads while far more than the buffer is published.
	for i := 0; i < subscriberBuffer*4; i++ {
		_ = hub.Publish(ctx, progressEvent("job-6", float64(i)))
	}
	_ = hub.Publish(ctx, FromResult(converter.Result{JobID: "job-6", Success: true}))

	got := drain(t, ch)
	if len(got) == 0 || !got[len(got)-1].Terminal() {
		t.Fatalf("last received event is not the result: %+v", got)
	}
	if len(got) > subscriberBuffer {
		t.Errorf("received %d events, buffer is %d", len(got), subscriberBuffer)
	}
}

func TestHubCancelIsIdempotent(t *testing.T) {
	hub := NewHub(0)

	ch, cancel := hub.Subscribe("job-7")
	cancel()
	cancel()

	if _, ok := <-ch; ok {
		t.Error("channel should be closed after cancel")
	}

	// A result after the reader left must not panic on a closed channel.
	_ = hub.Publish(context.Background(), FromResult(converter.Result{JobID: "job-7"}))
}

func TestHubCancelAfterResult(_ *testing.T) {
	hub := NewHub(0)

	_, cancel := hub.Subscribe("job-8")
	_ = hub.Publish(context.Background(), FromResult(converter.Result{JobID: "job-8"}))
	cancel()
}

func TestHubClose(t *testing.T) {
	hub := NewHub(0)

	ch, cancel := hub.Subscribe("job-9")
	defer cancel()

	hub.Close()
	hub.Close()

	if _, ok := <-ch; ok {
		t.Error("channel should be closed by Close")
	}

	late, lateCancel := hub.Subscribe("job-9")
	defer lateCancel()
	if _, ok := <-late; ok {
		t.Error("subscription after Close should be closed")
	}
}

func TestHubRetention(t *testing.T) {
	hub := NewHub(2)
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		_ = hub.Publish(ctx, FromResult(converter.Result{JobID: id, Success: true}))
	}

	if _, ok := hub.Last("a"); ok {
		t.Error("oldest finished job should have been forgotten")
	}
	for _, id := range []string{"b", "c"} {
		if _, ok := hub.Last(id); !ok {
			t.Errorf("job %s should still be retained", id)
		}
	}
}

func TestHubRejectsEventWithoutJobID(t *testing.T) {
	hub := NewHub(0)
	if err := hub.Publish(context.Background(), Event{Type: TypeProgress}); err == nil {
		t.Error("expected error for event without job id")
	}
}

func TestHubConcurrentPublishers(t *testing.T) {
	hub := NewHub(0)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ch, cancel := hub.Subscribe("shared")
			defer cancel()
			for range ch {
			}
		}()
	}

	for pct := 0; pct <= 100; pct++ {
		_ = hub.Publish(ctx, progressEvent("shared", float64(pct)))
	}
	// Subscribers may register after the result; they still see it and exit.
	_ = hub.Publish(ctx, FromResult(converter.Result{JobID: "shared", Success: true}))
	wg.Wait()
}

func TestMultiPublishesToAll(t *testing.T) {
	var mu sync.Mutex
	var calls []string
	record := func(name string, err error) Publisher {
		return PublisherFunc(func(_ context.Context, _ Event) error {
			mu.Lock()
			defer mu.Unlock()
			calls = append(calls, name)
			return err
		})
	}

	boom := errors.New("boom")
	m := Multi{record("first", boom), record("second", nil)}

	err := m.Publish(context.Background(), progressEvent("x", 1))
	if !errors.Is(err, boom) {
		t.Errorf("Publish() error = %v, want to wrap %v", err, boom)
	}
	if len(calls) != 2 || calls[0] != "first" || calls[1] != "second" {
		t.Errorf("calls = %v, want [first second]", calls)
	}
}

func TestFromResult(t *testing.T) {
	tests := []struct {
		name         string
		res          converter.Result
		wantProgress float64
		wantStatus   converter.Status
	}{
		{"success", converter.Result{JobID: "a", Success: true}, 100, converter.StatusCompleted},
		{"failure", converter.Result{JobID: "b", Error: "x"}, 0, converter.StatusFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev := FromResult(tt.res)
			if ev.JobID != tt.res.JobID || ev.Progress != tt.wantProgress || ev.Status != tt.wantStatus {
				t.Errorf("FromResult() = %+v", ev)
			}
			if !ev.Terminal() {
				t.Error("result event should be terminal")
			}
		})
	}
}

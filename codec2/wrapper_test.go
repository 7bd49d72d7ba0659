package codec2_test

import (
	"sync"
	"testing"
	"time"

	"github.com/ausocean/codec2/codec2"
)

// fakeProcessor counts jobs handled and immediately "completes" every
// job it's given, for exercising the Wrapper's FIFO/state machine
// without a real backend.
type fakeProcessor struct {
	mu      sync.Mutex
	handled []*codec2.EncodeJob
}

func (p *fakeProcessor) Handle(job *codec2.EncodeJob) (*codec2.EncodeJob, bool, bool, error) {
	p.mu.Lock()
	p.handled = append(p.handled, job)
	p.mu.Unlock()

	if job.IsEmpty() {
		if job.DrainMode == codec2.SyntheticDrain {
			return nil, false, false, nil
		}
		return &codec2.EncodeJob{Ts: job.Ts, DrainMode: job.DrainMode}, true, false, nil
	}
	return &codec2.EncodeJob{Ts: job.Ts, Output: []byte{0xAA}}, true, false, nil
}

func (p *fakeProcessor) Poll() (*codec2.EncodeJob, bool, bool, error) { return nil, false, false, nil }
func (p *fakeProcessor) Close() error                                 { return nil }

func TestWrapperStartQueueStop(t *testing.T) {
	proc := &fakeProcessor{}
	done := make(chan *codec2.EncodeJob, 16)

	w := codec2.New[*codec2.EncodeJob](proc, codec2.Callbacks[*codec2.EncodeJob]{
		WorkDoneCb: func(j *codec2.EncodeJob) { done <- j },
	})
	defer w.Release()

	if w.State() != codec2.Stopped {
		t.Fatalf("expected initial state Stopped, got %v", w.State())
	}

	if err := w.Queue(&codec2.EncodeJob{}); err == nil {
		t.Fatal("expected BadState queueing before Start")
	}

	if err := w.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if w.State() != codec2.Running {
		t.Fatalf("expected Running after Start, got %v", w.State())
	}

	if err := w.Queue(&codec2.EncodeJob{Ts: 1}); err != nil {
		t.Fatalf("Queue: %v", err)
	}

	select {
	case j := <-done:
		if j.Ts != 1 {
			t.Fatalf("expected job with Ts=1, got %+v", j)
		}
	}

	if err := w.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if w.State() != codec2.Stopped {
		t.Fatalf("expected Stopped after Stop, got %v", w.State())
	}
}

func TestWrapperStartTwiceIsBadState(t *testing.T) {
	proc := &fakeProcessor{}
	w := codec2.New[*codec2.EncodeJob](proc, codec2.Callbacks[*codec2.EncodeJob]{})
	defer w.Release()

	if err := w.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := w.Start(); err == nil {
		t.Fatal("expected BadState on second Start")
	}
}

func TestWrapperResetNeverFailsWhenAlreadyStopped(t *testing.T) {
	proc := &fakeProcessor{}
	w := codec2.New[*codec2.EncodeJob](proc, codec2.Callbacks[*codec2.EncodeJob]{})
	defer w.Release()

	w.Reset() // must not panic or block, even though never started.
	if w.State() != codec2.Stopped {
		t.Fatalf("expected Stopped, got %v", w.State())
	}
}

// retryOnceProcessor reports back-pressure (retry=true) the first time
// it sees a given job's timestamp, then completes it on the second
// Handle call, simulating a Processor that ran out of a resource (a
// scratch frame, an output picture) and recovered.
type retryOnceProcessor struct {
	mu      sync.Mutex
	retried map[int64]bool
	handled []int64
}

func (p *retryOnceProcessor) Handle(job *codec2.EncodeJob) (*codec2.EncodeJob, bool, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.handled = append(p.handled, job.Ts)

	if job.DrainMode != codec2.NoDrain {
		return nil, false, false, nil
	}
	if !p.retried[job.Ts] {
		p.retried[job.Ts] = true
		return nil, false, true, nil
	}
	return &codec2.EncodeJob{Ts: job.Ts}, true, false, nil
}

func (p *retryOnceProcessor) Poll() (*codec2.EncodeJob, bool, bool, error) { return nil, false, false, nil }
func (p *retryOnceProcessor) Close() error                                 { return nil }

func TestWrapperRetryPushesJobBackToFifoHeadUntilItSucceeds(t *testing.T) {
	proc := &retryOnceProcessor{retried: map[int64]bool{}}
	done := make(chan *codec2.EncodeJob, 16)

	w := codec2.New[*codec2.EncodeJob](proc, codec2.Callbacks[*codec2.EncodeJob]{
		WorkDoneCb: func(j *codec2.EncodeJob) { done <- j },
	})
	defer w.Release()

	if err := w.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := w.Queue(&codec2.EncodeJob{Ts: 7}); err != nil {
		t.Fatalf("Queue: %v", err)
	}

	select {
	case j := <-done:
		if j.Ts != 7 {
			t.Fatalf("expected the retried job (Ts=7) to eventually complete, got %+v", j)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a back-pressured job to be retried and complete")
	}

	proc.mu.Lock()
	defer proc.mu.Unlock()
	if len(proc.handled) < 2 {
		t.Fatalf("expected Handle to run at least twice (retry then success), got %d calls: %v", len(proc.handled), proc.handled)
	}
}

func TestDrainModeStrings(t *testing.T) {
	cases := map[codec2.DrainMode]string{
		codec2.NoDrain:        "NoDrain",
		codec2.EOSDrain:       "EOSDrain",
		codec2.NoEOSDrain:     "NoEOSDrain",
		codec2.SyntheticDrain: "SyntheticDrain",
	}
	for mode, want := range cases {
		if got := mode.String(); got != want {
			t.Errorf("DrainMode(%d).String() = %q, want %q", mode, got, want)
		}
	}
}

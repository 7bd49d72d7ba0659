/*
NAME
  wrapper.go

DESCRIPTION
  wrapper.go implements the Wrapper: the lifecycle state machine, job
  FIFO and worker goroutine shared by both the encoder and decoder
  pipelines. A Wrapper is generic over its Job type and knows nothing
  about what a job actually does; that behaviour is injected as a
  Processor at construction time (see codec2/encoder and
  codec2/decoder).

AUTHORS
  Saxon A. Nelson-Milton <saxon@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package codec2

import (
	"sync"
	"time"

	"github.com/pkg/errors"
)

// pollInterval is how long the worker waits on the FIFO condition
// variable before giving the Processor a chance to poll the backend for
// completions. Backend completion is poll-driven, not interrupt-driven,
// so the worker cannot simply block forever on new work.
const pollInterval = 10 * time.Millisecond

// Callbacks are invoked on the worker goroutine as a Wrapper runs.
type Callbacks[J Job] struct {
	// ErrorCb is informational: after it fires the host must call Reset
	// before Start again.
	ErrorCb func(Status, error)

	// WorkDoneCb fires exactly once per submitted job, in FIFO order,
	// including EOS/NoEOS drains but excluding SyntheticDrain jobs.
	//
	// The framepool hint (si.MinNumFrames) is delivered separately, by
	// whichever Processor owns the backend negotiation that produces it
	// (see codec2/decoder.New's hint parameter), since it fires once at
	// construction/negotiation time rather than per job.
	WorkDoneCb func(J)
}

// Processor supplies the behaviour a Wrapper's worker goroutine runs for
// each job: submitting to the backend, polling for completions, and
// reporting results back through WorkDoneCb-shaped return values.
//
// Handle is called once per job popped from the FIFO. It returns the
// outbound job to deliver via WorkDoneCb (if emit is true) and any
// backend error, which the Wrapper maps to Error state + ErrorCb.
// retry=true is back-pressure, not an error: the Processor ran out of a
// resource it needs (a scratch frame, an output picture) to handle this
// job right now. The Wrapper pushes the same job back onto the FIFO
// head, unchanged, and retries it on a later tick once Poll has had a
// chance to free resources.
type Processor[J Job] interface {
	Handle(job J) (out J, emit bool, retry bool, err error)

	// Poll is called on every worker tick regardless of whether a job
	// was just handled, since backend completions race ahead of job
	// submission for poll-driven backends. It returns ok=false when
	// nothing completed this tick.
	Poll() (out J, emit bool, ok bool, err error)

	// Close releases backend resources; called once as the worker exits.
	Close() error
}

// Wrapper is the lifecycle/queue half of the codec2 pipeline, generic
// over the Job type (DecodeJob or EncodeJob) a Processor knows how to
// run.
type Wrapper[J Job] struct {
	proc Processor[J]
	cbs  Callbacks[J]

	mu    sync.Mutex
	cond  *sync.Cond
	state State
	fifo  []J

	workerDone chan struct{}
}

// New spawns the worker goroutine in Stopped state and installs
// callbacks. Construction never fails; backend errors surface later, at
// Start or during job processing.
func New[J Job](proc Processor[J], cbs Callbacks[J]) *Wrapper[J] {
	w := &Wrapper[J]{
		proc:       proc,
		cbs:        cbs,
		state:      Stopped,
		workerDone: make(chan struct{}),
	}
	w.cond = sync.NewCond(&w.mu)
	go w.run()
	return w
}

// Start transitions Stopped -> Running and wakes the worker.
func (w *Wrapper[J]) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.state != Stopped {
		return ErrBadState("start")
	}
	w.state = Running
	w.cond.Broadcast()
	return nil
}

// Stop transitions Running -> Stopping, discards every queued input job
// (any job already popped off the FIFO and in flight at the backend
// still runs to completion), wakes the worker, and waits until it
// reaches Stopped.
func (w *Wrapper[J]) Stop() error {
	w.mu.Lock()
	if w.state != Running {
		w.mu.Unlock()
		return ErrBadState("stop")
	}
	w.state = Stopping
	w.fifo = nil
	w.cond.Broadcast()
	for w.state == Stopping {
		w.cond.Wait()
	}
	w.mu.Unlock()
	return nil
}

// Reset behaves like Stop but never reports BadState if the wrapper is
// already stopped, since a host recovering from Error always calls Reset
// unconditionally. Like Stop, it discards every queued input job.
func (w *Wrapper[J]) Reset() {
	w.mu.Lock()
	if w.state == Stopped || w.state == Release {
		w.mu.Unlock()
		return
	}
	w.state = Stopping
	w.fifo = nil
	w.cond.Broadcast()
	for w.state == Stopping {
		w.cond.Wait()
	}
	w.mu.Unlock()
}

// Queue appends jobs to the input FIFO and wakes the worker. Requires
// Running.
func (w *Wrapper[J]) Queue(jobs ...J) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.state != Running {
		return ErrBadState("queue")
	}
	w.fifo = append(w.fifo, jobs...)
	w.cond.Broadcast()
	return nil
}

// Flush atomically extracts every queued job into out and appends a
// SyntheticDrain job so the worker observes end-of-queue. Requires
// Running.
func (w *Wrapper[J]) Flush(synthetic J) ([]J, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.state != Running {
		return nil, ErrBadState("flush")
	}
	out := w.fifo
	w.fifo = nil
	w.fifo = append(w.fifo, synthetic)
	w.cond.Broadcast()
	return out, nil
}

// Drain appends a SyntheticDrain job to the FIFO. Requires Running.
func (w *Wrapper[J]) Drain(synthetic J) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.state != Running {
		return ErrBadState("drain")
	}
	w.fifo = append(w.fifo, synthetic)
	w.cond.Broadcast()
	return nil
}

// State returns the wrapper's current lifecycle state.
func (w *Wrapper[J]) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// Release transitions to the terminal state and joins the worker
// goroutine. Release is idempotent.
func (w *Wrapper[J]) Release() {
	w.Reset()

	w.mu.Lock()
	if w.state == Release {
		w.mu.Unlock()
		return
	}
	w.state = Release
	w.cond.Broadcast()
	w.mu.Unlock()

	<-w.workerDone
}

// run is the worker goroutine body. Only it ever calls into the
// Processor (hence the backend); the Wrapper's public methods touch only
// the FIFO and state, guarded by the same mutex, with the FIFO mutex
// never held across a Processor call.
func (w *Wrapper[J]) run() {
	defer close(w.workerDone)
	defer w.proc.Close()

	for {
		w.mu.Lock()
		for w.state == Stopped || w.state == Error {
			w.cond.Wait()
		}
		if w.state == Release {
			w.mu.Unlock()
			return
		}

		var job J
		var haveJob bool
		if len(w.fifo) > 0 {
			job = w.fifo[0]
			w.fifo = w.fifo[1:]
			haveJob = true
		} else if w.state == Stopping {
			w.state = Stopped
			w.cond.Broadcast()
			w.mu.Unlock()
			continue
		}
		currentState := w.state
		w.mu.Unlock()

		if currentState == Release {
			return
		}

		retried := false
		if haveJob {
			out, emit, retry, err := w.proc.Handle(job)
			if err != nil {
				w.fail(err)
				continue
			}
			if retry {
				retried = true
				w.mu.Lock()
				w.fifo = append([]J{job}, w.fifo...)
				w.mu.Unlock()
			} else {
				if emit && w.cbs.WorkDoneCb != nil {
					w.cbs.WorkDoneCb(out)
				}
				if job.Drain() == EOSDrain {
					w.mu.Lock()
					if w.state == Running {
						w.state = Stopped
						w.cond.Broadcast()
					}
					w.mu.Unlock()
				}
			}
		}

		if out, emit, ok, err := w.proc.Poll(); err != nil {
			w.fail(err)
		} else if ok && emit && w.cbs.WorkDoneCb != nil {
			w.cbs.WorkDoneCb(out)
		}

		if !haveJob || retried {
			time.Sleep(pollInterval)
		}
	}
}

// fail transitions the wrapper to Error and invokes ErrorCb. Called only
// from the worker goroutine.
func (w *Wrapper[J]) fail(err error) {
	w.mu.Lock()
	w.state = Error
	w.cond.Broadcast()
	w.mu.Unlock()

	if w.cbs.ErrorCb != nil {
		w.cbs.ErrorCb(StatusBadValue, errors.Wrap(err, "codec2: worker"))
	}
}

package controller

import (
	"math/rand/v2"
	"time"

	"github.com/google/uuid"

	"github.com/dronemesh/meshsim/internal/node"
)

// RepeatedSendParams is the fixed template send_packet is re-invoked
// with by a repeated-sending job: the payload and hop list stay
// constant across iterations, only the session id varies, so the
// receiving host's fragment reassembly never confuses two iterations.
type RepeatedSendParams struct {
	Sender      node.ID
	Payload     node.Payload
	Hops        []node.ID
	BaseSession uint64
}

// repeatedJob tracks the one outstanding repeated-send worker, modeled
// as a dedicated goroutine driven by a cancel channel rather than a
// language-level coroutine.
type repeatedJob struct {
	id     string
	cancel chan struct{}
	done   chan struct{}
}

// StartRepeatedSending spawns a worker that calls send_packet up to
// count times, sleeping interval (jittered +/-10% when randomize is
// set) between sends, until count is reached or StopRepeatedSending
// cancels it. Only one job may run at a time.
func (c *Controller) StartRepeatedSending(params RepeatedSendParams, count int, interval time.Duration, randomize bool) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.status != StatusRunning {
		return "", networkNotRunning()
	}
	if c.repeated != nil {
		return "", invalidOperation("a repeated-send job is already running")
	}
	if count <= 0 {
		return "", invalidOperation("count must be positive")
	}

	job := &repeatedJob{
		id:     uuid.NewString(),
		cancel: make(chan struct{}),
		done:   make(chan struct{}),
	}
	c.repeated = job

	go c.runRepeatedSend(job, params, count, interval, randomize)
	return job.id, nil
}

func (c *Controller) runRepeatedSend(job *repeatedJob, params RepeatedSendParams, count int, interval time.Duration, randomize bool) {
	defer c.finishRepeated(job)

	for i := 0; i < count; i++ {
		select {
		case <-job.cancel:
			return
		default:
		}

		session := params.BaseSession + uint64(i)
		_ = c.SendPacket(params.Sender, session, params.Payload, params.Hops)

		wait := interval
		if randomize && wait > 0 {
			jitter := time.Duration(rand.Int64N(int64(wait)/5+1)) - time.Duration(int64(wait)/10)
			wait += jitter
		}
		select {
		case <-job.cancel:
			return
		case <-time.After(wait):
		}
	}
}

// finishRepeated clears c.repeated once job's worker exits, whether by
// running to natural completion or by cancellation, so a later
// StartRepeatedSending is never stuck behind a job that already ended.
// The identity check guards against a race with a concurrent Stop /
// StopRepeatedSending that already cleared or replaced c.repeated.
func (c *Controller) finishRepeated(job *repeatedJob) {
	c.mu.Lock()
	if c.repeated == job {
		c.repeated = nil
	}
	c.mu.Unlock()
	close(job.done)
}

// StopRepeatedSending signals the running job's cancel flag. It does
// not wait for the worker to observe it.
func (c *Controller) StopRepeatedSending() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stopRepeatedLocked()
}

func (c *Controller) stopRepeatedLocked() error {
	if c.repeated == nil {
		return invalidOperation("no repeated-send job is running")
	}
	close(c.repeated.cancel)
	c.repeated = nil
	return nil
}

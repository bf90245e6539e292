package controller

import (
	"testing"
	"time"

	"github.com/dronemesh/meshsim/internal/node"
)

func TestStartRepeatedSendingRunsToCompletionAndClearsState(t *testing.T) {
	c := newTestController(t)
	loadViaFile(t, c, triangleConfig())
	if err := c.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer c.Stop()

	params := RepeatedSendParams{
		Sender: 10,
		Payload: node.Payload{
			Kind: node.PayloadMsgFragment,
			MsgFragment: node.MsgFragment{
				FragmentIndex:  0,
				TotalFragments: 1,
				Length:         2,
			},
		},
		Hops:        []node.ID{10, 1, 20},
		BaseSession: 1000,
	}

	if _, err := c.StartRepeatedSending(params, 2, 10*time.Millisecond, false); err != nil {
		t.Fatalf("StartRepeatedSending: %v", err)
	}

	// Give the job time to run its 2 iterations to natural completion
	// (well beyond 2*10ms) before probing whether it unstuck itself.
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		c.mu.Lock()
		done := c.repeated == nil
		c.mu.Unlock()
		if done {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	c.mu.Lock()
	stillSet := c.repeated != nil
	c.mu.Unlock()
	if stillSet {
		t.Fatal("expected c.repeated to clear once the job ran to natural completion")
	}

	if _, err := c.StartRepeatedSending(params, 1, 10*time.Millisecond, false); err != nil {
		t.Fatalf("expected a second StartRepeatedSending to succeed after the first completed naturally, got: %v", err)
	}
	if err := c.StopRepeatedSending(); err != nil {
		t.Fatalf("StopRepeatedSending: %v", err)
	}
}

func TestStartRepeatedSendingRejectsConcurrentJob(t *testing.T) {
	c := newTestController(t)
	loadViaFile(t, c, triangleConfig())
	if err := c.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer c.Stop()

	params := RepeatedSendParams{
		Sender: 10,
		Payload: node.Payload{
			Kind: node.PayloadMsgFragment,
			MsgFragment: node.MsgFragment{
				FragmentIndex:  0,
				TotalFragments: 1,
				Length:         2,
			},
		},
		Hops:        []node.ID{10, 1, 20},
		BaseSession: 2000,
	}

	if _, err := c.StartRepeatedSending(params, 100, time.Second, false); err != nil {
		t.Fatalf("StartRepeatedSending: %v", err)
	}
	defer c.StopRepeatedSending()

	if _, err := c.StartRepeatedSending(params, 1, time.Millisecond, false); err == nil {
		t.Fatal("expected a second concurrent StartRepeatedSending to fail")
	}
}

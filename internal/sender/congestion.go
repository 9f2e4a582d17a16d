// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package sender

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

// Congestion implements the client-local slow-start ramp: cwnd starts
// at 1, grows by one on a burst where every packet was acknowledged,
// and resets to 1 on any failed burst. It is invisible to the wire —
// only the effective window size it produces ever leaves this type.
//
// The number of chunks in a burst is bounded by EffectiveWindow. Each
// chunk also passes through a token-bucket limiter whose burst size
// follows cwnd; its rate is unlimited (rate.Inf), so it never delays a
// send.
type Congestion struct {
	mu      sync.Mutex
	cwnd    int
	max     int
	limiter *rate.Limiter
}

// NewCongestion builds a ramp bounded above by windowSize (the
// session's negotiated W).
func NewCongestion(windowSize int) *Congestion {
	if windowSize < 1 {
		windowSize = 1
	}
	return &Congestion{
		cwnd:    1,
		max:     windowSize,
		limiter: rate.NewLimiter(rate.Inf, windowSize),
	}
}

// EffectiveWindow returns min(cwnd, W) for the next burst.
func (c *Congestion) EffectiveWindow() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cwnd
}

// OnBurstResult updates cwnd after a burst completes: grow by one
// (capped at W) if every packet in the burst was acknowledged,
// otherwise reset to 1.
func (c *Congestion) OnBurstResult(allAcked bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if allAcked {
		c.cwnd++
		if c.cwnd > c.max {
			c.cwnd = c.max
		}
	} else {
		c.cwnd = 1
	}
	c.limiter.SetBurst(c.cwnd)
}

// Pace consumes one token from the burst limiter. Because the
// limiter's rate is unlimited, it returns without blocking.
func (c *Congestion) Pace(ctx context.Context) error {
	return c.limiter.WaitN(ctx, 1)
}

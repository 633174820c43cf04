// Copyright 2026 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package rag

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/poiesic/ragstore/ai"
)

// retryGeneration invokes operation up to the configured attempt bound with
// exponential backoff between attempts. Cancellation and deadline errors are
// never retried and pass through unwrapped so callers can test for them; any
// other error surviving all attempts is reported as an upstream failure.
func (o *Orchestrator) retryGeneration(ctx context.Context, operation func() error) error {
	var lastErr error
	for attempt := 1; attempt <= o.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = operation()
		if lastErr == nil {
			if attempt > 1 {
				o.logger.Debug("generation succeeded after retry", "attempt", attempt)
			}
			return nil
		}
		if errors.Is(lastErr, context.Canceled) || errors.Is(lastErr, context.DeadlineExceeded) {
			return lastErr
		}

		o.logger.Debug("generation attempt failed", "attempt", attempt, "maxAttempts", o.maxAttempts, "error", lastErr)

		if attempt == o.maxAttempts {
			break
		}

		// baseDelay * 2^(attempt-1)
		delay := o.baseDelay << (attempt - 1)
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	return fmt.Errorf("%w: %v", ai.ErrUpstream, lastErr)
}

package core

import (
	"context"
	"sync"
	"time"
)

// Subscription is a running poll loop started by Subscribe.
type Subscription struct {
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// Subscribe calls fn immediately and then every interval until Stop is
// called or ctx ends. Calls never overlap: a slow fn delays the next tick.
func Subscribe(ctx context.Context, interval time.Duration, fn func(context.Context)) *Subscription {
	ctx, cancel := context.WithCancel(ctx)
	s := &Subscription{cancel: cancel, done: make(chan struct{})}

	go func() {
		defer close(s.done)
		fn(ctx)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if ctx.Err() != nil {
					return
				}
				fn(ctx)
			}
		}
	}()

	return s
}

// Stop cancels the loop and waits for the polling goroutine to exit. After
// Stop returns fn is never called again. Safe to call more than once.
func (s *Subscription) Stop() {
	s.once.Do(s.cancel)
	<-s.done
}

// Done is closed when the polling goroutine has exited.
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

// Package eventbus distributes in-process notifications between the
// client state, the dashboard, and the restarter's output feed.
package eventbus

import "context"

// Bus is a thin abstraction over the internal event distribution mechanism.
// Publish never blocks on a slow subscriber; a full subscriber channel misses
// the payload.
type Bus interface {
	Publish(ctx context.Context, topic string, payload any) error
	Subscribe(topic string, ch chan<- any) (unsubscribe func(), err error)
}

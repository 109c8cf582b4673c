package queue

import "context"

// Client hands a checkpointed run off to a worker. Implementations must not
// retain msg after Send returns.
type Client interface {
	Send(ctx context.Context, msg Message) error
}

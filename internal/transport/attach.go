// Package transport implements the adapters that sit between the event hub
// and the outside world: stdio line protocol, the HTTP/WebSocket surface,
// and the wire encodings each speaks. None of it mutates the Session
// directly; every adapter attaches as a hub.Client and talks to the hub over
// channels, same as internal/sshattach does.
package transport

import (
	"context"
	"fmt"
	"time"

	"github.com/andyk/ht/internal/hub"
	"github.com/andyk/ht/internal/session"
)

// subscribeTimeout bounds how long an adapter waits for the hub to fulfil an
// attach request before giving up.
const subscribeTimeout = 5 * time.Second

// Attach sends a Client to the hub's client channel and waits up to
// subscribeTimeout for the reply. On timeout it returns
// session.ErrSubscribeTimeout; callers should treat that as the hub being
// unavailable.
func Attach(ctx context.Context, clients chan<- hub.Client) (session.Subscription, error) {
	return attachWithTimeout(ctx, clients, subscribeTimeout)
}

func attachWithTimeout(ctx context.Context, clients chan<- hub.Client, timeout time.Duration) (session.Subscription, error) {
	reply := make(chan session.Subscription, 1)

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	select {
	case clients <- hub.Client{Reply: reply}:
	case <-ctx.Done():
		return session.Subscription{}, fmt.Errorf("transport: %w", session.ErrSubscribeTimeout)
	}

	select {
	case sub := <-reply:
		return sub, nil
	case <-ctx.Done():
		return session.Subscription{}, fmt.Errorf("transport: %w", session.ErrSubscribeTimeout)
	}
}

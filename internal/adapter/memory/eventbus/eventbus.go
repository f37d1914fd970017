package eventbus

import (
	"context"
	"sync"

	"github.com/agentprovision/orchestrator/internal/domain/event"
	porteventbus "github.com/agentprovision/orchestrator/internal/port/eventbus"
)

var _ porteventbus.Bus = (*Bus)(nil)

// Bus is an in-process fanout bus. Handlers run synchronously on the
// publishing goroutine; anything slow (a scheduling pass, a broadcast) is
// expected to hand off to its own worker.
type Bus struct {
	mu   sync.RWMutex
	subs map[event.Channel]map[*subscription]struct{}
}

func New() *Bus {
	return &Bus{subs: make(map[event.Channel]map[*subscription]struct{})}
}

func (b *Bus) Publish(ctx context.Context, e event.Event) error {
	ch := event.ChannelFor(e.Type)

	b.mu.RLock()
	handlers := make([]porteventbus.Handler, 0, len(b.subs[ch]))
	for sub := range b.subs[ch] {
		handlers = append(handlers, sub.handler)
	}
	b.mu.RUnlock()

	for _, h := range handlers {
		h(ctx, e)
	}
	return nil
}

func (b *Bus) Subscribe(_ context.Context, ch event.Channel, handler porteventbus.Handler) (porteventbus.Subscription, error) {
	sub := &subscription{bus: b, channel: ch, handler: handler}

	b.mu.Lock()
	if b.subs[ch] == nil {
		b.subs[ch] = make(map[*subscription]struct{})
	}
	b.subs[ch][sub] = struct{}{}
	b.mu.Unlock()

	return sub, nil
}

type subscription struct {
	bus     *Bus
	channel event.Channel
	handler porteventbus.Handler
}

func (s *subscription) Unsubscribe() {
	s.bus.mu.Lock()
	delete(s.bus.subs[s.channel], s)
	s.bus.mu.Unlock()
}

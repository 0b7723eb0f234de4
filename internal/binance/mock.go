package binance

import "context"

// MockFeed is a DepthFeed for tests and demos: events are pushed in by the
// test instead of arriving from the network.
type MockFeed struct {
	events chan Event
	errors chan error
	ctx    context.Context
	cancel context.CancelFunc
}

func NewMockFeed() *MockFeed {
	return &MockFeed{
		events: make(chan Event, 64),
		errors: make(chan error, 16),
	}
}

func (m *MockFeed) Run(ctx context.Context, onStatus func(connected bool)) {
	m.ctx, m.cancel = context.WithCancel(ctx)
	go func() {
		onStatus(true)
		<-m.ctx.Done()
	}()
}

func (m *MockFeed) Events() <-chan Event { return m.events }
func (m *MockFeed) Errors() <-chan error { return m.errors }

func (m *MockFeed) Close() {
	if m.cancel != nil {
		m.cancel()
	}
	close(m.events)
	close(m.errors)
}

// Helpers for tests
func (m *MockFeed) Send(ev Event)   { m.events <- ev }
func (m *MockFeed) SendErr(e error) { m.errors <- e }

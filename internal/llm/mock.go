package llm

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
)

// MockResponse is one scripted reply. A non-nil Err is returned as is;
// otherwise Content goes through the same truncation and schema checks as a
// real provider's output.
type MockResponse struct {
	Content json.RawMessage
	Usage   Usage
	Stop    StopReason // empty means StopEnd
	Err     error
}

// Responder answers requests once the queued replies run out.
type Responder func(Request) MockResponse

var errScriptExhausted = errors.New("mock: no scripted reply left")

// MockProvider is a scripted Provider. It serves queued replies first, then
// its Responder, and fails with UnavailableError when it has neither.
type MockProvider struct {
	mu      sync.Mutex
	queue   []MockResponse
	respond Responder
	calls   []Request
}

func NewMockProvider(queue ...MockResponse) *MockProvider {
	return &MockProvider{queue: queue}
}

// Add queues reply after the ones already scripted.
func (m *MockProvider) Add(reply MockResponse) {
	m.mu.Lock()
	m.queue = append(m.queue, reply)
	m.mu.Unlock()
}

// Respond installs fn for requests beyond the queue.
func (m *MockProvider) Respond(fn Responder) {
	m.mu.Lock()
	m.respond = fn
	m.mu.Unlock()
}

func (m *MockProvider) Generate(_ context.Context, req Request) (*Response, error) {
	reply, ok := m.next(req)
	if !ok {
		return nil, &UnavailableError{Err: errScriptExhausted}
	}
	if reply.Err != nil {
		return nil, reply.Err
	}
	stop := reply.Stop
	if stop == "" {
		stop = StopEnd
	}
	return finish(req, reply.Content, reply.Usage, m.ModelID(), stop)
}

func (m *MockProvider) next(req Request) (MockResponse, bool) {
	m.mu.Lock()
	m.calls = append(m.calls, req)
	if len(m.queue) > 0 {
		r := m.queue[0]
		m.queue = m.queue[1:]
		m.mu.Unlock()
		return r, true
	}
	fn := m.respond
	m.mu.Unlock()
	if fn == nil {
		return MockResponse{}, false
	}
	return fn(req), true
}

func (m *MockProvider) ModelID() string { return "mock" }

// Calls returns a copy of every request received, in order.
func (m *MockProvider) Calls() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Request(nil), m.calls...)
}

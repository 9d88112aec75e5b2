package chathub_test

import (
	"sync"

	"supportdesk/backend/internal/chathub"
)

type MockClient struct {
	id           string
	requesterKey string
	admin        bool
	RecvChannel  chan chathub.Frame

	closeOnce sync.Once
	closed    chan struct{}
}

func newMockClient(id, requesterKey string, admin bool, buffer int) *MockClient {
	return &MockClient{
		id:           id,
		requesterKey: requesterKey,
		admin:        admin,
		RecvChannel:  make(chan chathub.Frame, buffer),
		closed:       make(chan struct{}),
	}
}

func (c *MockClient) GetID() string                        { return c.id }
func (c *MockClient) GetRequesterKey() string              { return c.requesterKey }
func (c *MockClient) IsAdmin() bool                        { return c.admin }
func (c *MockClient) GetSendChannel() chan<- chathub.Frame { return c.RecvChannel }

func (c *MockClient) Run() {
	// Not needed for testing
}

func (c *MockClient) Close() {
	c.closeOnce.Do(func() { close(c.closed) })
}

func (c *MockClient) IsClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

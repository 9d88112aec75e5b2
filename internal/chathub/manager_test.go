package chathub_test

import (
	"context"
	"testing"
	"time"

	"supportdesk/backend/internal/chathub"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testWindow = 30 * time.Millisecond

func startHub(t *testing.T) (*chathub.ManagerService, context.CancelFunc) {
	t.Helper()
	hub := chathub.NewManagerService(zap.NewNop(), testWindow)
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	t.Cleanup(cancel)
	return hub, cancel
}

func receive(t *testing.T, c *MockClient) chathub.Frame {
	t.Helper()
	select {
	case f := <-c.RecvChannel:
		return f
	case <-time.After(time.Second):
		t.Fatalf("client %s received nothing", c.GetID())
		return chathub.Frame{}
	}
}

func assertSilent(t *testing.T, c *MockClient) {
	t.Helper()
	select {
	case f := <-c.RecvChannel:
		t.Fatalf("client %s got unexpected frame %+v", c.GetID(), f)
	case <-time.After(5 * testWindow):
	}
}

func TestManager_RoutesByRequesterKey(t *testing.T) {
	// Arrange
	hub, _ := startHub(t)
	owner := newMockClient("c1", "anon:abc", false, 4)
	other := newMockClient("c2", "anon:xyz", false, 4)
	admin := newMockClient("c3", "", true, 4)
	for _, c := range []*MockClient{owner, other, admin} {
		require.True(t, hub.Register(c))
	}

	// Act
	hub.Publish(chathub.Event{Table: "chat_messages", Op: "INSERT", SessionID: "s-1", RequesterKey: "anon:abc"})

	// Assert
	f := receive(t, owner)
	assert.Equal(t, chathub.FrameRefresh, f.Type)
	assert.Equal(t, []string{"s-1"}, f.SessionIDs)
	assert.Equal(t, []string{"s-1"}, receive(t, admin).SessionIDs)
	assertSilent(t, other)
}

func TestManager_CoalescesBursts(t *testing.T) {
	hub, _ := startHub(t)
	admin := newMockClient("admin", "", true, 4)
	require.True(t, hub.Register(admin))

	for i := 0; i < 20; i++ {
		hub.Publish(chathub.Event{SessionID: "s-2", RequesterKey: "user:1"})
		hub.Publish(chathub.Event{SessionID: "s-1", RequesterKey: "user:2"})
	}

	f := receive(t, admin)
	assert.Equal(t, []string{"s-1", "s-2"}, f.SessionIDs, "one hint per burst")
	assertSilent(t, admin)
}

func TestManager_UnregisterClosesClient(t *testing.T) {
	hub, _ := startHub(t)
	c := newMockClient("c1", "user:1", false, 4)
	require.True(t, hub.Register(c))

	hub.Unregister(c)

	assert.Eventually(t, c.IsClosed, time.Second, 5*time.Millisecond)
	hub.Publish(chathub.Event{SessionID: "s-1", RequesterKey: "user:1"})
	assertSilent(t, c)
}

func TestManager_DropsSlowClient(t *testing.T) {
	hub, _ := startHub(t)
	slow := newMockClient("slow", "", true, 0)
	require.True(t, hub.Register(slow))

	hub.Publish(chathub.Event{SessionID: "s-1"})

	assert.Eventually(t, slow.IsClosed, time.Second, 5*time.Millisecond)
}

func TestManager_StopClosesEverything(t *testing.T) {
	hub, cancel := startHub(t)
	c := newMockClient("c1", "user:1", false, 4)
	require.True(t, hub.Register(c))

	cancel()

	assert.Eventually(t, c.IsClosed, time.Second, 5*time.Millisecond)
	assert.Eventually(t, func() bool {
		return !hub.Register(newMockClient("late", "", true, 1))
	}, time.Second, 5*time.Millisecond)
	hub.Publish(chathub.Event{SessionID: "s-1"}) // must not block
}

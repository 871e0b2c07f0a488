package mcp

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/raindrop/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/raindrop/internal/core/domain"
	"github.com/custodia-labs/raindrop/internal/core/ports/driven"
	"github.com/custodia-labs/raindrop/internal/core/ports/driving"
	"github.com/custodia-labs/raindrop/internal/core/services"
	"github.com/custodia-labs/raindrop/internal/notify"
	"github.com/custodia-labs/raindrop/internal/plugins"
)

// openTestSession opens a memory-backed session with the built-in plugins.
func openTestSession(t *testing.T) *services.Session {
	t.Helper()
	session, err := services.OpenSession(context.Background(), memory.NewProvider(), domain.LocalUser, true,
		services.SessionOptions{
			LockTimeout: time.Second,
			Scheduler:   domain.DefaultSchedulerConfig(true),
			Providers:   []driven.PluginProvider{plugins.Default()},
		})
	require.NoError(t, err)
	t.Cleanup(func() { _ = session.Close() })
	return session
}

// newTestServer returns a server over a fresh session.
func newTestServer(t *testing.T) (*Server, *services.Session) {
	t.Helper()
	session := openTestSession(t)
	server, err := NewServer(&Ports{
		Types:   session.Types(),
		Items:   session.Items(),
		Plugins: session.Plugins(),
	})
	require.NoError(t, err)
	return server, session
}

// createType creates a type named name.
func createType(t *testing.T, session *services.Session, name string) *domain.TypeHandle {
	t.Helper()
	h, err := session.Types().CreateType(context.Background(), domain.TypeInfo{DisplayName: name})
	require.NoError(t, err)
	return h
}

// mockItemService is a mock implementation of driving.ItemService.
type mockItemService struct {
	item  *domain.Item
	items []domain.Item
	err   error
}

var _ driving.ItemService = (*mockItemService)(nil)

func (m *mockItemService) Put(_ context.Context, _, _ uuid.UUID, _ []byte) (*domain.Item, error) {
	return m.item, m.err
}

func (m *mockItemService) Delete(_ context.Context, _ uuid.UUID) error {
	return m.err
}

func (m *mockItemService) Get(_ context.Context, _ uuid.UUID, _ bool) (*domain.Item, error) {
	return m.item, m.err
}

func (m *mockItemService) GetVersion(_ context.Context, _ uuid.UUID) (*domain.Item, error) {
	return m.item, m.err
}

func (m *mockItemService) History(_ context.Context, _ uuid.UUID) ([]domain.Item, error) {
	return m.items, m.err
}

func (m *mockItemService) List(_ context.Context, _ domain.ItemQuery) ([]domain.Item, error) {
	return m.items, m.err
}

func (m *mockItemService) Subscribe(typeID uuid.UUID) (*notify.Subscription, error) {
	if m.err != nil {
		return nil, m.err
	}
	return notify.NewHub(uuid.Nil).Subscribe(typeID), nil
}

// makeReadResourceRequest creates a ReadResourceRequest for testing.
func makeReadResourceRequest(uri string) *mcp.ReadResourceRequest {
	return &mcp.ReadResourceRequest{
		Params: &mcp.ReadResourceParams{URI: uri},
	}
}

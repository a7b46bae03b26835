package mocks

import (
	"context"

	"github.com/absmach/modelfactory/pkg/mqtt"
	"github.com/absmach/modelfactory/run"
	"github.com/stretchr/testify/mock"
)

var _ mqtt.PubSub = (*MockPubSub)(nil)

// MockPubSub is a mock implementation of the PubSub interface for testing.
type MockPubSub struct {
	mock.Mock
}

func (m *MockPubSub) PublishEpoch(ctx context.Context, ep run.Epoch) error {
	args := m.Called(ctx, ep)

	return args.Error(0)
}

func (m *MockPubSub) PublishRun(ctx context.Context, r run.Run) error {
	args := m.Called(ctx, r)

	return args.Error(0)
}

func (m *MockPubSub) SubscribeRequests(ctx context.Context, h mqtt.RequestHandler) error {
	args := m.Called(ctx, h)

	return args.Error(0)
}

func (m *MockPubSub) WatchRun(ctx context.Context, runID string, h mqtt.ProgressHandler) (func(context.Context) error, error) {
	args := m.Called(ctx, runID, h)

	stop, _ := args.Get(0).(func(context.Context) error)

	return stop, args.Error(1)
}

func (m *MockPubSub) Disconnect(ctx context.Context) error {
	args := m.Called(ctx)

	return args.Error(0)
}

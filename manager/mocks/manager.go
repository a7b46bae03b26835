package mocks

import (
	"context"

	modelfactory "github.com/absmach/modelfactory"
	"github.com/absmach/modelfactory/manager"
	"github.com/absmach/modelfactory/run"
	"github.com/stretchr/testify/mock"
)

var _ manager.Service = (*MockService)(nil)

// MockService is a mock implementation of the manager.Service interface
type MockService struct {
	mock.Mock
}

// Train trains a competition engine
func (m *MockService) Train(ctx context.Context, competition string, cfg modelfactory.Config) (run.Run, error) {
	args := m.Called(ctx, competition, cfg)
	return args.Get(0).(run.Run), args.Error(1)
}

// Predict runs inference of a competition engine
func (m *MockService) Predict(ctx context.Context, competition string, cfg modelfactory.Config) (manager.Prediction, error) {
	args := m.Called(ctx, competition, cfg)
	return args.Get(0).(manager.Prediction), args.Error(1)
}

// GetRun retrieves a run by ID
func (m *MockService) GetRun(ctx context.Context, id string) (run.Run, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(run.Run), args.Error(1)
}

// ListRuns lists runs with pagination
func (m *MockService) ListRuns(ctx context.Context, offset, limit uint64) (run.RunPage, error) {
	args := m.Called(ctx, offset, limit)
	return args.Get(0).(run.RunPage), args.Error(1)
}

// ListEpochs lists the epochs of a run with pagination
func (m *MockService) ListEpochs(ctx context.Context, runID string, offset, limit uint64) (run.EpochPage, error) {
	args := m.Called(ctx, runID, offset, limit)
	return args.Get(0).(run.EpochPage), args.Error(1)
}

// Competitions lists the registered competitions
func (m *MockService) Competitions(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	return args.Get(0).([]string), args.Error(1)
}

package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/dukex/conduit/pkg/models"
	"github.com/dukex/conduit/pkg/steprunner"
)

// MockPublisher is a mock implementation of the trigger-queue publisher side.
type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, msg *models.TriggerMessage) error {
	args := m.Called(ctx, msg)

	return args.Error(0)
}

// MockRunner is a mock implementation of steprunner.Runner.
type MockRunner struct {
	mock.Mock
}

func (m *MockRunner) Run(ctx context.Context, input *models.ExecutionInput) (*steprunner.Result, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*steprunner.Result), args.Error(1)
}

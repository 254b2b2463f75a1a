package jobs

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/parley-labs/parley/internal/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockJobProcessor is a mock implementation of JobProcessor
type MockJobProcessor struct {
	mock.Mock
}

func (m *MockJobProcessor) ProcessJobs(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// MockSessionStore is a mock implementation of SessionStore
type MockSessionStore struct {
	mock.Mock
}

func (m *MockSessionStore) Sweep() int {
	args := m.Called()
	return args.Int(0)
}

// TestWorker_StartStop tests the worker start and stop functionality
func TestWorker_StartStop(t *testing.T) {
	mockProcessor := new(MockJobProcessor)
	mockProcessor.On("ProcessJobs", mock.Anything).Return(nil)

	worker := NewWorker(mockProcessor, 100*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		worker.Start(ctx)
	}()

	time.Sleep(250 * time.Millisecond)

	worker.Stop()
	wg.Wait()

	mockProcessor.AssertCalled(t, "ProcessJobs", mock.Anything)
}

// TestWorker_ContextCancellation tests worker stops on context cancellation
func TestWorker_ContextCancellation(t *testing.T) {
	mockProcessor := new(MockJobProcessor)
	mockProcessor.On("ProcessJobs", mock.Anything).Return(nil)

	worker := NewWorker(mockProcessor, 100*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		worker.Start(ctx)
	}()

	time.Sleep(150 * time.Millisecond)

	cancel()
	wg.Wait()

	mockProcessor.AssertCalled(t, "ProcessJobs", mock.Anything)
}

func TestSessionSweeper_ProcessJobs(t *testing.T) {
	mockStore := new(MockSessionStore)
	mockStore.On("Sweep").Return(2)

	sweeper := NewSessionSweeper(mockStore)
	err := sweeper.ProcessJobs(context.Background())

	assert.NoError(t, err)
	mockStore.AssertExpectations(t)
}

func TestSessionSweeper_ProcessJobs_NothingToEvict(t *testing.T) {
	mockStore := new(MockSessionStore)
	mockStore.On("Sweep").Return(0)

	sweeper := NewSessionSweeper(mockStore)
	err := sweeper.ProcessJobs(context.Background())

	assert.NoError(t, err)
	mockStore.AssertExpectations(t)
}

// TestSessionSweeper_EvictsIdleSessions drives a real session manager
// through the sweeper.
func TestSessionSweeper_EvictsIdleSessions(t *testing.T) {
	sessions := session.NewManager(3, "", 20*time.Millisecond)
	_, created := sessions.GetOrCreate("acme", "s1")
	require.True(t, created)
	require.Equal(t, 1, sessions.Count())

	time.Sleep(40 * time.Millisecond)

	sweeper := NewSessionSweeper(sessions)
	require.NoError(t, sweeper.ProcessJobs(context.Background()))

	assert.Equal(t, 0, sessions.Count())
}

package supervisor

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBackoffFor_DoublesAndCaps(t *testing.T) {
	assert.Equal(t, 5*time.Second, backoffFor(1))
	assert.Equal(t, 10*time.Second, backoffFor(2))
	assert.Equal(t, 20*time.Second, backoffFor(3))
	assert.Equal(t, 40*time.Second, backoffFor(4))
	assert.Equal(t, 80*time.Second, backoffFor(5))
	assert.Equal(t, 160*time.Second, backoffFor(6))
	assert.Equal(t, 300*time.Second, backoffFor(7))
	assert.Equal(t, 5*time.Minute, backoffFor(8))
	assert.Equal(t, 5*time.Minute, backoffFor(20))
}

func TestBackoffFor_FloorsBelowOne(t *testing.T) {
	assert.Equal(t, backoffFor(1), backoffFor(0))
	assert.Equal(t, backoffFor(1), backoffFor(-5))
}

func TestRunSingle_UnknownPathErrors(t *testing.T) {
	s := New([]Spec{{Name: "a", Path: "/bin/true", DelayMs: 0}}, nil)
	err := s.RunSingle(context.Background(), "/nonexistent")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unknown agent path")
}

func TestRunSingle_CleanExitReturnsPromptly(t *testing.T) {
	s := New([]Spec{{Name: "true-agent", Path: "/bin/true", DelayMs: 0}}, nil)

	done := make(chan error, 1)
	go func() { done <- s.RunSingle(context.Background(), "/bin/true") }()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("RunSingle did not return after a clean exit")
	}
}

func TestSuperviseChild_RestartsOnCrashUntilCancelled(t *testing.T) {
	s := New([]Spec{{Name: "false-agent", Path: "/bin/false", DelayMs: 0}}, nil)
	c := s.children[0]

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	s.superviseChild(ctx, c)

	c.mu.Lock()
	restarts := c.restarts
	c.mu.Unlock()
	assert.GreaterOrEqual(t, restarts, 1)
}

func TestStatus_ReflectsRoster(t *testing.T) {
	s := New([]Spec{
		{Name: "a", Path: "/bin/true", DelayMs: 0},
		{Name: "b", Path: "/bin/true", DelayMs: 5000},
	}, nil)

	statuses := s.Status()
	require.Len(t, statuses, 2)
	assert.Equal(t, "a", statuses[0].Name)
	assert.False(t, statuses[0].Running)
}

func TestKnownPaths_ListsAllRosterEntries(t *testing.T) {
	s := New([]Spec{{Name: "a", Path: "/bin/true"}, {Name: "b", Path: "/bin/false"}}, nil)
	assert.Equal(t, "/bin/true, /bin/false", s.knownPaths())
}

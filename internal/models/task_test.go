package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTaskValidate(t *testing.T) {
	t.Run("valid task passes", func(t *testing.T) {
		task := Task{Number: 1, Title: "Add retry logic"}
		require.NoError(t, task.Validate())
	})

	t.Run("zero number rejected", func(t *testing.T) {
		task := Task{Number: 0, Title: "x"}
		assert.Error(t, task.Validate())
	})

	t.Run("empty title rejected", func(t *testing.T) {
		task := Task{Number: 1, Title: "   "}
		assert.Error(t, task.Validate())
	})

	t.Run("self dependency rejected", func(t *testing.T) {
		task := Task{Number: 1, Title: "x", DependsOn: []int{1}}
		assert.Error(t, task.Validate())
	})
}

func TestTaskWorkerName(t *testing.T) {
	task := Task{Number: 7}
	assert.Equal(t, "worker-7", task.WorkerName())
	assert.Equal(t, "7", task.ID())
}

func TestTaskIsIntegration(t *testing.T) {
	assert.True(t, (&Task{Type: "integration"}).IsIntegration())
	assert.False(t, (&Task{Type: "regular"}).IsIntegration())
	assert.False(t, (&Task{}).IsIntegration())
}

func TestScheduledTaskCanRetry(t *testing.T) {
	st := &ScheduledTask{Status: TaskFailed, RetryCount: 0}
	assert.True(t, st.CanRetry())

	st.RetryCount = MaxTaskRetries
	assert.False(t, st.CanRetry())

	st.Status = TaskCompleted
	assert.False(t, st.CanRetry())
}

func TestScheduledTaskIsTerminal(t *testing.T) {
	assert.True(t, (&ScheduledTask{Status: TaskCompleted}).IsTerminal())
	assert.True(t, (&ScheduledTask{Status: TaskFailed, RetryCount: MaxTaskRetries}).IsTerminal())
	assert.False(t, (&ScheduledTask{Status: TaskFailed, RetryCount: 0}).IsTerminal())
	assert.False(t, (&ScheduledTask{Status: TaskRunning}).IsTerminal())
}

func TestHasCyclicDependencies(t *testing.T) {
	t.Run("no cycle", func(t *testing.T) {
		tasks := []Task{
			{Number: 1},
			{Number: 2, DependsOn: []int{1}},
			{Number: 3, DependsOn: []int{1, 2}},
		}
		assert.False(t, HasCyclicDependencies(tasks))
	})

	t.Run("direct cycle", func(t *testing.T) {
		tasks := []Task{
			{Number: 1, DependsOn: []int{2}},
			{Number: 2, DependsOn: []int{1}},
		}
		assert.True(t, HasCyclicDependencies(tasks))
	})

	t.Run("indirect cycle", func(t *testing.T) {
		tasks := []Task{
			{Number: 1, DependsOn: []int{3}},
			{Number: 2, DependsOn: []int{1}},
			{Number: 3, DependsOn: []int{2}},
		}
		assert.True(t, HasCyclicDependencies(tasks))
	})

	t.Run("dependency on missing task is ignored, not cyclic", func(t *testing.T) {
		tasks := []Task{
			{Number: 1, DependsOn: []int{99}},
		}
		assert.False(t, HasCyclicDependencies(tasks))
	})
}

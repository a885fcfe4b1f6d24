package cli

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tetherlabs/tether/internal/client"
)

func TestRunCommand_Acknowledged(t *testing.T) {
	mock := newMockSessionClient()
	defer useMockClient(mock)()
	runCmd.SetContext(context.Background())

	mock.responses["run_task"] = json.RawMessage(`{"task_id":"t-42"}`)

	output := captureOutput(func() {
		err := runRun(runCmd, []string{"add", "dark", "mode"})
		require.NoError(t, err)
	})

	assert.Contains(t, output, "Task started: t-42")
	require.Equal(t, []string{"run_task"}, mock.sent)
}

func TestRunCommand_NoTaskID(t *testing.T) {
	mock := newMockSessionClient()
	defer useMockClient(mock)()
	runCmd.SetContext(context.Background())

	mock.responses["run_task"] = json.RawMessage(`{}`)

	output := captureOutput(func() {
		err := runRun(runCmd, []string{"fix the tests"})
		require.NoError(t, err)
	})

	assert.Contains(t, output, "Task submitted")
}

func TestRunCommand_BackendRejects(t *testing.T) {
	mock := newMockSessionClient()
	defer useMockClient(mock)()
	runCmd.SetContext(context.Background())

	mock.sendErr = &client.CommandError{Action: "run_task", Message: "agent is busy"}

	err := runRun(runCmd, []string{"do a thing"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "agent is busy")
}

package cmd

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmehdipour/imei-gateway/internal/model"
)

func runRoot(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() { rootCmd.SetArgs(nil) })

	err := rootCmd.Execute()
	return out.String(), err
}

func TestCheckCmd_RejectedIMEIPrintsNoUsage(t *testing.T) {
	out, err := runRoot(t, "check", "123", "--config", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid_imei (400)")
	assert.NotContains(t, out, "Usage:")
	assert.NotContains(t, out, "invalid_imei")
}

func TestCheckCmd_SimulatedResult(t *testing.T) {
	out, err := runRoot(t, "check", "4901-5420-3237-518", "--config", "")
	require.NoError(t, err)

	var env model.Envelope
	require.NoError(t, json.Unmarshal([]byte(out), &env))
	assert.True(t, env.Simulated)
	assert.False(t, env.Cached)
	assert.Equal(t, "SIMULATED", env.Result["brand"])
}

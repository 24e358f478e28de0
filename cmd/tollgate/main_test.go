package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestIssueAndSweepCommands(t *testing.T) {
	t.Setenv("STORE_BACKEND", "leveldb")
	t.Setenv("STORE_PATH", t.TempDir())
	t.Setenv("TOKEN_TTL", "1ns")
	t.Setenv("LOG_LEVEL", "error")

	out, err := runCommand(t, "issue", "alice")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	assert.NotEmpty(t, lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "expires "))

	out, err = runCommand(t, "sweep")
	require.NoError(t, err)
	assert.Equal(t, "removed 1 expired sessions\n", out)

	out, err = runCommand(t, "sweep")
	require.NoError(t, err)
	assert.Equal(t, "removed 0 expired sessions\n", out)
}

func TestIssueRequiresSubject(t *testing.T) {
	t.Setenv("STORE_BACKEND", "memory")

	_, err := runCommand(t, "issue")
	assert.Error(t, err)
}

func TestInvalidConfig(t *testing.T) {
	t.Setenv("STORE_BACKEND", "sqlite")

	_, err := runCommand(t, "sweep")
	assert.ErrorContains(t, err, "STORE_BACKEND")
}

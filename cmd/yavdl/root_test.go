package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand_NoInputIsError(t *testing.T) {
	cmd := newRootCommand()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{})
	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nothing to do")
}

func TestRootCommand_RejectsBadVideoArg(t *testing.T) {
	cmd := newRootCommand()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"definitely not a video!"})
	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a video id")
}

func TestFormatsCommand(t *testing.T) {
	var out bytes.Buffer
	cmd := newFormatsCommand()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{})
	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "22")
	assert.Contains(t, out.String(), "webm")
}

func TestFormatsCommand_SingleID(t *testing.T) {
	var out bytes.Buffer
	cmd := newFormatsCommand()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"22"})
	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "mp4")
	assert.NotContains(t, out.String(), "webm")
}

func TestFormatsCommand_UnknownID(t *testing.T) {
	cmd := newFormatsCommand()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"999"})
	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown format id")
}

func TestListManglersCommand_Empty(t *testing.T) {
	var out bytes.Buffer
	cmd := newListManglersCommand(&rootFlags{})
	cmd.SetOut(&out)
	cmd.SetArgs([]string{})
	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "no manglers configured")
}

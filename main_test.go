package main

import (
	"bytes"
	"context"
	"io"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_resolveCommand(t *testing.T) {
	got, err := resolveCommand("pdf2htmlEX")
	require.NoError(t, err)
	assert.Equal(t, "pdf2htmlEX", got)

	got, err = resolveCommand(filepath.Join("bin", "convert"))
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(got))
	assert.Equal(t, filepath.Join("bin", "convert"), got[len(got)-len(filepath.Join("bin", "convert")):])
}

func Test_newCommandUsage(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{
			name: "No args",
			args: []string{"convwatch"},
		},
		{
			name: "Path only",
			args: []string{"convwatch", "docs"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			cmd := newCommand()
			cmd.Writer = buf
			cmd.ErrWriter = io.Discard

			err := cmd.Run(context.Background(), tt.args)

			require.NoError(t, err)
			assert.Contains(t, buf.String(), "convwatch")
			assert.Contains(t, buf.String(), "<watched-path> <command> [command-args...]")
		})
	}
}

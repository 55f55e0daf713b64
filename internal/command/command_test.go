package command

import (
	"bytes"
	"context"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpand(t *testing.T) {
	tests := []struct {
		name string
		args []string
		path string
		want []string
	}{
		{
			name: "No args",
			args: nil,
			path: "/docs/report.pdf",
			want: []string{"/docs/report.pdf"},
		},
		{
			name: "Appended",
			args: []string{"--zoom", "1.5"},
			path: "/docs/report.pdf",
			want: []string{"--zoom", "1.5", "/docs/report.pdf"},
		},
		{
			name: "Placeholder",
			args: []string{"-i", "{}", "--dest-dir", "out"},
			path: "/docs/report.pdf",
			want: []string{"-i", "/docs/report.pdf", "--dest-dir", "out"},
		},
		{
			name: "Repeated placeholder",
			args: []string{"{}", "{}"},
			path: "a.pdf",
			want: []string{"a.pdf", "a.pdf"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Expand(tt.args, tt.path))
		})
	}
}

func TestExpand_doesNotAlias(t *testing.T) {
	args := make([]string, 1, 4)
	args[0] = "-x"

	first := Expand(args, "a.pdf")
	second := Expand(args, "b.pdf")

	assert.Equal(t, []string{"-x", "a.pdf"}, first)
	assert.Equal(t, []string{"-x", "b.pdf"}, second)
}

func skipOnWindows(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("requires a POSIX shell")
	}
}

func TestExecRunner_Run(t *testing.T) {
	skipOnWindows(t)

	dir, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)
	r := &ExecRunner{Stderr: &bytes.Buffer{}}

	tests := []struct {
		name     string
		script   string
		output   string
		exitCode int
	}{
		{
			name:   "Output",
			script: "echo converted",
			output: "converted\n",
		},
		{
			name:     "Exit status",
			script:   "exit 3",
			output:   "",
			exitCode: 3,
		},
		{
			name:   "Working directory",
			script: "pwd -P",
			output: dir + "\n",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := r.Run(context.Background(), Invocation{
				Path: "sh",
				Args: []string{"-c", tt.script},
				Dir:  dir,
			})
			require.NoError(t, err)
			assert.Equal(t, tt.exitCode, res.ExitCode)
			assert.Equal(t, tt.output, string(res.Output))
		})
	}
}

func TestExecRunner_stderr(t *testing.T) {
	skipOnWindows(t)

	stderr := &bytes.Buffer{}
	res, err := (&ExecRunner{Stderr: stderr}).Run(context.Background(), Invocation{
		Path: "sh",
		Args: []string{"-c", "echo oops >&2"},
	})
	require.NoError(t, err)
	assert.Empty(t, res.Output)
	assert.Equal(t, "oops\n", stderr.String())
}

func TestExecRunner_notFound(t *testing.T) {
	_, err := NewExecRunner(0).Run(context.Background(), Invocation{
		Path: filepath.Join(t.TempDir(), "missing"),
	})
	require.Error(t, err)
}

func TestExecRunner_timeout(t *testing.T) {
	skipOnWindows(t)

	started := time.Now()
	res, err := NewExecRunner(50*time.Millisecond).Run(context.Background(), Invocation{
		Path: "sleep",
		Args: []string{"5"},
	})
	require.NoError(t, err)
	assert.NotEqual(t, 0, res.ExitCode)
	assert.Less(t, time.Since(started), 4*time.Second)
}

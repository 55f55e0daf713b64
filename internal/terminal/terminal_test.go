package terminal

import (
	"context"
	"errors"
	"strings"
	"testing"
	"testing/iotest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWaitForKey(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  bool
	}{
		{name: "Quit", input: "q", want: true},
		{name: "Quit after noise", input: "abc\nxyz\nq\n", want: true},
		{name: "Upper case", input: "Q\n", want: false},
		{name: "Empty", input: "", want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := WaitForKey(strings.NewReader(tt.input), QuitKey)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestWaitForKey_readError(t *testing.T) {
	readErr := errors.New("broken pipe")

	_, err := WaitForKey(iotest.ErrReader(readErr), QuitKey)
	require.ErrorIs(t, err, readErr)
}

func TestCancelOnKey(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	CancelOnKey(ctx, strings.NewReader("xq"), QuitKey, cancel)

	select {
	case <-ctx.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("context was not cancelled")
	}
}

func TestCancelOnKey_EOF(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	CancelOnKey(ctx, strings.NewReader("no quit here"), QuitKey, cancel)

	select {
	case <-ctx.Done():
		t.Fatal("context cancelled on EOF")
	case <-time.After(100 * time.Millisecond):
	}
}

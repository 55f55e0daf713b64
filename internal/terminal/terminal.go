package terminal

import (
	"bufio"
	"context"
	"errors"
	"io"

	"github.com/capcom6/convwatch/internal/logging"
	logger "github.com/go-core-fx/cli-logger"
)

const QuitKey = 'q'

// WaitForKey reads r until key is found. It reports false when r is
// exhausted first.
func WaitForKey(r io.Reader, key rune) (bool, error) {
	reader := bufio.NewReader(r)
	for {
		ch, _, err := reader.ReadRune()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return false, nil
			}
			return false, err
		}
		if ch == key {
			return true, nil
		}
	}
}

// CancelOnKey calls cancel once key is read from r. Reading stops at EOF
// without cancelling, so a closed stdin leaves shutdown to signals.
func CancelOnKey(ctx context.Context, r io.Reader, key rune, cancel context.CancelFunc) {
	ctx = logger.WithComponent(ctx, "terminal")
	log := logging.FromContext(ctx)

	go func() {
		found, err := WaitForKey(r, key)
		if err != nil {
			log.Error(ctx, "can't read input", err)
			return
		}
		if !found {
			log.Debug(ctx, "input closed, press Ctrl+C to quit")
			return
		}
		if ctx.Err() == nil {
			cancel()
		}
	}()
}

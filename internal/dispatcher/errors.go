package dispatcher

import "errors"

var ErrSourceClosed = errors.New("notification source closed")

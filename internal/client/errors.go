package client

import "errors"

var ErrUnsupportedScheme = errors.New("unsupported scheme")

package watcher

import "errors"

var ErrNotDirectory = errors.New("not a directory")

package client

import (
	"context"
	"fmt"
	"net/url"
)

// Client stores derived files on a remote location. Paths are slash separated
// and relative to the location given in the mirror URL.
type Client interface {
	UploadFile(ctx context.Context, remotePath string, localPath string) error
	RemoveFile(ctx context.Context, remotePath string) error

	Close() error
}

func New(address string) (Client, error) {
	u, err := url.Parse(address)
	if err != nil {
		return nil, fmt.Errorf("failed to parse URL: %w", err)
	}

	if u.Scheme == "ftp" {
		return NewFtpClient(address), nil
	}

	return nil, fmt.Errorf("%w: %s", ErrUnsupportedScheme, u.Scheme)
}

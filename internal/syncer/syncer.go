package syncer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/capcom6/convwatch/internal/logging"
	logger "github.com/go-core-fx/cli-logger"
)

var ErrOutsideRoot = errors.New("path is outside of the watched root")

type RemoteClient interface {
	UploadFile(ctx context.Context, remotePath string, localPath string) error
	RemoveFile(ctx context.Context, remotePath string) error
}

// Syncer mirrors derived files below RootPath to a remote location, keeping
// their path relative to the root.
type Syncer struct {
	RootPath string
	Client   RemoteClient
}

func New(rootPath string, client RemoteClient) *Syncer {
	return &Syncer{
		RootPath: rootPath,
		Client:   client,
	}
}

// Sync uploads absPath when it exists locally and removes the remote copy
// otherwise.
func (s *Syncer) Sync(ctx context.Context, absPath string) error {
	ctx = logger.WithComponent(ctx, "syncer")

	exists, isDir, err := fsInfo(absPath)
	if err != nil {
		return err
	}
	if isDir {
		return nil
	}

	relPath, err := s.relPath(absPath)
	if err != nil {
		return err
	}

	if !exists {
		if err := s.Client.RemoveFile(ctx, relPath); err != nil {
			return fmt.Errorf("can't remove remote %s: %w", relPath, err)
		}

		logging.FromContext(ctx).Info(ctx, "---", logger.Fields{"path": relPath})

		return nil
	}

	if err := s.Client.UploadFile(ctx, relPath, absPath); err != nil {
		return fmt.Errorf("can't upload %s: %w", relPath, err)
	}

	logging.FromContext(ctx).Info(ctx, "-->", logger.Fields{"path": relPath})

	return nil
}

func (s *Syncer) relPath(absPath string) (string, error) {
	absRoot, err := filepath.Abs(s.RootPath)
	if err != nil {
		return "", fmt.Errorf("filepath.Abs: %w", err)
	}

	absPath, err = filepath.Abs(absPath)
	if err != nil {
		return "", fmt.Errorf("filepath.Abs: %w", err)
	}

	relPath, err := filepath.Rel(absRoot, absPath)
	if err != nil {
		return "", fmt.Errorf("filepath.Rel: %w", err)
	}
	if relPath == ".." || strings.HasPrefix(relPath, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", ErrOutsideRoot, absPath)
	}

	return filepath.ToSlash(relPath), nil
}

func fsInfo(path string) (bool, bool, error) {
	fi, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, false, nil
		}
		return false, false, fmt.Errorf("os.Stat: %w", err)
	}

	return true, fi.IsDir(), nil
}

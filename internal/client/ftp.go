package client

import (
	"context"
	"fmt"
	"net/textproto"
	"net/url"
	"os"
	"path"
	"strings"
	"sync"

	"github.com/capcom6/convwatch/internal/logging"
	logger "github.com/go-core-fx/cli-logger"
	"github.com/jlaffaye/ftp"
	"github.com/samber/lo"
)

// FtpClient keeps one control connection and reconnects when it goes stale.
type FtpClient struct {
	url string

	conn *ftp.ServerConn
	dirs map[string]struct{}
	lock sync.Mutex
}

func NewFtpClient(url string) *FtpClient {
	return &FtpClient{
		url: url,

		conn: nil,
		dirs: map[string]struct{}{},
		lock: sync.Mutex{},
	}
}

func (c *FtpClient) connect(ctx context.Context) error {
	if c.conn != nil {
		err := c.conn.NoOp()
		if err == nil {
			return nil
		}

		logging.FromContext(ctx).Debug(ctx, "Reconnecting", logger.Fields{"error": err.Error()})

		_ = c.conn.Quit()
		c.conn = nil
		c.dirs = map[string]struct{}{}
	}

	u, err := url.Parse(c.url)
	if err != nil {
		return fmt.Errorf("can't parse URL: %w", err)
	}

	if u.Scheme != "ftp" {
		return fmt.Errorf("%w: %s", ErrUnsupportedScheme, u.Scheme)
	}

	conn, err := ftp.Dial(u.Host, ftp.DialWithContext(ctx))
	if err != nil {
		return fmt.Errorf("can't connect to %s: %w", u.Host, err)
	}

	password, _ := u.User.Password()
	if loginErr := conn.Login(u.User.Username(), password); loginErr != nil {
		_ = conn.Quit()
		return fmt.Errorf("can't login as %s: %w", u.User.Username(), loginErr)
	}

	if u.Path != "" {
		if chErr := conn.ChangeDir(u.Path); chErr != nil {
			_ = conn.Quit()
			return fmt.Errorf("can't change directory to %s: %w", u.Path, chErr)
		}
	}

	c.conn = conn

	return nil
}

func (c *FtpClient) makeParents(ctx context.Context, remotePath string) error {
	for _, dir := range splitPath(remotePath) {
		if _, ok := c.dirs[dir]; ok {
			continue
		}
		if err := c.conn.MakeDir(dir); err != nil && !isIgnorableError(ctx, err) {
			return fmt.Errorf("can't make directory %s: %w", dir, err)
		}
		c.dirs[dir] = struct{}{}
	}

	return nil
}

func (c *FtpClient) UploadFile(ctx context.Context, remotePath string, localPath string) error {
	c.lock.Lock()
	defer c.lock.Unlock()

	ctx = logger.WithComponent(ctx, "ftp")
	if err := c.connect(ctx); err != nil {
		return err
	}

	if err := c.makeParents(ctx, remotePath); err != nil {
		return err
	}

	h, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("can't open local file %s: %w", localPath, err)
	}
	defer h.Close()

	if stErr := c.conn.Stor(remotePath, h); stErr != nil {
		return fmt.Errorf("can't upload file to %s: %w", remotePath, stErr)
	}

	return nil
}

// RemoveFile treats a missing remote file as removed.
func (c *FtpClient) RemoveFile(ctx context.Context, remotePath string) error {
	c.lock.Lock()
	defer c.lock.Unlock()

	ctx = logger.WithComponent(ctx, "ftp")
	if err := c.connect(ctx); err != nil {
		return err
	}

	err := c.conn.Delete(remotePath)
	if err != nil && !isIgnorableError(ctx, err) {
		return fmt.Errorf("failed to remove file %s: %w", remotePath, err)
	}

	return nil
}

func (c *FtpClient) Close() error {
	c.lock.Lock()
	defer c.lock.Unlock()

	if c.conn == nil {
		return nil
	}

	err := c.conn.Quit()
	c.conn = nil
	c.dirs = map[string]struct{}{}
	if err != nil {
		return fmt.Errorf("can't quit: %w", err)
	}

	return nil
}

// isIgnorableError reports "550 file unavailable", which the server also
// answers for directories that already exist.
func isIgnorableError(ctx context.Context, err error) bool {
	if err, ok := lo.ErrorsAs[*textproto.Error](err); ok && err.Code == ftp.StatusFileUnavailable {
		logging.FromContext(ctx).Debug(ctx, "ignore error", logger.Fields{"error": err.Error()})
		return true
	}
	return false
}

// splitPath lists the parent directories of a file, outermost first.
func splitPath(file string) []string {
	entries := make([]string, 0, strings.Count(file, "/"))

	file = path.Clean(file)

	for {
		file = path.Dir(file)
		if file == "." || file == "/" {
			break
		}
		entries = append(entries, file)
	}

	for i := 0; i < len(entries)/2; i++ {
		entries[i], entries[len(entries)-i-1] = entries[len(entries)-i-1], entries[i]
	}

	return entries
}

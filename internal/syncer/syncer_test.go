package syncer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type call struct {
	op         string
	remotePath string
	localPath  string
}

type fakeClient struct {
	calls []call
	err   error
}

func (c *fakeClient) UploadFile(_ context.Context, remotePath string, localPath string) error {
	c.calls = append(c.calls, call{op: "upload", remotePath: remotePath, localPath: localPath})
	return c.err
}

func (c *fakeClient) RemoveFile(_ context.Context, remotePath string) error {
	c.calls = append(c.calls, call{op: "remove", remotePath: remotePath})
	return c.err
}

func TestSyncer_Sync(t *testing.T) {
	root := t.TempDir()
	existing := filepath.Join(root, "2024", "report.html")
	require.NoError(t, os.MkdirAll(filepath.Dir(existing), 0o755))
	require.NoError(t, os.WriteFile(existing, []byte("<html/>"), 0o644))

	tests := []struct {
		name    string
		path    string
		want    []call
		wantErr error
	}{
		{
			name: "Upload existing",
			path: existing,
			want: []call{{op: "upload", remotePath: "2024/report.html", localPath: existing}},
		},
		{
			name: "Remove missing",
			path: filepath.Join(root, "gone.html"),
			want: []call{{op: "remove", remotePath: "gone.html"}},
		},
		{
			name: "Skip directory",
			path: filepath.Join(root, "2024"),
			want: nil,
		},
		{
			name:    "Outside root",
			path:    filepath.Join(filepath.Dir(root), "elsewhere.html"),
			want:    nil,
			wantErr: ErrOutsideRoot,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := &fakeClient{}
			err := New(root, client).Sync(context.Background(), tt.path)

			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tt.want, client.calls)
		})
	}
}

func TestSyncer_SyncClientError(t *testing.T) {
	root := t.TempDir()
	clientErr := errors.New("connection refused")

	err := New(root, &fakeClient{err: clientErr}).Sync(context.Background(), filepath.Join(root, "gone.html"))
	require.ErrorIs(t, err, clientErr)
}

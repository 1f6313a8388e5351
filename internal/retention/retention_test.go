package retention

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func mkdir(t *testing.T, root, name string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Join(root, name, "files"), 0o770))
}

func TestPruneReports(t *testing.T) {
	root := t.TempDir()
	now := time.Date(2026, 3, 31, 12, 0, 0, 0, time.UTC)

	mkdir(t, root, "20260101000000-old_device")
	mkdir(t, root, "20260301115959-just_expired")
	mkdir(t, root, "20260330120000-recent")
	mkdir(t, root, "not-a-report")
	require.NoError(t, os.WriteFile(filepath.Join(root, "20200101000000-file"), []byte("x"), 0o660))

	removed, err := PruneReports(context.Background(), root, 30*24*time.Hour, now)
	require.NoError(t, err)
	require.Equal(t, 2, removed)

	require.NoDirExists(t, filepath.Join(root, "20260101000000-old_device"))
	require.NoDirExists(t, filepath.Join(root, "20260301115959-just_expired"))
	require.DirExists(t, filepath.Join(root, "20260330120000-recent"))
	require.DirExists(t, filepath.Join(root, "not-a-report"))
	require.FileExists(t, filepath.Join(root, "20200101000000-file"))

	removed, err = PruneReports(context.Background(), root, 30*24*time.Hour, now)
	require.NoError(t, err)
	require.Equal(t, 0, removed)
}

func TestPruneReports_MissingRoot(t *testing.T) {
	removed, err := PruneReports(context.Background(), filepath.Join(t.TempDir(), "missing"), time.Hour, time.Now())
	require.NoError(t, err)
	require.Equal(t, 0, removed)
}

func TestPruneReports_CanceledContext(t *testing.T) {
	root := t.TempDir()
	mkdir(t, root, "20000101000000-dev")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := PruneReports(ctx, root, time.Hour, time.Now())
	require.ErrorIs(t, err, context.Canceled)
	require.DirExists(t, filepath.Join(root, "20000101000000-dev"))
}

func TestRunRetentionJob(t *testing.T) {
	root := t.TempDir()
	mkdir(t, root, "20000101000000-dev")

	require.NoError(t, RunRetentionJob(context.Background(), root, 1))
	require.NoDirExists(t, filepath.Join(root, "20000101000000-dev"))
}

package logging

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRotatingFileReceivesLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rentalsd.log")
	file := RotatingFile(FileOptions{Path: path, MaxSizeMB: 1, MaxBackups: 1})
	logger := New(file, "rentalsd", "test", slog.LevelInfo)
	logger.Info("block sealed", slog.Uint64("height", 7))
	require.NoError(t, file.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), `"message":"block sealed"`)
	require.Contains(t, string(data), `"height":7`)
}

func TestSetupWithFileWithoutPath(t *testing.T) {
	logger, closer := SetupWithFile("rentalsd", "dev", FileOptions{})
	require.NotNil(t, logger)
	require.NoError(t, closer.Close())
}

package logging

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRotatingFile(t *testing.T) {
	dir := t.TempDir()
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	lj := RotatingFile(dir, "tellosim", start, 20, 5)
	t.Cleanup(func() { _ = lj.Close() })

	assert.Equal(t, filepath.Join(dir, "tellosim.20260301_100000.log"), lj.Filename)
	assert.Equal(t, 20, lj.MaxSize)
	assert.Equal(t, 5, lj.MaxBackups)

	n, err := lj.Write([]byte("hello\n"))
	require.NoError(t, err)
	assert.Equal(t, 6, n)
	assert.FileExists(t, lj.Filename)
}

func TestRotatingFile_Names(t *testing.T) {
	start := time.Date(2026, 2, 12, 21, 38, 36, 0, time.UTC)

	tests := []struct {
		dir  string
		want string
	}{
		{"logs", filepath.Join("logs", "tellosim.20260212_213836.log")},
		{"./logs", filepath.Join(".", "logs", "tellosim.20260212_213836.log")},
		{filepath.Join("/var", "log", "tellosim"), filepath.Join("/var", "log", "tellosim", "tellosim.20260212_213836.log")},
	}

	for _, tt := range tests {
		t.Run(tt.dir, func(t *testing.T) {
			assert.Equal(t, tt.want, RotatingFile(tt.dir, "tellosim", start, 10, 1).Filename)
		})
	}
}

func TestGraylog_DialsUDP(t *testing.T) {
	w, err := Graylog("127.0.0.1:12201", "tellosim")
	require.NoError(t, err)
	require.NoError(t, w.Close())
}

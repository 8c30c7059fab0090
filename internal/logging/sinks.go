package logging

import (
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/Graylog2/go-gelf/gelf"
	"gopkg.in/natefinch/lumberjack.v2"
)

// RotatingFile returns a size-rotated log file named <name>.<session start>.log
// inside logsDir.
func RotatingFile(logsDir, name string, sessionStart time.Time, maxSizeMB, maxBackups int) *lumberjack.Logger {
	return &lumberjack.Logger{
		Filename:   filepath.Join(logsDir, fmt.Sprintf("%s.%s.log", name, sessionStart.Format("20060102_150405"))),
		MaxSize:    maxSizeMB,
		MaxBackups: maxBackups,
		LocalTime:  false,
		Compress:   true,
	}
}

// Graylog returns a writer that ships each write as a GELF message over UDP.
func Graylog(addr, facility string) (io.WriteCloser, error) {
	w, err := gelf.NewWriter(addr)
	if err != nil {
		return nil, fmt.Errorf("graylog writer %s: %w", addr, err)
	}
	w.Facility = facility
	return w, nil
}

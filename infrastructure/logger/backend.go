package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime/debug"
	"strings"
	"sync/atomic"

	"github.com/jrick/logrotate/rotator"
	"github.com/pkg/errors"
)

// Call site flags add the file and line of the logging call to each entry.
const (
	// LogFlagLongFile adds the full path, e.g. /a/b/c/main.go:123.
	LogFlagLongFile uint32 = 1 << iota

	// LogFlagShortFile adds the file name only, e.g. main.go:123. It wins
	// over LogFlagLongFile.
	LogFlagShortFile
)

// defaultFlags are read from the comma separated LOGFLAGS environment
// variable, which accepts "longfile" and "shortfile".
var defaultFlags = parseLogFlags(os.Getenv("LOGFLAGS"))

func parseLogFlags(value string) uint32 {
	var flags uint32
	for _, name := range strings.Split(value, ",") {
		switch strings.TrimSpace(name) {
		case "longfile":
			flags |= LogFlagLongFile
		case "shortfile":
			flags |= LogFlagShortFile
		}
	}
	return flags
}

const (
	// entryQueueSize is how many formatted entries may wait for the writer
	// goroutine before loggers block.
	entryQueueSize = 256

	// initialEntrySize is the starting capacity of a formatted entry.
	initialEntrySize = 512
)

// Backend serializes the entries of every subsystem Logger created from it
// onto its writers. Writers are added before Run; each one receives the
// entries at or above its own level.
type Backend struct {
	flag    uint32
	running uint32 // atomic
	writers []leveledWriter
	entries chan logEntry
	drained chan struct{}
}

type leveledWriter struct {
	io.WriteCloser
	minLevel Level
}

// NewBackendWithFlags returns a Backend using flags instead of the LOGFLAGS
// environment variable.
func NewBackendWithFlags(flags uint32) *Backend {
	return &Backend{flag: flags, entries: make(chan logEntry, entryQueueSize)}
}

// NewBackend returns a Backend configured from the LOGFLAGS environment
// variable.
func NewBackend() *Backend {
	return NewBackendWithFlags(defaultFlags)
}

// AddLogWriter sends every entry at level or above to writer.
func (b *Backend) AddLogWriter(writer io.WriteCloser, level Level) error {
	if b.IsRunning() {
		return errors.New("cannot add a log writer to a running backend")
	}
	b.writers = append(b.writers, leveledWriter{WriteCloser: writer, minLevel: level})
	return nil
}

// AddLogFile sends every entry at level or above to logFile, which is
// rotated once it grows past thresholdKB. The maxRolls most recent rotated
// files are kept. Missing directories are created.
func (b *Backend) AddLogFile(logFile string, level Level, thresholdKB int64, maxRolls int) error {
	if b.IsRunning() {
		return errors.New("cannot add a log file to a running backend")
	}
	err := os.MkdirAll(filepath.Dir(logFile), 0700)
	if err != nil {
		return errors.Wrapf(err, "failed to create the directory of %s", logFile)
	}
	fileRotator, err := rotator.New(logFile, thresholdKB, false, maxRolls)
	if err != nil {
		return errors.Wrapf(err, "failed to create a rotator for %s", logFile)
	}
	return b.AddLogWriter(fileRotator, level)
}

// Run starts the goroutine that writes entries out. It may be called once.
func (b *Backend) Run() error {
	if !atomic.CompareAndSwapUint32(&b.running, 0, 1) {
		return errors.New("the log backend is already running")
	}
	b.drained = make(chan struct{})
	go func() {
		defer close(b.drained)
		defer func() {
			if err := recover(); err != nil {
				_, _ = fmt.Fprintf(os.Stderr, "Fatal error in the log backend: %+v\n", err)
				_, _ = fmt.Fprintf(os.Stderr, "Goroutine stacktrace: %s\n", debug.Stack())
			}
		}()
		defer atomic.StoreUint32(&b.running, 0)

		for entry := range b.entries {
			for _, writer := range b.writers {
				if entry.level >= writer.minLevel {
					_, _ = writer.Write(entry.log)
				}
			}
		}
	}()
	return nil
}

// IsRunning returns whether Run was called.
func (b *Backend) IsRunning() bool {
	return atomic.LoadUint32(&b.running) != 0
}

// Close writes out the queued entries and closes every writer.
func (b *Backend) Close() {
	close(b.entries)
	if b.drained != nil {
		<-b.drained
	}
	for _, writer := range b.writers {
		_ = writer.Close()
	}
}

// Logger returns a Logger for the subsystem tag, at LevelInfo until
// changed.
func (b *Backend) Logger(subsystemTag string) *Logger {
	return &Logger{level: uint32(LevelInfo), tag: subsystemTag, b: b, writeChan: b.entries}
}

package subd

import (
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"sync"

	"github.com/natefinch/lumberjack"
)

// Logger is the leveled sink shared by the frame driver and both devices.
// Debug lines carry per-frame detail such as resets and validation results.
type Logger interface {
	DebugEnabled() bool
	SetDebug(enabled bool)
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
}

type DefaultLogger struct {
	mu     sync.Mutex
	debug  bool
	prefix string
	out    *log.Logger
	err    *log.Logger
}

func NewDefaultLogger(prefix string, debug bool) *DefaultLogger {
	return NewWriterLogger(prefix, debug, os.Stdout, os.Stderr)
}

// NewWriterLogger logs info and debug lines to out, warnings and errors to errOut.
func NewWriterLogger(prefix string, debug bool, out, errOut io.Writer) *DefaultLogger {
	flags := log.LstdFlags | log.Lmicroseconds
	return &DefaultLogger{
		debug:  debug,
		prefix: prefix,
		out:    log.New(out, "", flags),
		err:    log.New(errOut, "", flags),
	}
}

func (l *DefaultLogger) DebugEnabled() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.debug
}

func (l *DefaultLogger) SetDebug(enabled bool) {
	l.mu.Lock()
	l.debug = enabled
	l.mu.Unlock()
}

func (l *DefaultLogger) prefixf(level string, format string, args ...any) string {
	if l.prefix != "" {
		return fmt.Sprintf("[%s] %s: %s", l.prefix, level, fmt.Sprintf(format, args...))
	}
	return fmt.Sprintf("%s: %s", level, fmt.Sprintf(format, args...))
}

func (l *DefaultLogger) Debugf(format string, args ...any) {
	if !l.DebugEnabled() {
		return
	}
	l.out.Print(l.prefixf("DEBUG", format, args...))
}

func (l *DefaultLogger) Infof(format string, args ...any) {
	l.out.Print(l.prefixf("INFO", format, args...))
}

func (l *DefaultLogger) Warnf(format string, args ...any) {
	l.err.Print(l.prefixf("WARN", format, args...))
}

func (l *DefaultLogger) Errorf(format string, args ...any) {
	l.err.Print(l.prefixf("ERROR", format, args...))
}

// LoggingModule installs a default logger as a resource. With File set,
// every level is also appended to a size-rotated log file.
type LoggingModule struct {
	Prefix string
	Debug  bool
	File   string
	// MaxSizeMB bounds one log file before rotation. Zero means 10.
	MaxSizeMB int
}

func (m LoggingModule) Install(app *App, cmd *Commands) {
	if m.File == "" {
		app.addResources(NewDefaultLogger(m.Prefix, m.Debug))
		return
	}
	if m.MaxSizeMB == 0 {
		m.MaxSizeMB = 10
	}
	file := &lumberjack.Logger{
		Filename:   m.File,
		MaxSize:    m.MaxSizeMB,
		MaxBackups: 3,
		MaxAge:     7,
	}
	app.addResources(
		NewWriterLogger(m.Prefix, m.Debug, io.MultiWriter(os.Stdout, file), io.MultiWriter(os.Stderr, file)),
		&LogFile{file: file},
	)
}

// LogFile is the rotating file behind a LoggingModule, if any.
type LogFile struct {
	file *lumberjack.Logger
}

func (f *LogFile) Close() error { return f.file.Close() }

// Rotate starts a new log file, keeping the old one as a backup.
func (f *LogFile) Rotate() error { return f.file.Rotate() }

// RotateOnSignal rotates the file whenever one of sig arrives, so long
// terrain sessions can be split from outside the process. Call stop to
// unsubscribe.
func (f *LogFile) RotateOnSignal(l Logger, sig ...os.Signal) (stop func()) {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, sig...)
	done := make(chan struct{})
	go func() {
		defer close(done)
		f.rotateOn(ch, l)
	}()
	return func() {
		signal.Stop(ch)
		close(ch)
		<-done
	}
}

func (f *LogFile) rotateOn(ch <-chan os.Signal, l Logger) {
	for s := range ch {
		if err := f.Rotate(); err != nil {
			l.Errorf("rotate log on %v: %v", s, err)
			continue
		}
		l.Infof("log rotated on %v", s)
	}
}

// Silent logger for apps without a LoggingModule.

type nopLogger struct{}

func NewNopLogger() Logger { return &nopLogger{} }
func (n *nopLogger) DebugEnabled() bool                { return false }
func (n *nopLogger) SetDebug(enabled bool)             {}
func (n *nopLogger) Debugf(format string, args ...any) {}
func (n *nopLogger) Infof(format string, args ...any)  {}
func (n *nopLogger) Warnf(format string, args ...any)  {}
func (n *nopLogger) Errorf(format string, args ...any) {}

// Logger returns the logger installed by LoggingModule. Apps built without
// one (most tests) get a silent logger, so systems never check for nil.
func (app *App) Logger() Logger {
	if app == nil {
		return NewNopLogger()
	}
	for _, r := range app.resources {
		if l, ok := r.(Logger); ok {
			return l
		}
	}
	return NewNopLogger()
}

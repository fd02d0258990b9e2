package subd

import (
	"bytes"
	"os"
	"path/filepath"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultLoggerLevels(t *testing.T) {
	var out, errOut bytes.Buffer
	l := NewWriterLogger("subd", false, &out, &errOut)

	l.Debugf("hidden %d", 1)
	assert.Empty(t, out.String())

	l.SetDebug(true)
	assert.True(t, l.DebugEnabled())
	l.Debugf("shown %d", 2)
	l.Infof("info")
	l.Warnf("warn")
	l.Errorf("boom: %v", os.ErrNotExist)

	assert.Contains(t, out.String(), "[subd] DEBUG: shown 2")
	assert.Contains(t, out.String(), "[subd] INFO: info")
	assert.Contains(t, errOut.String(), "[subd] WARN: warn")
	assert.Contains(t, errOut.String(), "[subd] ERROR: boom: file does not exist")
	assert.NotContains(t, out.String(), "WARN")
}

func TestAppLoggerFallsBackToNop(t *testing.T) {
	var app *App
	assert.NotNil(t, app.Logger())
	assert.False(t, NewAppBuilder().Build().Logger().DebugEnabled())
}

func TestLoggingModuleFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "subd.log")
	app := NewAppBuilder().UseModule(LoggingModule{Prefix: "test", Debug: true, File: path}).Build()

	app.Logger().Infof("written to %s", "file")
	f, ok := Resource[LogFile](app)
	require.True(t, ok)
	require.NoError(t, f.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "[test] INFO: written to file")
}

func TestLogFileRotatesOnSignal(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "subd.log")
	app := NewAppBuilder().UseModule(LoggingModule{Prefix: "test", File: path}).Build()
	f, ok := Resource[LogFile](app)
	require.True(t, ok)
	defer f.Close()

	app.Logger().Infof("before rotation")
	ch := make(chan os.Signal, 1)
	ch <- syscall.SIGHUP
	close(ch)
	f.rotateOn(ch, app.Logger())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 2, "current file plus one backup")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "log rotated on hangup")
	assert.NotContains(t, string(data), "before rotation")
}

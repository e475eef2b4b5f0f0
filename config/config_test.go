package config

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func TestFromFileJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "serve.json")
	writeFile(t, path, `{"source": "clip.avi", "port": 9000, "max_fps": 12.5}`)

	c, err := FromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "clip.avi", c.Source)
	assert.Equal(t, 9000, c.Port)
	assert.Equal(t, 12.5, c.MaxFPS)
	// Defaults fill in what the file leaves out.
	assert.True(t, c.Loop)
	assert.Equal(t, 80, c.JPEGQuality)
	assert.Equal(t, "info", c.LogLevel)
}

func TestFromFileYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "serve.yaml")
	writeFile(t, path, "source: \"0\"\nloop: false\njpeg_quality: 60\nlabel: true\n")

	c, err := FromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "0", c.Source)
	assert.False(t, c.Loop)
	assert.True(t, c.Label)
	assert.Equal(t, 60, c.JPEGQuality)
	assert.Equal(t, 8080, c.Port)
}

func TestFromFileInvalid(t *testing.T) {
	dir := t.TempDir()
	for name, content := range map[string]string{
		"missing-source.json": `{}`,
		"bad-quality.json":    `{"source": "a.avi", "jpeg_quality": 101}`,
		"bad-port.json":       `{"source": "a.avi", "port": -1}`,
		"bad-level.json":      `{"source": "a.avi", "log_level": "loud"}`,
		"bad-fps.json":        `{"source": "a.avi", "max_fps": -3}`,
		"garbage.json":        `{`,
	} {
		path := filepath.Join(dir, name)
		writeFile(t, path, content)
		_, err := FromFile(path)
		assert.Error(t, err, name)
	}

	_, err := FromFile(filepath.Join(dir, "absent.json"))
	assert.Error(t, err)
}

func TestLoadReloadsOnChange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "serve.json")
	writeFile(t, path, `{"source": "clip.avi", "jpeg_quality": 70}`)

	var notified int32
	OnChange(func(c *Config) { atomic.AddInt32(&notified, 1) })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, Load(ctx, path))
	assert.Equal(t, 70, Get().JPEGQuality)

	require.Eventually(t, func() bool {
		os.WriteFile(path, []byte(`{"source": "clip.avi", "jpeg_quality": 42}`), 0644)
		return Get().JPEGQuality == 42
	}, 10*time.Second, 200*time.Millisecond)
	assert.GreaterOrEqual(t, atomic.LoadInt32(&notified), int32(2))
}

func TestLoadKeepsConfigOnBadReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "serve.json")
	writeFile(t, path, `{"source": "keep.avi"}`)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, Load(ctx, path))

	writeFile(t, path, `{"source": ""}`)
	time.Sleep(500 * time.Millisecond)
	assert.Equal(t, "keep.avi", Get().Source)
}

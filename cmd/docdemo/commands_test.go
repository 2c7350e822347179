package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omeyang/docdemo/pkg/util/xjson"
)

func runConfig(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var buf bytes.Buffer
	cmd := createApp()
	cmd.Writer = &buf
	cmd.ErrWriter = &buf
	err := cmd.Run(context.Background(), append(append([]string{"docdemo"}, args...), "config"))
	return buf.String(), err
}

func TestConfigCommand(t *testing.T) {
	t.Run("默认配置", func(t *testing.T) {
		out, err := runConfig(t)
		require.NoError(t, err)

		var got struct {
			Server struct{ Port int }
			Mongo  struct{ URI, Database string }
			Log    struct{ Level string }
		}
		require.NoError(t, xjson.Decode(strings.NewReader(out), &got))
		assert.Equal(t, 8080, got.Server.Port)
		assert.Equal(t, "mongodb://localhost:27017", got.Mongo.URI)
		assert.Equal(t, "SampleDB", got.Mongo.Database)
		assert.Equal(t, "INFO", got.Log.Level)
	})

	t.Run("命令行覆盖", func(t *testing.T) {
		out, err := runConfig(t, "--addr", "127.0.0.1:9999", "--log-level", "debug",
			"--mongo-uri", "mongodb://app:s3cret@db:27017")
		require.NoError(t, err)
		assert.Contains(t, out, "127.0.0.1:9999")
		assert.Contains(t, out, "DEBUG")
		assert.Contains(t, out, "app:xxxxx@db:27017")
		assert.NotContains(t, out, "s3cret")
	})

	t.Run("配置文件", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "docdemo.yaml")
		require.NoError(t, os.WriteFile(path, []byte("mongo:\n  database: Catalog\n"), 0o600))
		out, err := runConfig(t, "-c", path)
		require.NoError(t, err)
		assert.Contains(t, out, `"Catalog"`)
	})
}

func TestConfigCommand_UsageErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"非法日志级别", []string{"--log-level", "loud"}},
		{"文件不存在", []string{"--config", "/nonexistent/docdemo.yaml"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := runConfig(t, tt.args...)
			var ue *usageError
			assert.True(t, errors.As(err, &ue), "err = %v", err)
		})
	}
}

func TestRun_ExitCodes(t *testing.T) {
	var stderr bytes.Buffer
	assert.Equal(t, 2, run(context.Background(), []string{"docdemo", "--log-level", "loud", "config"}, &stderr))
	assert.Contains(t, stderr.String(), "参数错误")
}

func TestRedactURI(t *testing.T) {
	assert.Equal(t, "mongodb://localhost:27017", redactURI("mongodb://localhost:27017"))
	assert.Equal(t, "mongodb://u:xxxxx@h:1/db", redactURI("mongodb://u:p@h:1/db"))
	assert.Equal(t, "<redacted>", redactURI("mongodb://u:p@h:1\x7f"))
}

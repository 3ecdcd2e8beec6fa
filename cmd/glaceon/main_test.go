package main

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"testing"

	"github.com/addityasingh/glaceon/pkg/config"
	"github.com/addityasingh/glaceon/pkg/policy"
	"github.com/addityasingh/glaceon/pkg/service"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testConfig writes a config file whose state lives in a temp dir.
func testConfig(t *testing.T, extra string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := fmt.Sprintf("state:\n  path: %s\nadmin:\n  port: %d\nmonitor:\n  mode: poll\n%s",
		filepath.Join(dir, "state.db"), freePort(t), extra)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func freePort(t *testing.T) int {
	t.Helper()
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer listener.Close()
	return listener.Addr().(*net.TCPAddr).Port
}

// executeCommand runs the root command with args and returns its output.
func executeCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	defer rootCmd.SetArgs(nil)

	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestRootCommand(t *testing.T) {
	assert.Equal(t, "glaceon", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
	assert.Contains(t, rootCmd.Version, version)
	assert.Contains(t, rootCmd.Version, commit)
	assert.Contains(t, rootCmd.Version, date)
}

func TestGlobalFlags(t *testing.T) {
	tests := []struct {
		name      string
		flag      string
		shorthand string
		defValue  string
	}{
		{"config flag", "config", "c", config.DefaultPath()},
		{"log level flag", "log-level", "l", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			flag := rootCmd.PersistentFlags().Lookup(tt.flag)
			require.NotNil(t, flag)
			assert.Equal(t, tt.shorthand, flag.Shorthand)
			assert.Equal(t, tt.defValue, flag.DefValue)
		})
	}
}

func TestSubcommandsRegistered(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"run", "login", "logout", "folders", "settings", "ctl", "archive"} {
		assert.True(t, names[want], "missing subcommand %s", want)
	}
}

func TestNewLogger(t *testing.T) {
	tests := []struct {
		name      string
		cfg       config.LoggingConfig
		level     logrus.Level
		formatter interface{}
	}{
		{"text info", config.LoggingConfig{Level: "info", Format: "text"}, logrus.InfoLevel, &logrus.TextFormatter{}},
		{"json debug", config.LoggingConfig{Level: "debug", Format: "json"}, logrus.DebugLevel, &logrus.JSONFormatter{}},
		{"bad level falls back", config.LoggingConfig{Level: "loud"}, logrus.InfoLevel, &logrus.TextFormatter{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger := newLogger(tt.cfg)
			assert.Equal(t, tt.level, logger.GetLevel())
			assert.IsType(t, tt.formatter, logger.Formatter)
		})
	}
}

func TestSettingsCommands(t *testing.T) {
	path := testConfig(t, "")

	out, err := executeCommand(t, "--config", path, "settings", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "enabled:        false")
	assert.Contains(t, out, "wifi-only:      true")

	_, err = executeCommand(t, "--config", path, "settings", "set", "enabled", "true")
	require.NoError(t, err)
	_, err = executeCommand(t, "--config", path, "settings", "set", "size-limit-mb", "5")
	require.NoError(t, err)

	out, err = executeCommand(t, "--config", path, "settings", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "enabled:        true")
	assert.Contains(t, out, "size-limit-mb:  5")

	_, err = executeCommand(t, "--config", path, "settings", "set", "colour", "blue")
	assert.Error(t, err)
}

func TestApplySetting(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		value   string
		wantErr bool
		check   func(t *testing.T, p policy.Policy)
	}{
		{"enable", "enabled", "true", false, func(t *testing.T, p policy.Policy) { assert.True(t, p.Enabled) }},
		{"wifi off", "wifi-only", "false", false, func(t *testing.T, p policy.Policy) { assert.False(t, p.WifiOnly) }},
		{"category", "category", " photos ", false, func(t *testing.T, p policy.Policy) { assert.Equal(t, "photos", p.Category) }},
		{"size", "size-limit-mb", "10", false, func(t *testing.T, p policy.Policy) { assert.Equal(t, int64(10<<20), p.SizeLimitBytes) }},
		{"extensions", "extensions", ".JPG, png,,", false, func(t *testing.T, p policy.Policy) {
			assert.Equal(t, []string{"jpg", "png"}, p.Extensions())
		}},
		{"bad bool", "enabled", "maybe", true, nil},
		{"zero size", "size-limit-mb", "0", true, nil},
		{"bad size", "size-limit-mb", "ten", true, nil},
		{"empty extensions", "extensions", " , ", true, nil},
		{"empty category", "category", "  ", true, nil},
		{"unknown key", "colour", "blue", true, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := policy.NewMemoryStore(policy.Defaults(t.TempDir()))
			err := applySetting(context.Background(), store, tt.key, tt.value)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)

			p, err := store.Snapshot(context.Background())
			require.NoError(t, err)
			tt.check(t, p)
		})
	}
}

func TestFoldersCommands(t *testing.T) {
	path := testConfig(t, "")
	folder := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(folder, "a.jpg"), []byte("x"), 0o644))

	_, err := executeCommand(t, "--config", path, "folders", "add", folder)
	require.NoError(t, err)

	out, err := executeCommand(t, "--config", path, "folders", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "Monitored folders (auto-upload disabled)")
	assert.Contains(t, out, folder)
	assert.Contains(t, out, "1 files")

	_, err = executeCommand(t, "--config", path, "folders", "remove", folder)
	require.NoError(t, err)

	out, err = executeCommand(t, "--config", path, "folders", "list")
	require.NoError(t, err)
	assert.NotContains(t, out, folder)
}

func TestFoldersCommands_DaemonRunning(t *testing.T) {
	assert.Contains(t, foldersCmd.Long, "stop it first")

	path := testConfig(t, "")
	cfg, err := config.Load(path)
	require.NoError(t, err)

	app, err := NewApplication(context.Background(), cfg, newLogger(cfg.Logging))
	require.NoError(t, err)
	defer app.Shutdown(context.Background())

	_, err = executeCommand(t, "--config", path, "folders", "add", t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "locked by a running daemon")
}

func TestRenderFolders_Missing(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "gone")
	out := renderFolders(policy.Policy{Enabled: true, MonitoredFolders: []string{missing}})

	assert.Contains(t, out, "Monitored folders\n")
	assert.Contains(t, out, missing)
	assert.Contains(t, out, "(missing)")
}

func TestApplication_StartShutdown(t *testing.T) {
	path := testConfig(t, "")
	cfg, err := config.Load(path)
	require.NoError(t, err)

	logger := newLogger(cfg.Logging)
	app, err := NewApplication(context.Background(), cfg, logger)
	require.NoError(t, err)

	// Disabled by default: the daemon serves the admin channel but does not monitor.
	require.NoError(t, app.Start(context.Background()))
	assert.Equal(t, service.StateStopped, app.service.State())

	ctlAddr = app.adminServer.Addr()
	defer func() { ctlAddr = "" }()

	_, err = executeCommand(t, "--config", path, "ctl", "start")
	require.NoError(t, err)
	assert.Equal(t, service.StateRunning, app.service.State())

	out, err := executeCommand(t, "--config", path, "ctl", "status")
	require.NoError(t, err)
	assert.Contains(t, out, "state:      running")

	require.NoError(t, app.Shutdown(context.Background()))
	assert.Equal(t, service.StateStopped, app.service.State())
}

func TestApplication_StartsWhenEnabled(t *testing.T) {
	path := testConfig(t, "")
	_, err := executeCommand(t, "--config", path, "settings", "set", "enabled", "true")
	require.NoError(t, err)

	cfg, err := config.Load(path)
	require.NoError(t, err)

	app, err := NewApplication(context.Background(), cfg, newLogger(cfg.Logging))
	require.NoError(t, err)
	require.NoError(t, app.Start(context.Background()))
	defer app.Shutdown(context.Background())

	assert.Equal(t, service.StateRunning, app.service.State())
}

func TestNewGateway_Backends(t *testing.T) {
	cfg := config.Default()
	cfg.Gateway.Backend = "ftp"
	_, _, err := newGateway(context.Background(), cfg, logrus.New())
	assert.Error(t, err)

	cfg = config.Default()
	cfg.API.BaseURL = "ftp://example.com"
	_, _, err = newGateway(context.Background(), cfg, logrus.New())
	assert.Error(t, err)

	cfg = config.Default()
	cfg.Gateway.Backend = "s3"
	cfg.Gateway.S3.Bucket = "photos"
	cfg.Gateway.S3.Region = "us-east-1"
	cfg.Gateway.S3.AccessKey = "key"
	cfg.Gateway.S3.SecretKey = "secret"
	gw, closeFn, err := newGateway(context.Background(), cfg, logrus.New())
	require.NoError(t, err)
	assert.NotNil(t, gw)
	assert.NoError(t, closeFn())
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port: 8080,
			CORS: CORSConfig{AllowedOrigins: []string{"http://localhost:3000"}},
		},
		Database: DatabaseConfig{
			Host:     "localhost",
			Port:     3306,
			Database: "vsl",
			Username: "vsl",
		},
		Inference: InferenceConfig{
			Gesture: ServiceConfig{BaseURL: "http://localhost:5000", Timeout: 30 * time.Second},
			Accent:  ServiceConfig{BaseURL: "http://localhost:5001", Timeout: 10 * time.Second},
		},
		Search: SearchConfig{
			URL:               "http://localhost:9200",
			Index:             "dictionary",
			Timeout:           5 * time.Second,
			BootstrapAttempts: 5,
		},
		Sync: SyncConfig{
			Workers:           2,
			QueueCapacity:     100,
			MaxAttempts:       5,
			BackoffBase:       time.Second,
			BackoffMax:        30 * time.Second,
			ReconcileInterval: 5 * time.Minute,
			ReconcileBatch:    500,
			ReconcileRate:     50,
			SearchLimit:       50,
		},
	}
}

func TestConfigLoader_Load(t *testing.T) {
	tests := []struct {
		name              string
		configContent     string
		want              func() *Config
		wantErrorContains []string
	}{
		{
			name:          "empty config uses defaults",
			configContent: "",
			want:          defaultConfig,
		},
		{
			name: "custom values",
			configContent: `server:
  port: 9090
inference:
  gesture:
    base_url: http://gesture:5000
    timeout: 45s
  accent:
    base_url: http://accent:5001
    timeout: 3s
search:
  url: http://es:9200
  index: vsl_dictionary
sync:
  workers: 4
  queue_capacity: 20
  reconcile_interval: 1m
`,
			want: func() *Config {
				cfg := defaultConfig()
				cfg.Server.Port = 9090
				cfg.Inference.Gesture = ServiceConfig{BaseURL: "http://gesture:5000", Timeout: 45 * time.Second}
				cfg.Inference.Accent = ServiceConfig{BaseURL: "http://accent:5001", Timeout: 3 * time.Second}
				cfg.Search.URL = "http://es:9200"
				cfg.Search.Index = "vsl_dictionary"
				cfg.Sync.Workers = 4
				cfg.Sync.QueueCapacity = 20
				cfg.Sync.ReconcileInterval = time.Minute
				return cfg
			},
		},
		{
			name: "invalid YAML format",
			configContent: `server:
  port: 9090
  invalid yaml format here [[[
`,
			wantErrorContains: []string{
				"configuration file found but could not be read",
				"Please check the file format and permissions",
			},
		},
		{
			name: "too many workers",
			configContent: `sync:
  workers: 8
`,
			wantErrorContains: []string{"invalid configuration: sync.workers must be 5 or less"},
		},
		{
			name: "non-positive timeout",
			configContent: `inference:
  gesture:
    timeout: 0s
`,
			wantErrorContains: []string{"inference.gesture.timeout must be a positive duration"},
		},
		{
			name: "invalid service URL",
			configContent: `inference:
  accent:
    base_url: not a url
`,
			wantErrorContains: []string{"inference.accent.base_url must be a valid URL"},
		},
		{
			name: "both service URLs invalid are reported separately",
			configContent: `inference:
  gesture:
    base_url: nope
  accent:
    base_url: nope
`,
			wantErrorContains: []string{
				"inference.gesture.base_url must be a valid URL",
				"inference.accent.base_url must be a valid URL",
			},
		},
		{
			name: "backoff max below base",
			configContent: `sync:
  backoff_base: 10s
  backoff_max: 1s
`,
			wantErrorContains: []string{"sync.backoff_max"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tmpDir := t.TempDir()
			configPath := filepath.Join(tmpDir, "config.yml")
			require.NoError(t, os.WriteFile(configPath, []byte(tt.configContent), 0644))

			loader, err := NewConfigLoader(configPath)
			require.NoError(t, err)
			got, err := loader.Load()
			if len(tt.wantErrorContains) > 0 {
				require.Error(t, err)
				for _, want := range tt.wantErrorContains {
					assert.Contains(t, err.Error(), want)
				}
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want(), got)
		})
	}
}

func TestConfigLoader_Load_EnvironmentOverrides(t *testing.T) {
	t.Setenv("GESTURE_SERVICE_URL", "http://gesture.internal:5000")
	t.Setenv("ELASTICSEARCH_URL", "http://search.internal:9200")
	t.Setenv("DB_PASSWORD", "secret")

	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yml")
	require.NoError(t, os.WriteFile(configPath, []byte("search:\n  url: http://ignored:9200\n"), 0644))

	loader, err := NewConfigLoader(configPath)
	require.NoError(t, err)
	got, err := loader.Load()
	require.NoError(t, err)

	assert.Equal(t, "http://gesture.internal:5000", got.Inference.Gesture.BaseURL)
	assert.Equal(t, "http://search.internal:9200", got.Search.URL)
	assert.Equal(t, "secret", got.Database.Password)
}

func TestConfigLoader_Load_NoConfigFile(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("HOME", t.TempDir())

	loader, err := NewConfigLoader("")
	require.NoError(t, err)
	got, err := loader.Load()
	require.NoError(t, err)
	assert.Equal(t, defaultConfig(), got)
}

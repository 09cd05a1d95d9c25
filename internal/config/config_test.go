package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/HerbHall/tracelens/internal/perf/monitor"
	"github.com/spf13/viper"
)

func TestViperConfigGetString(t *testing.T) {
	v := viper.New()
	v.Set("name", "test")
	cfg := New(v)

	if got := cfg.GetString("name"); got != "test" {
		t.Errorf("GetString('name') = %q, want %q", got, "test")
	}
}

func TestViperConfigGetInt(t *testing.T) {
	v := viper.New()
	v.Set("port", 8080)
	cfg := New(v)

	if got := cfg.GetInt("port"); got != 8080 {
		t.Errorf("GetInt('port') = %d, want %d", got, 8080)
	}
}

func TestViperConfigGetBool(t *testing.T) {
	v := viper.New()
	v.Set("enabled", true)
	cfg := New(v)

	if got := cfg.GetBool("enabled"); !got {
		t.Error("GetBool('enabled') = false, want true")
	}
}

func TestViperConfigGetDuration(t *testing.T) {
	v := viper.New()
	v.Set("timeout", "5s")
	cfg := New(v)

	want := 5 * time.Second
	if got := cfg.GetDuration("timeout"); got != want {
		t.Errorf("GetDuration('timeout') = %v, want %v", got, want)
	}
}

func TestViperConfigIsSet(t *testing.T) {
	v := viper.New()
	v.Set("exists", true)
	cfg := New(v)

	if !cfg.IsSet("exists") {
		t.Error("IsSet('exists') = false, want true")
	}
	if cfg.IsSet("missing") {
		t.Error("IsSet('missing') = true, want false")
	}
}

func TestViperConfigSub(t *testing.T) {
	v := viper.New()
	v.Set("plugins.perf.enabled", true)
	v.Set("plugins.perf.interval", 30)
	cfg := New(v)

	sub := cfg.Sub("plugins.perf")
	if sub == nil {
		t.Fatal("Sub('plugins.perf') = nil")
	}
	if got := sub.GetBool("enabled"); !got {
		t.Error("sub.GetBool('enabled') = false, want true")
	}
	if got := sub.GetInt("interval"); got != 30 {
		t.Errorf("sub.GetInt('interval') = %d, want %d", got, 30)
	}
}

func TestViperConfigSubMissing(t *testing.T) {
	v := viper.New()
	cfg := New(v)

	sub := cfg.Sub("nonexistent")
	if sub == nil {
		t.Fatal("Sub('nonexistent') should return empty Config, not nil")
	}
	// Should return zero values without panic.
	if got := cfg.GetString("anything"); got != "" {
		t.Errorf("empty config GetString() = %q, want empty", got)
	}
	_ = sub
}

func TestViperConfigUnmarshal(t *testing.T) {
	v := viper.New()
	v.Set("host", "localhost")
	v.Set("port", 9090)
	cfg := New(v)

	var target struct {
		Host string `mapstructure:"host"`
		Port int    `mapstructure:"port"`
	}
	if err := cfg.Unmarshal(&target); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if target.Host != "localhost" {
		t.Errorf("Host = %q, want %q", target.Host, "localhost")
	}
	if target.Port != 9090 {
		t.Errorf("Port = %d, want %d", target.Port, 9090)
	}
}

func TestNilViper(t *testing.T) {
	cfg := New(nil)
	// Should not panic and return zero values.
	if got := cfg.GetString("key"); got != "" {
		t.Errorf("nil viper GetString() = %q, want empty", got)
	}
}

func TestSetDefaults(t *testing.T) {
	v := viper.New()
	SetDefaults(v)
	cfg := New(v)

	if got := cfg.GetInt("plugins.logcapture.max_logs"); got != 1000 {
		t.Errorf("max_logs = %d, want 1000", got)
	}
	if got := cfg.GetDuration("plugins.perf.report_interval"); got != 30*time.Second {
		t.Errorf("report_interval = %v, want 30s", got)
	}
	if got := cfg.GetFloat64("plugins.perf.thresholds.fps"); got != 55 {
		t.Errorf("thresholds.fps = %v, want 55", got)
	}

	var mc monitor.Config
	if err := cfg.Sub("plugins.perf").Unmarshal(&mc); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if mc != monitor.DefaultConfig() {
		t.Errorf("decoded defaults = %+v, want %+v", mc, monitor.DefaultConfig())
	}
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tracelens.yaml")
	data := []byte("server:\n  port: \"9191\"\nplugins:\n  perf:\n    sample_rate: 0.5\n")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	v, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	cfg := New(v)
	if got := cfg.GetString("server.port"); got != "9191" {
		t.Errorf("server.port = %q, want 9191", got)
	}
	if got := cfg.GetFloat64("plugins.perf.sample_rate"); got != 0.5 {
		t.Errorf("sample_rate = %v, want 0.5", got)
	}
	if got := cfg.GetString("server.host"); got != "127.0.0.1" {
		t.Errorf("server.host = %q, want default 127.0.0.1", got)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("Load with a missing explicit file succeeded")
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("TRACELENS_SERVER_PORT", "8181")
	t.Chdir(t.TempDir())

	v, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := New(v).GetString("server.port"); got != "8181" {
		t.Errorf("server.port = %q, want 8181 from env", got)
	}
}

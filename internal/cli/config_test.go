package cli

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/spf13/viper"

	"github.com/ppiankov/floodclaims/internal/model"
)

// resetViper installs defaults and environment lookup on a clean viper
func resetViper(t *testing.T) {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)
	setDefaults(model.DefaultConfig())
	viper.SetEnvPrefix("FLOODCLAIMS")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
}

func TestLoadConfig_Defaults(t *testing.T) {
	resetViper(t)

	cfg, err := loadConfig()
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if diff := cmp.Diff(model.DefaultConfig(), cfg); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadConfig_EnvOverride(t *testing.T) {
	resetViper(t)
	t.Setenv("FLOODCLAIMS_DATA_DIR", "/srv/flood")
	t.Setenv("FLOODCLAIMS_EVENTS_RADIUS_KM", "12.5")
	t.Setenv("FLOODCLAIMS_MIRROR_S3_BUCKET", "flood-archive")

	cfg, err := loadConfig()
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.Data.Dir != "/srv/flood" {
		t.Errorf("data dir = %q, want /srv/flood", cfg.Data.Dir)
	}
	if cfg.Events.RadiusKm != 12.5 {
		t.Errorf("radius = %v, want 12.5", cfg.Events.RadiusKm)
	}
	if cfg.Mirror.S3.Bucket != "flood-archive" {
		t.Errorf("bucket = %q, want flood-archive", cfg.Mirror.S3.Bucket)
	}
}

func TestWriteDefaultConfig(t *testing.T) {
	resetViper(t)
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	if err := writeDefaultConfig(path); err != nil {
		t.Fatalf("writeDefaultConfig: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(string(data), "# floodclaims configuration") {
		t.Errorf("missing header:\n%s", data)
	}

	viper.SetConfigFile(path)
	if err := viper.ReadInConfig(); err != nil {
		t.Fatalf("read written config: %v", err)
	}
	cfg, err := loadConfig()
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if diff := cmp.Diff(model.DefaultConfig(), cfg); diff != "" {
		t.Errorf("written config does not round trip (-want +got):\n%s", diff)
	}

	if err := writeDefaultConfig(path); err == nil {
		t.Error("expected error when config already exists")
	}
}

func TestOutputPath(t *testing.T) {
	cfg := model.DefaultConfig()
	cfg.Output.Dir = "out"

	tests := []struct {
		name string
		want string
	}{
		{"report.json", filepath.Join("out", "report.json")},
		{"/tmp/report.json", "/tmp/report.json"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := outputPath(cfg, tt.name); got != tt.want {
			t.Errorf("outputPath(%q) = %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestParseBBox(t *testing.T) {
	box, err := parseBBox("-87.1, 35.9, -86.5, 36.4")
	if err != nil {
		t.Fatalf("parseBBox: %v", err)
	}
	want := model.BoundingBox{MinLon: -87.1, MinLat: 35.9, MaxLon: -86.5, MaxLat: 36.4}
	if box != want {
		t.Errorf("box = %+v, want %+v", box, want)
	}

	for _, bad := range []string{"", "1,2,3", "a,2,3,4", "-86.5,35.9,-87.1,36.4"} {
		if _, err := parseBBox(bad); err == nil {
			t.Errorf("parseBBox(%q): expected error", bad)
		}
	}
}

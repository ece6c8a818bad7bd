// Package config loads application configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Config holds the application configuration loaded from environment variables.
type Config struct {
	GitHubToken   string
	GitHubAppID   int64
	GitHubRepo    string // "owner/name" of the firmware repository.
	WebhookSecret string

	CircleCIToken   string
	CircleCIProject string

	CheckName     string
	ThresholdAmps float64
	PackJobName   string
	ArtifactPaths []string
	MaxWait       time.Duration
	RetryPeriod   time.Duration

	FlashCmd       []string
	MeasureCmd     []string
	ToolTimeout    time.Duration
	CaptureSeconds int
	SampleHz       int

	S3Bucket string
	S3Region string

	ListenAddr string
	DBPath     string
	WorkDir    string
	QueueDepth int
}

// PublishingEnabled reports whether result uploads are configured. When false
// the composition root wires a disabled publisher and reports degrade to
// link-free summaries.
func (c *Config) PublishingEnabled() bool {
	return c.S3Bucket != "" && c.S3Region != ""
}

// Load reads configuration from POWERGATE_* environment variables and returns
// a validated Config. Required: GITHUB_TOKEN, GITHUB_APP_ID, GITHUB_REPO,
// WEBHOOK_SECRET, CIRCLECI_TOKEN, FLASH_CMD, MEASURE_CMD. Everything else has
// a default suited to the single-rig deployment.
func Load() (*Config, error) {
	cfg := &Config{
		GitHubToken:     os.Getenv("POWERGATE_GITHUB_TOKEN"),
		GitHubRepo:      os.Getenv("POWERGATE_GITHUB_REPO"),
		WebhookSecret:   os.Getenv("POWERGATE_WEBHOOK_SECRET"),
		CircleCIToken:   os.Getenv("POWERGATE_CIRCLECI_TOKEN"),
		CircleCIProject: os.Getenv("POWERGATE_CIRCLECI_PROJECT"),
		CheckName:       "power-consumption",
		ThresholdAmps:   0.005,
		PackJobName:     "pack_images",
		ArtifactPaths:   []string{"build/app_image.bin", "build/bootloader.bin"},
		MaxWait:         14 * time.Minute,
		RetryPeriod:     15 * time.Second,
		ToolTimeout:     5 * time.Minute,
		CaptureSeconds:  90,
		SampleHz:        1000,
		S3Bucket:        os.Getenv("POWERGATE_S3_BUCKET"),
		S3Region:        os.Getenv("POWERGATE_S3_REGION"),
		ListenAddr:      "127.0.0.1:8080",
		DBPath:          "powergate.db",
		WorkDir:         filepath.Join(os.TempDir(), "powergate"),
		QueueDepth:      8,
	}

	for _, req := range []struct{ name, value string }{
		{"POWERGATE_GITHUB_TOKEN", cfg.GitHubToken},
		{"POWERGATE_GITHUB_REPO", cfg.GitHubRepo},
		{"POWERGATE_WEBHOOK_SECRET", cfg.WebhookSecret},
		{"POWERGATE_CIRCLECI_TOKEN", cfg.CircleCIToken},
	} {
		if req.value == "" {
			return nil, fmt.Errorf("%s is required", req.name)
		}
	}
	if !strings.Contains(cfg.GitHubRepo, "/") {
		return nil, fmt.Errorf("POWERGATE_GITHUB_REPO must be owner/name, got %q", cfg.GitHubRepo)
	}
	if cfg.CircleCIProject == "" {
		cfg.CircleCIProject = cfg.GitHubRepo
	}

	appID, err := requiredInt64("POWERGATE_GITHUB_APP_ID")
	if err != nil {
		return nil, err
	}
	cfg.GitHubAppID = appID

	if v, ok := os.LookupEnv("POWERGATE_CHECK_NAME"); ok && v != "" {
		cfg.CheckName = v
	}
	if v, ok := os.LookupEnv("POWERGATE_THRESHOLD_AMPS"); ok {
		parsed, err := strconv.ParseFloat(v, 64)
		if err != nil || parsed <= 0 {
			return nil, fmt.Errorf("POWERGATE_THRESHOLD_AMPS has invalid value %q", v)
		}
		cfg.ThresholdAmps = parsed
	}
	if v, ok := os.LookupEnv("POWERGATE_PACK_JOB_NAME"); ok && v != "" {
		cfg.PackJobName = v
	}
	if v, ok := os.LookupEnv("POWERGATE_ARTIFACT_PATHS"); ok && v != "" {
		cfg.ArtifactPaths = splitList(v)
	}

	if err := overrideDuration("POWERGATE_MAX_WAIT", &cfg.MaxWait); err != nil {
		return nil, err
	}
	if err := overrideDuration("POWERGATE_RETRY_PERIOD", &cfg.RetryPeriod); err != nil {
		return nil, err
	}
	if err := overrideDuration("POWERGATE_TOOL_TIMEOUT", &cfg.ToolTimeout); err != nil {
		return nil, err
	}

	cfg.FlashCmd = strings.Fields(os.Getenv("POWERGATE_FLASH_CMD"))
	if len(cfg.FlashCmd) == 0 {
		return nil, fmt.Errorf("POWERGATE_FLASH_CMD is required")
	}
	cfg.MeasureCmd = strings.Fields(os.Getenv("POWERGATE_MEASURE_CMD"))
	if len(cfg.MeasureCmd) == 0 {
		return nil, fmt.Errorf("POWERGATE_MEASURE_CMD is required")
	}

	if err := overrideInt("POWERGATE_CAPTURE_SECONDS", &cfg.CaptureSeconds); err != nil {
		return nil, err
	}
	if err := overrideInt("POWERGATE_SAMPLE_HZ", &cfg.SampleHz); err != nil {
		return nil, err
	}
	if err := overrideInt("POWERGATE_QUEUE_DEPTH", &cfg.QueueDepth); err != nil {
		return nil, err
	}

	if v, ok := os.LookupEnv("POWERGATE_LISTEN_ADDR"); ok && v != "" {
		cfg.ListenAddr = v
	}
	if v, ok := os.LookupEnv("POWERGATE_DB_PATH"); ok && v != "" {
		cfg.DBPath = v
	}
	if v, ok := os.LookupEnv("POWERGATE_WORK_DIR"); ok && v != "" {
		cfg.WorkDir = v
	}

	return cfg, nil
}

func requiredInt64(name string) (int64, error) {
	v := os.Getenv(name)
	if v == "" {
		return 0, fmt.Errorf("%s is required", name)
	}
	parsed, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s has invalid value %q: %w", name, v, err)
	}
	return parsed, nil
}

func overrideDuration(name string, dst *time.Duration) error {
	v, ok := os.LookupEnv(name)
	if !ok {
		return nil
	}
	parsed, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("%s has invalid duration %q: %w", name, v, err)
	}
	*dst = parsed
	return nil
}

func overrideInt(name string, dst *int) error {
	v, ok := os.LookupEnv(name)
	if !ok {
		return nil
	}
	parsed, err := strconv.Atoi(v)
	if err != nil || parsed <= 0 {
		return fmt.Errorf("%s has invalid value %q", name, v)
	}
	*dst = parsed
	return nil
}

func splitList(v string) []string {
	var out []string
	for _, item := range strings.Split(v, ",") {
		item = strings.TrimSpace(item)
		if item != "" {
			out = append(out, item)
		}
	}
	return out
}

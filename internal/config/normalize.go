package config

import (
	"fmt"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeTransport()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	fields := []struct {
		name  string
		value *string
	}{
		{"paths.work_dir", &c.Paths.WorkDir},
		{"paths.output_dir", &c.Paths.OutputDir},
		{"paths.log_dir", &c.Paths.LogDir},
		{"paths.models_dir", &c.Paths.ModelsDir},
		{"asr.cache_dir", &c.ASR.CacheDir},
	}
	for _, field := range fields {
		if strings.TrimSpace(*field.value) == "" {
			continue
		}
		expanded, err := expandPath(*field.value)
		if err != nil {
			return fmt.Errorf("normalize %s: %w", field.name, err)
		}
		*field.value = expanded
	}
	if strings.TrimSpace(c.ASR.CacheDir) == "" {
		expanded, err := expandPath(defaultASRCache)
		if err != nil {
			return fmt.Errorf("normalize asr.cache_dir: %w", err)
		}
		c.ASR.CacheDir = expanded
	}
	return nil
}

func (c *Config) normalizeTransport() {
	t := &c.Transport
	if t.MaxRetries <= 0 {
		t.MaxRetries = defaultMaxRetries
	}
	if t.InitialDelayMS <= 0 {
		t.InitialDelayMS = defaultInitialDelayMS
	}
	if t.MaxDelayMS <= 0 {
		t.MaxDelayMS = defaultMaxDelayMS
	}
	if t.BackoffMultiplier <= 1 {
		t.BackoffMultiplier = defaultBackoffMultiplier
	}
	if t.CircuitWindowSize <= 0 {
		t.CircuitWindowSize = defaultCircuitWindowSize
	}
	if t.CircuitCooldownMS <= 0 {
		t.CircuitCooldownMS = defaultCircuitCooldownMS
	}
	if t.RequestTimeoutMS <= 0 {
		t.RequestTimeoutMS = defaultRequestTimeoutMS
	}
	if t.SweepIntervalMS <= 0 {
		t.SweepIntervalMS = defaultSweepIntervalMS
	}
	if t.MaxFrameMB <= 0 {
		t.MaxFrameMB = defaultMaxFrameMB
	}
	if t.InlineAudioLimitBytes <= 0 {
		t.InlineAudioLimitBytes = defaultInlineAudioLimitBytes
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}

package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateTransport(); err != nil {
		return err
	}
	if err := c.validateDubbing(); err != nil {
		return err
	}
	if err := c.validateTTS(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.WorkDir) == "" {
		return errors.New("paths.work_dir must be set")
	}
	if strings.TrimSpace(c.Paths.OutputDir) == "" {
		return errors.New("paths.output_dir must be set")
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		return errors.New("paths.log_dir must be set")
	}
	return nil
}

func (c *Config) validateTransport() error {
	t := c.Transport
	if strings.TrimSpace(t.PushBind) == "" {
		return errors.New("transport.push_bind must be set")
	}
	if strings.TrimSpace(t.PubBind) == "" {
		return errors.New("transport.pub_bind must be set")
	}
	if t.CircuitFailureThreshold <= 0 || t.CircuitFailureThreshold > 1 {
		return errors.New("transport.circuit_failure_threshold must be between 0 and 1")
	}
	if t.MaxDelayMS < t.InitialDelayMS {
		return fmt.Errorf("transport.max_delay_ms (%d) must be >= initial_delay_ms (%d)", t.MaxDelayMS, t.InitialDelayMS)
	}
	return nil
}

func (c *Config) validateDubbing() error {
	d := c.Dubbing
	if d.MaxReassemblyGapMS < 0 {
		return errors.New("dubbing.max_reassembly_gap_ms must not be negative")
	}
	if d.SegmentDurationTolerancePct <= 0 || d.SegmentDurationTolerancePct >= 100 {
		return errors.New("dubbing.segment_duration_tolerance_pct must be between 0 and 100")
	}
	if d.AlignSimilarityThreshold <= 0 || d.AlignSimilarityThreshold > 1 {
		return errors.New("dubbing.align_similarity_threshold must be between 0 and 1")
	}
	if d.MaxStretchRatio < 1 {
		return errors.New("dubbing.max_stretch_ratio must be >= 1")
	}
	return nil
}

func (c *Config) validateTTS() error {
	if c.TTS.ModelDownloadTimeoutMS <= 0 {
		return errors.New("tts.model_download_timeout_ms must be positive")
	}
	if len(c.TTS.Devices) == 0 {
		return errors.New("tts.devices must list at least one device")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn, or error, got %q", c.Logging.Level)
	}
	return nil
}

package config

import (
	"errors"
	"fmt"
	"net"
	"sort"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateCarrier(); err != nil {
		return err
	}
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	if err := c.validateBridge(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validatePaths() error {
	if c.Paths.DataDir == "" {
		return errors.New("paths.data_dir must be set")
	}
	if _, _, err := net.SplitHostPort(c.Paths.APIBind); err != nil {
		return fmt.Errorf("paths.api_bind %q: %w", c.Paths.APIBind, err)
	}
	return nil
}

func (c *Config) validateCarrier() error {
	if err := ensurePositiveMap(map[string]int{
		"carrier.capacity":         c.Carrier.Capacity,
		"carrier.enter_timeout_ms": c.Carrier.EnterTimeoutMS,
		"carrier.exit_timeout_ms":  c.Carrier.ExitTimeoutMS,
	}); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateWorkflow() error {
	if err := ensurePositiveMap(map[string]int{
		"workflow.tick_interval_ms":   c.Workflow.TickIntervalMS,
		"workflow.event_buffer":       c.Workflow.EventBuffer,
		"workflow.transit_timeout_ms": c.Workflow.TransitTimeoutMS,
	}); err != nil {
		return err
	}
	if c.Workflow.TickIntervalMS >= c.Carrier.EnterTimeoutMS {
		return errors.New("workflow.tick_interval_ms must be shorter than carrier.enter_timeout_ms")
	}
	return nil
}

func (c *Config) validateBridge() error {
	if c.Bridge.ClientBuffer <= 0 {
		return errors.New("bridge.client_buffer must be positive")
	}
	if c.History.Enabled && c.History.Buffer <= 0 {
		return errors.New("history.buffer must be positive when history.enabled is true")
	}
	if c.History.RetentionDays < 0 {
		return errors.New("history.retention_days must not be negative")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
		return nil
	default:
		return fmt.Errorf("logging.level %q must be one of debug, info, warn, error", c.Logging.Level)
	}
}

// ensurePositiveMap reports the first non-positive key in sorted order so
// error messages are stable.
func ensurePositiveMap(values map[string]int) error {
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		if values[key] <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}

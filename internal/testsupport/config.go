package testsupport

import (
	"path/filepath"
	"testing"

	"ribosim/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.DataDir = filepath.Join(base, "data")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.APIBind = "127.0.0.1:0"
	cfgVal.Logging.Format = "json"
	cfgVal.Bridge.Advertise = false

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithCapacity overrides the on-stage carrier limit.
func WithCapacity(capacity int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Carrier.Capacity = capacity
	}
}

// WithProtein overrides the default protein.
func WithProtein(name string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Catalog.DefaultProtein = name
	}
}

// WithoutHistory disables the session journal.
func WithoutHistory() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.History.Enabled = false
	}
}

// WithCatalogFile points the catalog at a file under the test's temp dir.
func WithCatalogFile(name string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Catalog.Path = filepath.Join(b.baseDir, name)
	}
}

package batch

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{"defaults", func(c *Config) {}, nil},
		{"zero concurrency", func(c *Config) { c.Concurrency = 0 }, ErrInvalidConcurrency},
		{"negative concurrency", func(c *Config) { c.Concurrency = -2 }, ErrInvalidConcurrency},
		{"zero safety factor", func(c *Config) { c.SafetyFactor = 0 }, ErrInvalidSafetyFactor},
		{"safety factor above one", func(c *Config) { c.SafetyFactor = 1.5 }, ErrInvalidSafetyFactor},
		{"zero rpm", func(c *Config) { c.RequestsPerMinute = 0 }, ErrInvalidRate},
		{"zero tpm", func(c *Config) { c.TokensPerMinute = 0 }, ErrInvalidRate},
		{"negative retries", func(c *Config) { c.MaxRetries = -1 }, ErrInvalidRate},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			if err := cfg.Validate(); !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestMaxTokensPerBatch(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want int
	}{
		{
			// 150000 * 0.8 / 4 / 60 = 500 -> floor below lower bound
			name: "defaults hit the floor",
			cfg:  DefaultConfig(),
			want: 1000,
		},
		{
			// 1200000 * 0.5 / 2 / 60 = 5000
			name: "large budget",
			cfg:  Config{TokensPerMinute: 1200000, SafetyFactor: 0.5, Concurrency: 2},
			want: 5000,
		},
		{
			name: "tiny budget clamps to 1000",
			cfg:  Config{TokensPerMinute: 600, SafetyFactor: 1, Concurrency: 8},
			want: 1000,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cfg.maxTokensPerBatch(); got != tt.want {
				t.Errorf("maxTokensPerBatch() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestBatchEstimateTokens(t *testing.T) {
	tests := []struct {
		text string
		want int
	}{
		{"", 0},
		{"a", 1},
		{"abcd", 1},
		{"abcde", 2},
		{strings.Repeat("x", 400), 100},
		{strings.Repeat("x", 401), 101},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d chars", len(tt.text)), func(t *testing.T) {
			if got := EstimateTokens(tt.text); got != tt.want {
				t.Errorf("EstimateTokens = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestRetryable(t *testing.T) {
	if !retryable(fmt.Errorf("wrapped: %w", ErrThrottled)) {
		t.Error("wrapped ErrThrottled should be retryable")
	}
	if !retryable(fmt.Errorf("wrapped: %w", ErrTransient)) {
		t.Error("wrapped ErrTransient should be retryable")
	}
	if retryable(errors.New("bad request")) {
		t.Error("arbitrary errors must be terminal")
	}
	if retryable(nil) {
		t.Error("nil is not retryable")
	}
}

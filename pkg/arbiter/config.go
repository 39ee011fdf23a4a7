package arbiter

import (
	"fmt"
	"log/slog"
	"slices"
	"time"
)

// Direction tells which side of a proxied exchange is being evaluated.
type Direction string

const (
	DirectionIngress Direction = "ingress"
	DirectionEgress  Direction = "egress"
	DirectionDirect  Direction = "direct"
)

// Observer receives every result the engine produces. Implementations must
// not retain or modify the result.
type Observer interface {
	ObserveEvaluation(direction Direction, result *EvaluationResult, elapsed time.Duration)
}

// EngineConfig contains configuration for the arbitration engine.
type EngineConfig struct {
	// FinancialPhrases are matched against Financial-category policies.
	// Default: DefaultFinancialPhrases.
	FinancialPhrases []string

	// MaxEvidence caps the evidence entries attached to one result.
	// Default: 64.
	MaxEvidence int

	// Logger defaults to slog.Default().
	Logger *slog.Logger

	// Observer is optional.
	Observer Observer
}

// DefaultEngineConfig returns the default engine configuration.
func DefaultEngineConfig() *EngineConfig {
	return &EngineConfig{
		FinancialPhrases: slices.Clone(DefaultFinancialPhrases),
		MaxEvidence:      64,
	}
}

// Validate validates the engine configuration.
func (c *EngineConfig) Validate() error {
	if len(c.FinancialPhrases) == 0 {
		return fmt.Errorf("%w: at least one financial phrase is required", ErrInvalidConfig)
	}
	for i, p := range c.FinancialPhrases {
		if p == "" {
			return fmt.Errorf("%w: financial phrase %d is empty", ErrInvalidConfig, i)
		}
	}
	if c.MaxEvidence <= 0 {
		return fmt.Errorf("%w: max evidence must be positive", ErrInvalidConfig)
	}
	return nil
}

// WithFinancialPhrases replaces the financial phrase list.
func (c *EngineConfig) WithFinancialPhrases(phrases ...string) *EngineConfig {
	c.FinancialPhrases = slices.Clone(phrases)
	return c
}

// WithMaxEvidence sets the evidence cap.
func (c *EngineConfig) WithMaxEvidence(n int) *EngineConfig {
	c.MaxEvidence = n
	return c
}

// WithLogger sets the logger.
func (c *EngineConfig) WithLogger(logger *slog.Logger) *EngineConfig {
	c.Logger = logger
	return c
}

// WithObserver sets the result observer.
func (c *EngineConfig) WithObserver(o Observer) *EngineConfig {
	c.Observer = o
	return c
}

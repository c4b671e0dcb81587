package book

import (
	"fmt"
	"strings"

	"github.com/compozy/bookstore/engine/core"
)

// ReadStrategy selects how rows are fetched and mapped by ReadAll.
type ReadStrategy string

const (
	// StrategyManual extracts every column by name from a buffered result.
	StrategyManual ReadStrategy = "manual"
	// StrategyDeclarative maps whole rows onto a tagged struct.
	StrategyDeclarative ReadStrategy = "declarative"
	// StrategyStreamed decodes rows as they arrive and skips rows that fail.
	StrategyStreamed ReadStrategy = "streamed"
)

// DefaultStrategy is used when callers do not pick one.
const DefaultStrategy = StrategyDeclarative

// ReadStrategies lists every supported strategy.
func ReadStrategies() []ReadStrategy {
	return []ReadStrategy{StrategyManual, StrategyDeclarative, StrategyStreamed}
}

func (s ReadStrategy) String() string { return string(s) }

// Valid reports whether s names a known strategy.
func (s ReadStrategy) Valid() bool {
	switch s {
	case StrategyManual, StrategyDeclarative, StrategyStreamed:
		return true
	default:
		return false
	}
}

// ParseReadStrategy accepts the strategy names plus the v1/v2/v3 aliases used
// by the CLI. An empty value yields DefaultStrategy.
func ParseReadStrategy(value string) (ReadStrategy, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "":
		return DefaultStrategy, nil
	case "manual", "v1":
		return StrategyManual, nil
	case "declarative", "v2":
		return StrategyDeclarative, nil
	case "streamed", "stream", "v3":
		return StrategyStreamed, nil
	default:
		return "", fmt.Errorf("unknown read strategy %q: %w", value, core.ErrInvalidInput)
	}
}

package layout

import "fmt"

// Target names one of the three split points of the workspace.
type Target string

const (
	TargetOuter    Target = "outer"
	TargetInner    Target = "inner"
	TargetTerminal Target = "terminal"
)

// ParseTarget converts a name into a Target.
func ParseTarget(s string) (Target, error) {
	switch t := Target(s); t {
	case TargetOuter, TargetInner, TargetTerminal:
		return t, nil
	default:
		return "", fmt.Errorf("unknown split target: %q", s)
	}
}

// Axis returns the drag axis used by the target.
func (t Target) Axis() Axis {
	if t == TargetTerminal {
		return Vertical
	}
	return Horizontal
}

// Config holds defaults and bounds for each split point.
type Config struct {
	OuterDefault    float64 `yaml:"outer_default"`
	OuterBounds     Bounds  `yaml:"outer_bounds"`
	InnerDefault    float64 `yaml:"inner_default"`
	InnerBounds     Bounds  `yaml:"inner_bounds"`
	TerminalDefault float64 `yaml:"terminal_default"`
	TerminalBounds  Bounds  `yaml:"terminal_bounds"`
}

// DefaultConfig returns the stock workspace layout.
func DefaultConfig() Config {
	return Config{
		OuterDefault:    40,
		OuterBounds:     Bounds{Min: 20, Max: 75},
		InnerDefault:    50,
		InnerBounds:     Bounds{Min: 20, Max: 75},
		TerminalDefault: 200,
		TerminalBounds:  Bounds{Min: 80, Max: 600},
	}
}

// Validate checks every bounds pair.
func (c Config) Validate() error {
	for name, b := range map[string]Bounds{
		"outer":    c.OuterBounds,
		"inner":    c.InnerBounds,
		"terminal": c.TerminalBounds,
	} {
		if err := b.Validate(); err != nil {
			return fmt.Errorf("%s split: %w", name, err)
		}
	}
	return nil
}

// Bounds returns the bounds for a target.
func (c Config) Bounds(t Target) Bounds {
	switch t {
	case TargetOuter:
		return c.OuterBounds
	case TargetInner:
		return c.InnerBounds
	default:
		return c.TerminalBounds
	}
}

// State is the UI layout of a workspace. It is independent of which problem
// or language is active.
type State struct {
	OuterSplitPercent float64 `json:"outerSplitPercent"`
	InnerSplitPercent float64 `json:"innerSplitPercent"`
	TerminalHeightPx  float64 `json:"terminalHeightPx"`
	TerminalCollapsed bool    `json:"terminalCollapsed"`
}

// NewState returns the clamped defaults of cfg.
func NewState(cfg Config) State {
	return State{
		OuterSplitPercent: cfg.OuterBounds.Clamp(cfg.OuterDefault),
		InnerSplitPercent: cfg.InnerBounds.Clamp(cfg.InnerDefault),
		TerminalHeightPx:  cfg.TerminalBounds.Clamp(cfg.TerminalDefault),
	}
}

// Get returns the current value for a target.
func (s State) Get(t Target) float64 {
	switch t {
	case TargetOuter:
		return s.OuterSplitPercent
	case TargetInner:
		return s.InnerSplitPercent
	default:
		return s.TerminalHeightPx
	}
}

// Set stores a value for a target, clamped to cfg.
func (s *State) Set(cfg Config, t Target, v float64) {
	v = cfg.Bounds(t).Clamp(v)
	switch t {
	case TargetOuter:
		s.OuterSplitPercent = v
	case TargetInner:
		s.InnerSplitPercent = v
	default:
		s.TerminalHeightPx = v
	}
}

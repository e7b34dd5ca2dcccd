package models

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"
)

// Rules are the caller-supplied constraints for one job.
// Zero values mean "unset" and are filled by WithDefaults.
type Rules struct {
	MaxCount      int     `json:"maxCount" yaml:"maxCount"`
	MaxLongEdge   int     `json:"maxLongEdge,omitempty" yaml:"maxLongEdge"` // px, 0 = no limit
	MaxBytes      int64   `json:"maxBytes,omitempty" yaml:"maxBytes"`       // 0 = no limit
	Quality       float64 `json:"quality" yaml:"quality"`                   // 0-1, upper bound of the search
	MinQuality    float64 `json:"minQuality" yaml:"minQuality"`             // 0-1, lower bound of the search
	StepDownRatio float64 `json:"stepDownRatio" yaml:"stepDownRatio"`       // dimension shrink per retry
	KeepEXIF      bool    `json:"keepEXIF" yaml:"keepEXIF"`                 // advisory, re-encoding drops metadata
	Format        string  `json:"format" yaml:"format"`                     // jpeg | png | auto
}

const (
	DefaultMaxCount      = 200
	DefaultQuality       = 0.82
	DefaultMinQuality    = 0.5
	DefaultStepDownRatio = 0.9

	FormatPreferenceJPEG = "jpeg"
	FormatPreferencePNG  = "png"
	FormatPreferenceAuto = "auto"
)

// DefaultRules returns the rules used when the host supplies none.
func DefaultRules() Rules {
	return Rules{
		MaxCount:      DefaultMaxCount,
		Quality:       DefaultQuality,
		MinQuality:    DefaultMinQuality,
		StepDownRatio: DefaultStepDownRatio,
		Format:        FormatPreferenceJPEG,
	}
}

// WithDefaults returns a copy of r with unset fields replaced by defaults.
func (r Rules) WithDefaults() Rules {
	d := DefaultRules()
	if r.MaxCount == 0 {
		r.MaxCount = d.MaxCount
	}
	if r.Quality == 0 {
		r.Quality = d.Quality
	}
	if r.MinQuality == 0 {
		r.MinQuality = d.MinQuality
	}
	if r.StepDownRatio == 0 {
		r.StepDownRatio = d.StepDownRatio
	}
	if r.Format == "" {
		r.Format = d.Format
	}
	return r
}

// Validate checks the invariants 0 < minQuality <= quality <= 1 and 0 < stepDownRatio < 1.
func (r Rules) Validate() error {
	if r.MaxCount <= 0 {
		return fmt.Errorf("maxCount must be positive, got %d", r.MaxCount)
	}
	if r.MaxLongEdge < 0 {
		return fmt.Errorf("maxLongEdge must not be negative, got %d", r.MaxLongEdge)
	}
	if r.MaxBytes < 0 {
		return fmt.Errorf("maxBytes must not be negative, got %d", r.MaxBytes)
	}
	if r.MinQuality <= 0 || r.MinQuality > r.Quality || r.Quality > 1 {
		return fmt.Errorf("quality bounds must satisfy 0 < minQuality <= quality <= 1, got minQuality=%v quality=%v",
			r.MinQuality, r.Quality)
	}
	if r.StepDownRatio <= 0 || r.StepDownRatio >= 1 {
		return fmt.Errorf("stepDownRatio must be in (0, 1), got %v", r.StepDownRatio)
	}
	switch r.Format {
	case FormatPreferenceJPEG, FormatPreferencePNG, FormatPreferenceAuto:
	default:
		return fmt.Errorf("unknown format preference %q", r.Format)
	}
	return nil
}

// LoadRulesFile reads a YAML rules preset. Fields absent from the file keep their defaults.
func LoadRulesFile(path string) (Rules, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Rules{}, fmt.Errorf("failed to read rules file: %w", err)
	}
	var r Rules
	if err := yaml.Unmarshal(data, &r); err != nil {
		return Rules{}, fmt.Errorf("failed to decode rules file: %w", err)
	}
	return r.WithDefaults(), nil
}

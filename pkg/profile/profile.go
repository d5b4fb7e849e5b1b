// Package profile provides YAML-defined header patterns that tell the tree
// builder how a regulation marks its parts, sections and supplements.
package profile

import (
	"fmt"
	"regexp"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/coolbeans/regparser/pkg/supplement"
)

// DefaultID is the built-in profile for eCFR-style plain text.
const DefaultID = "cfr"

// Profile defines the header patterns of one regulation text format.
type Profile struct {
	// Metadata
	Name        string `yaml:"name" json:"name"`
	Version     string `yaml:"version" json:"version"`
	ProfileID   string `yaml:"profile_id" json:"profile_id"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`

	// PartHeader captures the part number (group 1) and title (group 2).
	PartHeader string `yaml:"part_header" json:"part_header"`

	// SectionHeader captures part (1), section (2) and subject (3).
	SectionHeader string `yaml:"section_header" json:"section_header"`

	// InterpSectionHeader captures part (1), section (2) and subject (3)
	// inside the interpretations supplement.
	InterpSectionHeader string `yaml:"interp_section_header" json:"interp_section_header"`

	// InterpParagraphHeader captures section (1), the marker chain such as
	// "(a)(1)" (2) and the heading text (3).
	InterpParagraphHeader string `yaml:"interp_paragraph_header" json:"interp_paragraph_header"`

	// SupplementHeader is a supplement.HeaderLocator template with {id}.
	SupplementHeader string `yaml:"supplement_header" json:"supplement_header"`

	// SupplementID names the supplement holding interpretations.
	SupplementID string `yaml:"supplement_id,omitempty" json:"supplement_id,omitempty"`

	// Compiled patterns (populated by Compile)
	compiled *Compiled

	// source file, empty for built-in profiles
	file string
}

// Compiled holds the compiled regular expressions of a Profile.
type Compiled struct {
	PartHeader            *regexp.Regexp
	SectionHeader         *regexp.Regexp
	InterpSectionHeader   *regexp.Regexp
	InterpParagraphHeader *regexp.Regexp
	Locator               *supplement.HeaderLocator
}

// Default returns the built-in eCFR profile.
func Default() *Profile {
	return &Profile{
		Name:                  "eCFR plain text",
		Version:               "1.0.0",
		ProfileID:             DefaultID,
		Description:           "PART headers, § section headers and Supplement I interpretations",
		PartHeader:            `^\s*PART\s+(\d+)\s*[—–-]+\s*(.*?)\s*$`,
		SectionHeader:         `^\s*§\s*(\d+)\.(\d+[a-z]?)\s+(.*?)\s*$`,
		InterpSectionHeader:   `^\s*Section\s+(\d+)\.(\d+[a-z]?)\s*[—–-]+\s*(.*?)\s*$`,
		InterpParagraphHeader: `^\s*(\d+[a-z]?)((?:\([A-Za-z0-9]{1,5}\))+)\s*(.*?)\s*$`,
		SupplementHeader:      supplement.DefaultHeaderTemplate,
		SupplementID:          supplement.DefaultID,
	}
}

var profileIDPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9-]*$`)

// Validate checks that the profile has all required fields.
func (p *Profile) Validate() error {
	return validation.ValidateStruct(p,
		validation.Field(&p.Name, validation.Required),
		validation.Field(&p.Version, validation.Required),
		validation.Field(&p.ProfileID, validation.Required, validation.Match(profileIDPattern)),
		validation.Field(&p.SectionHeader, validation.Required),
		validation.Field(&p.SupplementHeader, validation.By(hasIDPlaceholder)),
		validation.Field(&p.SupplementID, validation.By(isRomanID)),
	)
}

func hasIDPlaceholder(value interface{}) error {
	s, _ := value.(string)
	if s != "" && !strings.Contains(s, "{id}") {
		return fmt.Errorf("must contain the {id} placeholder")
	}
	return nil
}

func isRomanID(value interface{}) error {
	s, _ := value.(string)
	if s != "" && !supplement.ValidID(s) {
		return fmt.Errorf("must be a roman numeral")
	}
	return nil
}

// Compile compiles every pattern. Empty optional patterns stay nil.
func (p *Profile) Compile() error {
	compiled := &Compiled{}

	patterns := []struct {
		name   string
		source string
		target **regexp.Regexp
	}{
		{"part_header", p.PartHeader, &compiled.PartHeader},
		{"section_header", p.SectionHeader, &compiled.SectionHeader},
		{"interp_section_header", p.InterpSectionHeader, &compiled.InterpSectionHeader},
		{"interp_paragraph_header", p.InterpParagraphHeader, &compiled.InterpParagraphHeader},
	}
	for _, pattern := range patterns {
		if pattern.source == "" {
			continue
		}
		re, err := regexp.Compile(pattern.source)
		if err != nil {
			return fmt.Errorf("compiling %s pattern %q: %w", pattern.name, pattern.source, err)
		}
		*pattern.target = re
	}

	locator, err := supplement.NewHeaderLocator(p.SupplementHeader)
	if err != nil {
		return err
	}
	compiled.Locator = locator

	p.compiled = compiled
	return nil
}

// IsCompiled returns true if the profile has been compiled.
func (p *Profile) IsCompiled() bool {
	return p.compiled != nil
}

// Patterns returns the compiled patterns, compiling on first use.
func (p *Profile) Patterns() (*Compiled, error) {
	if p.compiled == nil {
		if err := p.Compile(); err != nil {
			return nil, err
		}
	}
	return p.compiled, nil
}

// Supplement returns the configured supplement id, defaulting to "I".
func (p *Profile) Supplement() string {
	if p.SupplementID == "" {
		return supplement.DefaultID
	}
	return p.SupplementID
}

// File returns the path the profile was loaded from, if any.
func (p *Profile) File() string {
	return p.file
}

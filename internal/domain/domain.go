// Package domain holds the project-specific configuration document that
// shapes how tickets are refined. It is loaded once at startup from a YAML
// file and never mutated at runtime.
package domain

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Persona is a known user persona referenced in refinement prompts.
type Persona struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
}

// Module is a key module/directory in the product's repository.
type Module struct {
	Name        string `yaml:"name"`
	Path        string `yaml:"path"`
	Description string `yaml:"description"`
}

// Config is the project-specific context the model uses when refining tickets.
type Config struct {
	ProjectName string `yaml:"project_name"`

	// Repository context
	RepoURL           string   `yaml:"repo_url"`
	TechStack         []string `yaml:"tech_stack"`
	ArchitectureNotes string   `yaml:"architecture_notes"`
	KeyModules        []Module `yaml:"key_modules"`

	// Ticket structure
	TicketStructure []string  `yaml:"ticket_structure"`
	UserPersonas    []Persona `yaml:"user_personas"`
	Platforms       []string  `yaml:"platforms"`

	// Key-value pairs like "performance: p95 < 500ms"
	Standards map[string]string `yaml:"standards"`

	// "bullet" or "gherkin"
	AcceptanceCriteriaStyle string `yaml:"acceptance_criteria_style"`
}

// Default returns a config with the baseline ticket template applied.
func Default() *Config {
	return &Config{
		ProjectName: "My Product",
		TicketStructure: []string{
			"Background",
			"Problem / Current behavior",
			"Desired behavior",
			"Scope",
			"Out of scope",
			"Technical notes (high level)",
			"Risks & impact",
			"Test plan / QA hints",
			"Acceptance criteria",
		},
		AcceptanceCriteriaStyle: "bullet",
	}
}

// Load reads the YAML domain config at path. A missing file yields the
// default config; a present but unparsable file is an error.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, fmt.Errorf("failed to read domain config: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse domain config: %w", err)
	}
	applyDefaults(cfg)
	return cfg, nil
}

// applyDefaults fills fields an explicit file may have left empty.
func applyDefaults(cfg *Config) {
	def := Default()
	if cfg.ProjectName == "" {
		cfg.ProjectName = def.ProjectName
	}
	if len(cfg.TicketStructure) == 0 {
		cfg.TicketStructure = def.TicketStructure
	}
	if cfg.AcceptanceCriteriaStyle == "" {
		cfg.AcceptanceCriteriaStyle = def.AcceptanceCriteriaStyle
	}
}

package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// DomainProfile holds the per-industry prompt and keyword sets.
type DomainProfile struct {
	Name            string   `yaml:"name"`
	BasePrompt      string   `yaml:"base_prompt"`
	ProblemKeywords []string `yaml:"problem_keywords"`
}

type Domains struct {
	Default  string                   `yaml:"default_domain"`
	Profiles map[string]DomainProfile `yaml:"domains"`
}

// Profile returns the profile for tag, falling back to the default domain.
func (d *Domains) Profile(tag string) (string, DomainProfile) {
	if p, ok := d.Profiles[tag]; ok {
		return tag, p
	}
	return d.Default, d.Profiles[d.Default]
}

// LoadDomains reads the YAML profile file. A missing file yields the built-in profiles.
func LoadDomains(path, defaultDomain string) (*Domains, error) {
	domains := DefaultDomains()
	if defaultDomain != "" {
		domains.Default = defaultDomain
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return domains, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read domains file: %w", err)
	}
	return ParseDomains(data, domains)
}

// ParseDomains overlays YAML data on base. Profiles in data replace profiles with the same tag.
func ParseDomains(data []byte, base *Domains) (*Domains, error) {
	var parsed Domains
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("parse domains file: %w", err)
	}

	if base.Profiles == nil {
		base.Profiles = map[string]DomainProfile{}
	}
	for tag, profile := range parsed.Profiles {
		profile.BasePrompt = strings.TrimSpace(profile.BasePrompt)
		base.Profiles[tag] = profile
	}
	if parsed.Default != "" {
		base.Default = parsed.Default
	}
	if _, ok := base.Profiles[base.Default]; !ok {
		return nil, fmt.Errorf("default domain %q has no profile", base.Default)
	}
	return base, nil
}

func DefaultDomains() *Domains {
	return &Domains{
		Default: "real-estate",
		Profiles: map[string]DomainProfile{
			"real-estate": {
				Name: "Real Estate",
				BasePrompt: "You are a friendly, knowledgeable real estate assistant. " +
					"Help buyers find homes by learning their location, budget, size and must-have features. " +
					"Ask one question at a time and keep replies short.",
				ProblemKeywords: []string{"looking for", "buy", "sell", "property", "home", "budget", "prequalified", "market"},
			},
		},
	}
}

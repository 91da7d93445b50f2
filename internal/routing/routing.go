// Package routing ships the static routing policy as an embedded YAML asset.
// The rule set is run-independent: it is loaded once and appended unchanged
// to every generated config.
package routing

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/John-Robertt/v2raygen/internal/model"
)

//go:embed rules.yaml
var rulesYAML []byte

// RuleSet is the static part of the routing section. Head rules precede the
// preferred-node rule in the final document, Static rules follow it.
type RuleSet struct {
	DomainStrategy   string       `yaml:"domain_strategy"`
	PreferredDomains []string     `yaml:"preferred_domains"`
	Head             []model.Rule `yaml:"head_rules"`
	Static           []model.Rule `yaml:"static_rules"`
}

// Load parses the embedded rule asset. An error here means the binary was
// built from a broken asset, so callers usually treat it as fatal.
func Load() (RuleSet, error) {
	var rs RuleSet
	if err := yaml.Unmarshal(rulesYAML, &rs); err != nil {
		return RuleSet{}, fmt.Errorf("parse embedded routing rules: %w", err)
	}
	if rs.DomainStrategy == "" {
		return RuleSet{}, fmt.Errorf("embedded routing rules: missing domain_strategy")
	}
	return rs, nil
}

package report

import (
	"encoding/json"
	"fmt"
	"strings"

	"apisurface/internal/core/model"
	"apisurface/internal/engine/diff"
)

// SARIF v2.1.0 schema – see https://schemastore.azurewebsites.net/schemas/json/sarif-2.1.0-rtm.5.json

const (
	sarifSchema  = "https://schemastore.azurewebsites.net/schemas/json/sarif-2.1.0-rtm.5.json"
	sarifVersion = "2.1.0"

	ruleIDBreaking   = "APS001"
	ruleIDAdditive   = "APS002"
	ruleIDCompatible = "APS003"
)

type sarifReport struct {
	Schema  string     `json:"$schema"`
	Version string     `json:"version"`
	Runs    []sarifRun `json:"runs"`
}

type sarifRun struct {
	Tool       sarifTool         `json:"tool"`
	Results    []sarifResult     `json:"results"`
	Properties map[string]string `json:"properties,omitempty"`
}

type sarifTool struct {
	Driver sarifDriver `json:"driver"`
}

type sarifDriver struct {
	Name    string      `json:"name"`
	Version string      `json:"version"`
	Rules   []sarifRule `json:"rules"`
}

type sarifRule struct {
	ID               string                 `json:"id"`
	Name             string                 `json:"name"`
	ShortDescription sarifMessage           `json:"shortDescription"`
	DefaultConfig    sarifRuleDefaultConfig `json:"defaultConfiguration"`
}

type sarifRuleDefaultConfig struct {
	Level string `json:"level"`
}

type sarifResult struct {
	RuleID     string            `json:"ruleId"`
	Level      string            `json:"level"`
	Message    sarifMessage      `json:"message"`
	Locations  []sarifLocation   `json:"locations,omitempty"`
	Properties map[string]string `json:"properties,omitempty"`
}

type sarifMessage struct {
	Text string `json:"text"`
}

type sarifLocation struct {
	LogicalLocations []sarifLogicalLocation `json:"logicalLocations"`
}

type sarifLogicalLocation struct {
	FullyQualifiedName string `json:"fullyQualifiedName"`
	Kind               string `json:"kind,omitempty"`
}

// GenerateSARIF builds a SARIF v2.1.0 document with one result per change.
// Changes are located by their dotted API path since surfaces carry no
// file positions.
func GenerateSARIF(c Comparison, opts Options) ([]byte, error) {
	results := make([]sarifResult, 0, len(c.Changes))
	for _, ch := range c.Changes {
		results = append(results, sarifResult{
			RuleID:    ruleIDFor(ch.Level),
			Level:     sarifLevel(ch.Level),
			Message:   sarifMessage{Text: fmt.Sprintf("%s: %s", ch.Category, ch.Detail)},
			Locations: []sarifLocation{apiLocation(ch.Detail)},
			Properties: map[string]string{
				"category": string(ch.Category),
				"bump":     ch.Level.String(),
			},
		})
	}

	props := map[string]string{"recommendedBump": c.Level.String()}
	if c.Next != "" {
		props["nextVersion"] = c.Next
	}
	report := sarifReport{
		Schema:  sarifSchema,
		Version: sarifVersion,
		Runs: []sarifRun{
			{
				Tool: sarifTool{
					Driver: sarifDriver{
						Name:    "apisurface",
						Version: nonEmpty(opts.ToolVersion, "unknown"),
						Rules:   buildSARIFRules(c.Changes),
					},
				},
				Results:    results,
				Properties: props,
			},
		},
	}
	return json.MarshalIndent(report, "", "  ")
}

// buildSARIFRules returns only the rules that are relevant for the given changes.
func buildSARIFRules(changes []diff.Change) []sarifRule {
	var seen [model.Major + 1]bool
	for _, ch := range changes {
		if ch.Level.Valid() {
			seen[ch.Level] = true
		}
	}
	rules := make([]sarifRule, 0, 3)
	if seen[model.Major] {
		rules = append(rules, sarifRule{
			ID:               ruleIDBreaking,
			Name:             "BreakingChange",
			ShortDescription: sarifMessage{Text: "A change that can break existing callers."},
			DefaultConfig:    sarifRuleDefaultConfig{Level: "error"},
		})
	}
	if seen[model.Minor] {
		rules = append(rules, sarifRule{
			ID:               ruleIDAdditive,
			Name:             "AdditiveChange",
			ShortDescription: sarifMessage{Text: "A backwards compatible addition to the API."},
			DefaultConfig:    sarifRuleDefaultConfig{Level: "warning"},
		})
	}
	if seen[model.Patch] {
		rules = append(rules, sarifRule{
			ID:               ruleIDCompatible,
			Name:             "CompatibleChange",
			ShortDescription: sarifMessage{Text: "A change that does not affect callers."},
			DefaultConfig:    sarifRuleDefaultConfig{Level: "note"},
		})
	}
	return rules
}

func ruleIDFor(l model.Level) string {
	switch l {
	case model.Major:
		return ruleIDBreaking
	case model.Minor:
		return ruleIDAdditive
	}
	return ruleIDCompatible
}

func sarifLevel(l model.Level) string {
	switch l {
	case model.Major:
		return "error"
	case model.Minor:
		return "warning"
	}
	return "note"
}

// apiLocation locates a change detail such as pkg.fn.(arg) or pkg.Class.
func apiLocation(detail string) sarifLocation {
	kind := "member"
	if strings.HasSuffix(detail, ")") && strings.Contains(detail, ".(") {
		kind = "parameter"
	} else if !strings.Contains(detail, ".") {
		kind = "module"
	}
	return sarifLocation{
		LogicalLocations: []sarifLogicalLocation{{FullyQualifiedName: detail, Kind: kind}},
	}
}

// file: internal/schema/names.go
package schema

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/cockroachdb/errors"
)

// EntityType represents a kind of MCP entity whose name is validated at registration.
type EntityType string

const (
	// EntityTypeTool represents a tool entity in MCP.
	EntityTypeTool EntityType = "tool"

	// EntityTypeResource represents a resource entity in MCP, named by URI.
	EntityTypeResource EntityType = "resource"

	// EntityTypePrompt represents a prompt entity in MCP.
	EntityTypePrompt EntityType = "prompt"
)

// NameRule defines validation rules for an entity name.
type NameRule struct {
	// Pattern is the regex pattern the name must match.
	Pattern *regexp.Regexp

	// Description is a human-readable description of the pattern.
	Description string

	// MaxLength is the maximum allowed length of the name.
	MaxLength int

	// ExampleValid contains examples of valid names.
	ExampleValid []string

	// ExampleInvalid contains examples of invalid names with reasons.
	ExampleInvalid map[string]string
}

var nameRules = map[EntityType]NameRule{
	EntityTypeTool: {
		Pattern:      regexp.MustCompile(`^[a-zA-Z0-9_-]+$`),
		Description:  "Letters, digits, underscores and hyphens only",
		MaxLength:    64,
		ExampleValid: []string{"add_note", "read_notes", "get_profile"},
		ExampleInvalid: map[string]string{
			"add note":  "Contains space",
			"add.note":  "Contains period",
			"note/add":  "Contains slash",
			"add_note!": "Contains special character",
			"":          "Empty string",
		},
	},
	EntityTypeResource: {
		Pattern:      regexp.MustCompile(`^[a-z][a-z0-9+.-]*://\S+$`),
		Description:  "Absolute URI with a lowercase scheme and no whitespace",
		MaxLength:    2048,
		ExampleValid: []string{"notes://latest", "file:///tmp/notes.txt"},
		ExampleInvalid: map[string]string{
			"latest":          "Missing scheme",
			"Notes://latest":  "Uppercase scheme",
			"notes://my note": "Contains space",
		},
	},
	EntityTypePrompt: {
		Pattern:      regexp.MustCompile(`^[a-zA-Z0-9_-]+$`),
		Description:  "Letters, digits, underscores and hyphens only",
		MaxLength:    64,
		ExampleValid: []string{"note_summary_prompt"},
		ExampleInvalid: map[string]string{
			"note summary": "Contains space",
			"summary?":     "Contains special character",
		},
	},
}

// GetNameRule returns the validation rule for a specific entity type.
func GetNameRule(entityType EntityType) (NameRule, bool) {
	rule, ok := nameRules[entityType]
	return rule, ok
}

// ValidateName validates a name against the rules for a specific entity type.
func ValidateName(entityType EntityType, name string) error {
	rule, ok := nameRules[entityType]
	if !ok {
		return errors.Newf("unknown entity type: %s", entityType)
	}
	if len(name) == 0 {
		return errors.Newf("empty %s name is not allowed", entityType)
	}
	if len(name) > rule.MaxLength {
		return errors.Newf("%s name exceeds maximum length of %d characters", entityType, rule.MaxLength)
	}
	if !rule.Pattern.MatchString(name) {
		return errors.Newf("invalid %s name '%s': %s", entityType, name, rule.Description)
	}
	return nil
}

// GetNamePatternDescription describes the naming rules for entityType, with examples.
func GetNamePatternDescription(entityType EntityType) string {
	rule, ok := nameRules[entityType]
	if !ok {
		return fmt.Sprintf("No pattern defined for %s", entityType)
	}

	var builder strings.Builder
	fmt.Fprintf(&builder, "Rules for %s names:\n", entityType)
	fmt.Fprintf(&builder, "- %s\n", rule.Description)
	fmt.Fprintf(&builder, "- Maximum length: %d characters\n", rule.MaxLength)
	if len(rule.ExampleValid) > 0 {
		quoted := make([]string, len(rule.ExampleValid))
		for i, ex := range rule.ExampleValid {
			quoted[i] = fmt.Sprintf("%q", ex)
		}
		fmt.Fprintf(&builder, "- Valid examples: %s\n", strings.Join(quoted, ", "))
	}
	if len(rule.ExampleInvalid) > 0 {
		builder.WriteString("- Invalid examples:\n")
		invalid := make([]string, 0, len(rule.ExampleInvalid))
		for ex := range rule.ExampleInvalid {
			invalid = append(invalid, ex)
		}
		sort.Strings(invalid)
		for _, ex := range invalid {
			fmt.Fprintf(&builder, "  - %q: %s\n", ex, rule.ExampleInvalid[ex])
		}
	}
	return builder.String()
}

package discovery

import (
	"fmt"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Schema validates frontmatter of pages in a matching section subtree.
// Schemas are optional; pages without a matching schema pass untouched.
type Schema struct {
	// PathPrefix selects the pages this schema applies to, matched against
	// the page source path (slash-insensitive prefix).
	PathPrefix string
	// Required lists fields that must be present and non-empty.
	Required []string
	// Kinds constrains field types: "string", "int", "bool", "list", "map".
	Kinds map[string]string
}

// Matches reports whether the schema applies to the given source path.
func (s Schema) Matches(sourcePath string) bool {
	if s.PathPrefix == "" {
		return true
	}
	norm := strings.ReplaceAll(sourcePath, "\\", "/")
	prefix := strings.ReplaceAll(s.PathPrefix, "\\", "/")
	return strings.HasPrefix(norm, prefix)
}

// Validate checks metadata against the schema.
func (s Schema) Validate(meta map[string]any) error {
	var rules []*validation.KeyRules
	for _, field := range s.Required {
		rules = append(rules, validation.Key(field, validation.Required))
	}
	for field, kind := range s.Kinds {
		rules = append(rules, validation.Key(field, validation.By(kindRule(kind))).Optional())
	}
	if len(rules) == 0 {
		return nil
	}
	return validation.Validate(meta, validation.Map(rules...).AllowExtraKeys())
}

func kindRule(kind string) validation.RuleFunc {
	return func(value any) error {
		if value == nil {
			return nil
		}
		ok := false
		switch kind {
		case "string":
			_, ok = value.(string)
		case "int":
			switch value.(type) {
			case int, int64, float64:
				ok = true
			}
		case "bool":
			_, ok = value.(bool)
		case "list":
			_, ok = value.([]any)
		case "map":
			_, ok = value.(map[string]any)
		default:
			return fmt.Errorf("unknown schema kind %q", kind)
		}
		if !ok {
			return fmt.Errorf("must be a %s", kind)
		}
		return nil
	}
}

package formstream

import (
	"errors"
	"fmt"
	"io"
	"slices"

	"gopkg.in/yaml.v3"
)

// PartRule declares constraints for a named part in multipart/form-data or
// urlencoded bodies. A route holds an ordered list of rules; parts matching no
// rule are handled per the configured UnknownPartPolicy.
type PartRule struct {
	// Name is the part name the rule matches, as declared in the part's
	// Content-Disposition name parameter.
	Name string `yaml:"name"`

	// Required fails the parse with ErrMissingRequiredPart if no part with
	// this name appears. The failure surfaces only after the full body is
	// consumed, so stream-order errors take precedence.
	Required bool `yaml:"required"`

	// AllowMultiple admits repeated parts with this name. When false, a
	// second occurrence fails with ErrDuplicatePart.
	AllowMultiple bool `yaml:"allow_multiple"`

	// AllowedContentTypes restricts the part's declared media type. Empty
	// allows any.
	AllowedContentTypes []string `yaml:"allowed_content_types"`

	// MaxBytes caps this part's body size below the global part limit.
	// Zero means the global limit applies alone.
	MaxBytes int64 `yaml:"max_bytes"`
}

func (r *PartRule) validate() error {
	if r.Name == "" {
		return errors.New("rule name must not be empty")
	}
	if r.MaxBytes < 0 {
		return errors.New("max bytes must not be negative")
	}
	return nil
}

// allowsContentType reports whether the part's declared media type passes the
// rule. An empty allow list admits anything, including parts that declare no
// content type at all.
func (r *PartRule) allowsContentType(mediaType string) bool {
	if len(r.AllowedContentTypes) == 0 {
		return true
	}
	return slices.Contains(r.AllowedContentTypes, mediaType)
}

// LoadRules reads a YAML rule list, typically from a route's deploy config.
//
// Example document:
//
//	- name: avatar
//	  required: true
//	  allowed_content_types: [image/png, image/jpeg]
//	  max_bytes: 5242880
//	- name: tags
//	  allow_multiple: true
func LoadRules(r io.Reader) ([]PartRule, error) {
	var rules []PartRule
	if err := yaml.NewDecoder(r).Decode(&rules); err != nil {
		return nil, fmt.Errorf("decode part rules: %w", err)
	}

	seen := make(map[string]struct{}, len(rules))
	for i := range rules {
		if err := rules[i].validate(); err != nil {
			return nil, fmt.Errorf("rule %d: %w", i, err)
		}
		if _, dup := seen[rules[i].Name]; dup {
			return nil, fmt.Errorf("duplicate rule for part %q", rules[i].Name)
		}
		seen[rules[i].Name] = struct{}{}
	}

	return rules, nil
}

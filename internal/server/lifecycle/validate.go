package lifecycle

import (
	"errors"
	"slices"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/google/uuid"

	"github.com/dmitrijs2005/contentkeeper/internal/common"
	"github.com/dmitrijs2005/contentkeeper/internal/server/kinds"
	"github.com/dmitrijs2005/contentkeeper/internal/server/segments"
)

// validateID rejects identifiers that cannot name a stored document.
func validateID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return common.NewValidationError("id", "must be a valid UUID")
	}
	return nil
}

// fieldRules returns the ozzo rules for one field of a kind.
func fieldRules(f kinds.Field) []validation.Rule {
	var rules []validation.Rule
	if f.Required {
		rules = append(rules, validation.Required)
	}
	switch f.Type {
	case kinds.Text:
		if f.MaxLen > 0 {
			rules = append(rules, validation.RuneLength(0, f.MaxLen))
		}
	case kinds.Ref:
		rules = append(rules, is.UUID)
	case kinds.List:
		rules = append(rules, validation.Each(validation.RuneLength(1, 200)))
	case kinds.RefList:
		rules = append(rules, validation.Each(is.UUID))
	}
	return rules
}

// validateFields checks the submitted values against the kind. On create
// every field of the kind is checked; on update only the submitted ones.
func validateFields(kind kinds.Kind, fields map[string]any, create bool) validation.Errors {
	errs := validation.Errors{}
	for _, f := range kind.Fields {
		v, ok := fields[f.Name]
		if !ok && !create {
			continue
		}
		errs[f.Name] = validation.Validate(normalize(f.IsList(), v), fieldRules(f)...)
	}
	return errs
}

func validateSegments(kind kinds.Kind, sub Submission, create bool) error {
	if !kind.Segments || !create || kind.MinSegments == 0 {
		return nil
	}
	if segments.Terminated(sub.Segments) < kind.MinSegments {
		return errors.New("at least one segment with content is required")
	}
	return nil
}

// toValidationError flattens ozzo errors into the common field error list,
// ordered by field name.
func toValidationError(errs validation.Errors) error {
	if err := errs.Filter(); err == nil {
		return nil
	}
	keys := make([]string, 0, len(errs))
	for k, err := range errs {
		if err != nil {
			keys = append(keys, k)
		}
	}
	slices.Sort(keys)

	out := &common.ValidationError{}
	for _, k := range keys {
		out.Errors = append(out.Errors, common.FieldError{Field: k, Message: errs[k].Error()})
	}
	return out
}

func trimmed(v any) string {
	s, _ := v.(string)
	return strings.TrimSpace(s)
}

func asList(v any) []string {
	switch t := v.(type) {
	case []string:
		return t
	case string:
		if t == "" {
			return nil
		}
		return []string{t}
	}
	return nil
}

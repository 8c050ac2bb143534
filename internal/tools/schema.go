package tools

import (
	"errors"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// ValidateInput checks a decoded input document against the tool's
// compiled schema. The returned error names the offending field so the
// model gets actionable feedback.
func ValidateInput(def *Definition, input map[string]any) error {
	if def.compiled == nil {
		return nil
	}
	// jsonschema validates generic JSON values; a nil map is an empty object.
	doc := map[string]any(input)
	if doc == nil {
		doc = map[string]any{}
	}
	if err := def.compiled.Validate(doc); err != nil {
		var ve *jsonschema.ValidationError
		if errors.As(err, &ve) {
			field, msg := describeViolation(ve)
			if field != "" {
				return fmt.Errorf("invalid input for field %q: %s", field, msg)
			}
			return fmt.Errorf("invalid input: %s", msg)
		}
		return fmt.Errorf("invalid input: %w", err)
	}
	return nil
}

// describeViolation digs to the most specific cause of a validation
// error and returns the instance field it points at.
func describeViolation(ve *jsonschema.ValidationError) (field, message string) {
	cause := ve
	for len(cause.Causes) > 0 {
		cause = cause.Causes[0]
	}
	field = strings.TrimPrefix(cause.InstanceLocation, "/")
	field = strings.ReplaceAll(field, "/", ".")
	message = cause.Message

	// Required-property failures locate at the parent object; pull the
	// property name out of the message instead.
	if field == "" {
		if prop, ok := missingProperty(cause.Message); ok {
			field = prop
		}
	}
	return field, message
}

// missingProperty extracts the property name from messages of the form
// `missing properties: 'x'` or `missing property 'x'`.
func missingProperty(msg string) (string, bool) {
	if !strings.Contains(msg, "missing propert") {
		return "", false
	}
	start := strings.Index(msg, "'")
	if start < 0 {
		return "", false
	}
	rest := msg[start+1:]
	end := strings.Index(rest, "'")
	if end < 0 {
		return "", false
	}
	return rest[:end], true
}

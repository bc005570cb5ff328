package validation

import (
	"fmt"
	"strings"
)

const chatRequestSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["message"],
  "additionalProperties": false,
  "properties": {
    "message": {
      "type": "string",
      "minLength": 1,
      "maxLength": %d,
      "pattern": "\\S"
    }
  }
}`

// NewChatRequestValidator accepts {"message": "..."} with a non-blank message
// of at most maxLength characters.
func NewChatRequestValidator(maxLength int) (*Validator, error) {
	if maxLength <= 0 {
		maxLength = 2000
	}
	return NewValidator(fmt.Sprintf(chatRequestSchema, maxLength))
}

// Summary joins all messages into one line.
func (vr *ValidationResult) Summary() string {
	return strings.Join(vr.GetErrorMessages(), "; ")
}

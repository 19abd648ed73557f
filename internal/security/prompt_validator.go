package security

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode"
)

const MaxPromptLength = 2000

// ErrUnsafePrompt is returned by Check for utterances that must not reach an agent
var ErrUnsafePrompt = errors.New("unsafe prompt")

// dangerousPatterns catch prompt injection and attempts to smuggle commands
var dangerousPatterns = []*regexp.Regexp{
	// Command execution
	regexp.MustCompile(`(?i)\brm\s+-`),
	regexp.MustCompile(`(?i)\bcurl\s+`),
	regexp.MustCompile(`(?i)\bwget\s+`),
	regexp.MustCompile(`(?i)\bbash\s+-`),
	regexp.MustCompile(`(?i)\bsudo\s+`),

	// File paths
	regexp.MustCompile(`\.\.\/`),
	regexp.MustCompile(`/etc/passwd`),
	regexp.MustCompile(`/etc/shadow`),
	regexp.MustCompile(`id_rsa`),

	// Code execution
	regexp.MustCompile(`(?i)eval\s*\(`),
	regexp.MustCompile(`(?i)exec\s*\(`),
	regexp.MustCompile(`(?i)os\.system`),

	// Prompt injection
	regexp.MustCompile(`(?i)ignore\s+(all\s+)?(previous|prior|above)\s+instructions`),
	regexp.MustCompile(`(?i)disregard\s+(all\s+)?(previous|prior|above)\s+instructions`),
	regexp.MustCompile(`(?i)forget\s+(all\s+)?(previous|prior|above)\s+instructions`),
	regexp.MustCompile(`(?i)(reveal|print|show)\s+(your\s+|the\s+)?system\s+prompt`),
	regexp.MustCompile(`(?i)you\s+are\s+now\s+`),
	regexp.MustCompile(`(?i)new\s+instructions\s*:`),
	regexp.MustCompile(`(?i)\btransfer_to_\w+`),
}

// PromptValidator screens user utterances before they enter a conversation
type PromptValidator struct{}

func NewPromptValidator() *PromptValidator {
	return &PromptValidator{}
}

// ValidationResult contains validation outcome
type ValidationResult struct {
	Valid   bool
	Message string
}

// Validate checks an utterance for length, content and dangerous patterns
func (v *PromptValidator) Validate(prompt string) ValidationResult {
	if len(prompt) > MaxPromptLength {
		return ValidationResult{
			Valid:   false,
			Message: fmt.Sprintf("prompt too long: %d chars (max %d)", len(prompt), MaxPromptLength),
		}
	}

	if strings.TrimSpace(prompt) == "" {
		return ValidationResult{Valid: false, Message: "prompt cannot be empty"}
	}

	if !strings.ContainsFunc(prompt, unicode.IsLetter) {
		return ValidationResult{Valid: false, Message: "prompt must contain at least one letter"}
	}

	for _, pattern := range dangerousPatterns {
		if pattern.MatchString(prompt) {
			return ValidationResult{
				Valid:   false,
				Message: fmt.Sprintf("dangerous pattern detected: %s", pattern.String()),
			}
		}
	}

	return ValidationResult{Valid: true, Message: "ok"}
}

// Check is Validate reported as an error
func (v *PromptValidator) Check(prompt string) error {
	if r := v.Validate(prompt); !r.Valid {
		return fmt.Errorf("%w: %s", ErrUnsafePrompt, r.Message)
	}
	return nil
}

package session

// names.go - dataset name validation and collision-free allocation

import (
	"fmt"
	"strings"
	"unicode"
)

// validateIdent checks a user-supplied dataset name against the identifier
// grammar: a letter or underscore followed by letters, digits, or
// underscores.
func validateIdent(name string) error {
	if name == "" {
		return fmt.Errorf("%w: name is empty", ErrInvalidName)
	}
	for i, r := range name {
		if r == '_' || unicode.IsLetter(r) {
			continue
		}
		if i > 0 && unicode.IsDigit(r) {
			continue
		}
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}

// sanitizeIdent coerces an arbitrary string, typically a file stem, into
// the identifier grammar. Empty or fully invalid input falls back to
// "dataset".
func sanitizeIdent(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	out := b.String()
	if out == "" {
		return "dataset"
	}
	if r := rune(out[0]); r >= '0' && r <= '9' {
		out = "_" + out
	}
	return out
}

// foldName normalizes a name for collision checks. Collisions are
// case-insensitive because the storage engine folds unquoted identifiers.
func foldName(name string) string {
	return strings.ToLower(name)
}

// checkNewName validates a user-supplied name and rejects case-insensitive
// collisions with registered datasets. Must be called with s.mu held.
func (s *Session) checkNewName(name string) error {
	if err := validateIdent(name); err != nil {
		return err
	}
	if s.registry.contains(name) {
		return fmt.Errorf("%w: %q", ErrDuplicateName, name)
	}
	return nil
}

// allocateName produces a name guaranteed not to collide with any
// registered dataset: prefix_N, with N drawn from a session-wide monotonic
// counter and probed upward until free. Must be called with s.mu held, so
// two allocations can never race to the same candidate.
func (s *Session) allocateName(prefix string) string {
	prefix = sanitizeIdent(prefix)
	for {
		s.counter++
		candidate := fmt.Sprintf("%s_%d", prefix, s.counter)
		if !s.registry.contains(candidate) {
			return candidate
		}
	}
}

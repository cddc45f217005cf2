package docstore

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
)

var whereKeyPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ValidateAdd checks the shape of an Add call.
func ValidateAdd(documents []string, metadatas []Metadata, ids []string) error {
	if len(documents) != len(ids) || len(metadatas) != len(ids) {
		return fmt.Errorf("%w: got %d documents, %d metadatas, %d ids",
			ErrInvalidArgument, len(documents), len(metadatas), len(ids))
	}
	for i, id := range ids {
		if id == "" {
			return fmt.Errorf("%w: ids[%d] is empty", ErrInvalidArgument, i)
		}
	}
	return nil
}

// ValidateWhere checks that every filter key is a plain identifier.
func ValidateWhere(w Where) error {
	for k := range w {
		if !whereKeyPattern.MatchString(k) {
			return fmt.Errorf("%w: filter key %q", ErrInvalidArgument, k)
		}
	}
	return nil
}

// ValidateDelete checks that exactly one selector is set.
func ValidateDelete(req DeleteRequest) error {
	switch {
	case len(req.IDs) == 0 && len(req.Where) == 0:
		return fmt.Errorf("%w: delete requires ids or a filter", ErrInvalidArgument)
	case len(req.IDs) > 0 && len(req.Where) > 0:
		return fmt.Errorf("%w: delete accepts ids or a filter, not both", ErrInvalidArgument)
	}
	return ValidateWhere(req.Where)
}

// ValidateName checks a collection name.
func ValidateName(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w: collection name is required", ErrInvalidArgument)
	}
	return nil
}

// Terms splits text into lower-cased word terms for similarity matching.
func Terms(text string) []string {
	fields := strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	terms := make([]string, 0, len(fields))
	seen := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		f = strings.ToLower(f)
		if _, dup := seen[f]; dup {
			continue
		}
		seen[f] = struct{}{}
		terms = append(terms, f)
	}
	return terms
}

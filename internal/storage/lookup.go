package storage

import (
	"strings"
)

// Resolve maps a user-supplied name or identifier to a blob name using
// a tiered tolerant lookup:
//
//  1. exact blob name
//  2. blob name plus the .jmn suffix
//  3. case-insensitive match on either form
//  4. prefix match on the identifier portion before the separator
//
// A tier that matches more than one blob returns ErrAmbiguous rather
// than guessing; retry with the full blob name or full identifier.
func (m *Manager) Resolve(nameOrID string) (string, error) {
	if nameOrID == "" {
		return "", ErrNotFound
	}

	names, err := m.List()
	if err != nil {
		return "", err
	}

	// Two separate passes so an exact match always beats a suffixed one.
	for _, name := range names {
		if name == nameOrID {
			return name, nil
		}
	}
	for _, name := range names {
		if name == nameOrID+BlobSuffix {
			return name, nil
		}
	}

	lower := strings.ToLower(nameOrID)

	var caseMatches []string
	for _, name := range names {
		nameLower := strings.ToLower(name)
		if nameLower == lower || nameLower == lower+BlobSuffix {
			caseMatches = append(caseMatches, name)
		}
	}
	if name, err := single(caseMatches); err != nil || name != "" {
		return name, err
	}

	var idMatches []string
	for _, name := range names {
		idPart, _, ok := strings.Cut(name, separator)
		if ok && strings.HasPrefix(strings.ToLower(idPart), lower) {
			idMatches = append(idMatches, name)
		}
	}
	if name, err := single(idMatches); err != nil || name != "" {
		return name, err
	}

	return "", ErrNotFound
}

func single(matches []string) (string, error) {
	switch len(matches) {
	case 0:
		return "", nil
	case 1:
		return matches[0], nil
	default:
		return "", ErrAmbiguous
	}
}

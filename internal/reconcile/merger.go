// Package reconcile merges freshly imported reservation records into
// previously stored ones. The merge is the system's idempotence backbone:
// re-running an import must never erase human-entered corrections, but
// freshly computed numbers must always supersede stale ones.
package reconcile

import (
	"strings"

	"github.com/lettia/backoffice/internal/domain"
)

// Merge resolves existing and incoming field by field over the union of both
// records' keys, according to the field's merge class:
//
//   - financial fields: incoming when present and non-blank-string, otherwise
//     existing, defaulting to 0; provisional either way, since the calculator
//     recomputes them right after the merge;
//   - always-overwrite fields: incoming wins unconditionally, blank included,
//     because they are derived fresh on every pass;
//   - everything else: a blank side loses to a non-blank side; when both are
//     non-blank the incoming value wins as the more recent source of truth.
//
// Merge is idempotent: merging the same incoming record twice produces the
// same result as merging it once.
func Merge(existing, incoming domain.Record) domain.Record {
	merged := make(domain.Record, len(existing)+len(incoming))

	for key := range union(existing, incoming) {
		switch domain.Classify(key) {
		case domain.ClassFinancial:
			merged[key] = mergeFinancial(existing[key], incoming[key])
		case domain.ClassAlwaysOverwrite:
			if v, ok := incoming[key]; ok && v != nil {
				merged[key] = v
			} else {
				merged[key] = ""
			}
		default:
			merged[key] = mergeDefault(existing[key], incoming[key])
		}
	}

	return merged
}

func mergeFinancial(existing, incoming any) any {
	if incoming != nil && !isBlankString(incoming) {
		return incoming
	}
	if existing != nil {
		return existing
	}
	return 0.0
}

func mergeDefault(existing, incoming any) any {
	exEmpty := domain.IsBlank(existing)
	inEmpty := domain.IsBlank(incoming)

	switch {
	case exEmpty && !inEmpty:
		return incoming
	case !exEmpty && inEmpty:
		return existing
	case !exEmpty && !inEmpty:
		return incoming
	default:
		if incoming != nil {
			return incoming
		}
		return existing
	}
}

// isBlankString reports whether v is a whitespace-only string. Financial
// fields keep numeric zeros from the incoming side; only a blank string cell
// counts as missing there.
func isBlankString(v any) bool {
	s, ok := v.(string)
	if !ok {
		return false
	}
	return strings.TrimSpace(s) == ""
}

func union(a, b domain.Record) map[string]struct{} {
	keys := make(map[string]struct{}, len(a)+len(b))
	for k := range a {
		keys[k] = struct{}{}
	}
	for k := range b {
		keys[k] = struct{}{}
	}
	return keys
}

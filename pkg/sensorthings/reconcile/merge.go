package reconcile

const (
	// DefaultMergeDepth bounds property merge recursion for most entity
	// kinds. Locations carry deeper administrative property trees and get
	// a higher bound.
	DefaultMergeDepth  = 5
	LocationMergeDepth = 10
)

// MergeProperties checks that all entries in source exist in target with
// equal values, updating target where they do not. Entries are only ever
// added or overwritten, never removed. Nested maps are merged recursively
// down to maxDepth and left untouched below it. Null and empty string
// values are not introduced at keys the target lacks.
//
// Returns true if target was changed. A nil target is left alone.
func MergeProperties(target, source map[string]any, maxDepth int) bool {
	if target == nil {
		return false
	}

	changed := false

	for key, value := range source {
		existing, exists := target[key]

		if !exists {
			if value == nil || value == "" {
				continue
			}

			target[key] = value
			changed = true
			continue
		}

		if nested, ok := asPropertyMap(value); ok {
			if maxDepth <= 0 {
				continue
			}

			if existingMap, ok := asPropertyMap(existing); ok {
				if MergeProperties(existingMap, nested, maxDepth-1) {
					changed = true
				}
				continue
			}

			target[key] = value
			changed = true
			continue
		}

		if !ValuesEqual(existing, value) {
			target[key] = value
			changed = true
		}
	}

	return changed
}

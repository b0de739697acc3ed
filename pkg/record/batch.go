// SPDX-License-Identifier: MPL-2.0

package record

type (
	// Ref names a record by kind and identifier.
	Ref struct {
		Kind Kind
		ID   string
	}

	// Batch is an immutable snapshot of schema-valid records.
	// Records keep the order in which they were loaded (sorted by source path).
	Batch struct {
		Packages     []Package
		Mappings     []Mapping
		Dependencies []DependencyEdge
		Groups       []Group
		Profiles     []Profile
		Suggestions  []Suggestion

		// Excluded lists records that failed schema validation, by their best-effort identifier.
		// References to them are not reported again as missing.
		Excluded []Ref
	}
)

// Count returns the number of records of kind k in the batch.
func (b *Batch) Count(k Kind) int {
	switch k {
	case KindPackage:
		return len(b.Packages)
	case KindMapping:
		return len(b.Mappings)
	case KindDependency:
		return len(b.Dependencies)
	case KindGroup:
		return len(b.Groups)
	case KindProfile:
		return len(b.Profiles)
	case KindSuggestion:
		return len(b.Suggestions)
	default:
		return 0
	}
}

// Counts returns the number of records per kind.
func (b *Batch) Counts() map[Kind]int {
	counts := make(map[Kind]int, len(Kinds()))
	for _, k := range Kinds() {
		counts[k] = b.Count(k)
	}
	return counts
}

// Len returns the total number of records in the batch.
func (b *Batch) Len() int {
	total := 0
	for _, k := range Kinds() {
		total += b.Count(k)
	}
	return total
}

// Records returns every record in kind order.
func (b *Batch) Records() []Record {
	out := make([]Record, 0, b.Len())
	for i := range b.Packages {
		out = append(out, &b.Packages[i])
	}
	for i := range b.Mappings {
		out = append(out, &b.Mappings[i])
	}
	for i := range b.Dependencies {
		out = append(out, &b.Dependencies[i])
	}
	for i := range b.Groups {
		out = append(out, &b.Groups[i])
	}
	for i := range b.Profiles {
		out = append(out, &b.Profiles[i])
	}
	for i := range b.Suggestions {
		out = append(out, &b.Suggestions[i])
	}
	return out
}

// IsExcluded reports whether a record of kind k with identifier id was dropped by schema validation.
func (b *Batch) IsExcluded(k Kind, id string) bool {
	for _, ref := range b.Excluded {
		if ref.Kind == k && ref.ID == id {
			return true
		}
	}
	return false
}

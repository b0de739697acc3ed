// SPDX-License-Identifier: MPL-2.0

package testutil

import (
	"reflect"
	"strings"
	"testing"

	"cuelang.org/go/cue"
)

// AssertSchemaInSync fails t when the fields declared by the CUE definition
// def differ from the JSON tags of the exported fields of T. Keeping both in
// step matters because CUE decodes through the JSON names: a renamed tag
// would otherwise drop a field without any error.
func AssertSchemaInSync[T any](t testing.TB, def cue.Value) {
	t.Helper()

	typ := reflect.TypeFor[T]()
	cueFields := definitionFields(t, def)
	goFields := jsonFields(typ)

	for name := range cueFields {
		if !goFields[name] {
			t.Errorf("%s: CUE field %q has no Go field with that JSON tag", typ.Name(), name)
		}
	}
	for name := range goFields {
		if !cueFields[name] {
			t.Errorf("%s: JSON tag %q is not declared in the CUE definition", typ.Name(), name)
		}
	}
}

// definitionFields returns the regular, optional and required field names of def.
func definitionFields(t testing.TB, def cue.Value) map[string]bool {
	t.Helper()

	iter, err := def.Fields(cue.Optional(true), cue.Definitions(false))
	if err != nil {
		t.Fatalf("iterating CUE fields: %v", err)
	}
	out := make(map[string]bool)
	for iter.Next() {
		sel := iter.Selector()
		if sel.IsDefinition() || sel.LabelType().IsHidden() {
			continue
		}
		out[strings.TrimRight(sel.String(), "?!")] = true
	}
	return out
}

// jsonFields returns the JSON names of the exported, serialized fields of typ.
func jsonFields(typ reflect.Type) map[string]bool {
	out := make(map[string]bool)
	for i := range typ.NumField() {
		f := typ.Field(i)
		if !f.IsExported() {
			continue
		}
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			continue
		}
		out[name] = true
	}
	return out
}

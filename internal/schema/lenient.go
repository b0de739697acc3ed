// SPDX-License-Identifier: MPL-2.0

package schema

import (
	"reflect"
	"strings"

	"github.com/goccy/go-json"
)

// decodeLenient fills a T from data one field at a time, leaving a field at
// its zero value when its data does not fit. Structs and lists of structs are
// filled element by element so list indexes keep matching the document.
func decodeLenient[T any](data map[string]any) *T {
	var out T
	fill(reflect.ValueOf(&out).Elem(), data)
	return &out
}

func fill(dst reflect.Value, data map[string]any) {
	t := dst.Type()
	for i := range t.NumField() {
		f := t.Field(i)
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if !f.IsExported() || name == "" || name == "-" {
			continue
		}
		value, ok := data[name]
		if !ok || value == nil {
			continue
		}
		fillValue(dst.Field(i), value)
	}
}

func fillValue(dst reflect.Value, value any) {
	switch v := value.(type) {
	case map[string]any:
		if dst.Kind() == reflect.Struct {
			fill(dst, v)
			return
		}
	case []any:
		if dst.Kind() == reflect.Slice && dst.Type().Elem().Kind() == reflect.Struct {
			list := reflect.MakeSlice(dst.Type(), len(v), len(v))
			for i, item := range v {
				if m, ok := item.(map[string]any); ok {
					fill(list.Index(i), m)
				}
			}
			dst.Set(list)
			return
		}
	}

	b, err := json.Marshal(value)
	if err != nil {
		return
	}
	ptr := reflect.New(dst.Type())
	if json.Unmarshal(b, ptr.Interface()) == nil {
		dst.Set(ptr.Elem())
	}
}

// SPDX-License-Identifier: MPL-2.0

package schema

import (
	"errors"
	"strings"
	"testing"

	"github.com/heimdal-dev/pkgdb/pkg/record"
)

func TestDescribe(t *testing.T) {
	t.Parallel()

	v := newValidator(t)
	for _, k := range record.Kinds() {
		out, err := v.Describe(k)
		if err != nil {
			t.Errorf("Describe(%s) error = %v", k, err)
			continue
		}
		if strings.TrimSpace(out) == "" {
			t.Errorf("Describe(%s) is empty", k)
		}
	}

	out, err := v.Describe(record.KindPackage)
	if err != nil {
		t.Fatal(err)
	}
	for _, field := range []string{"name", "description", "category", "popularity", "platforms"} {
		if !strings.Contains(out, field) {
			t.Errorf("package schema missing %q:\n%s", field, out)
		}
	}
}

func TestDescribe_UnknownKind(t *testing.T) {
	t.Parallel()

	_, err := newValidator(t).Describe("formula")
	if !errors.Is(err, record.ErrInvalidKind) {
		t.Errorf("error = %v, want ErrInvalidKind", err)
	}
}

func TestSource(t *testing.T) {
	t.Parallel()

	src := Source()
	for _, k := range record.Kinds() {
		if !strings.Contains(src, Definition(k)+":") {
			t.Errorf("source does not define %s", Definition(k))
		}
	}
}

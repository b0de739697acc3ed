// SPDX-License-Identifier: MPL-2.0

package schema

import (
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/format"

	"github.com/heimdal-dev/pkgdb/pkg/record"
)

// Source returns the embedded CUE source of every record schema.
func Source() string {
	return string(schemaSource)
}

// Describe returns the formatted CUE definition documents of kind k are
// validated against, with referenced definitions expanded inline.
func (v *Validator) Describe(k record.Kind) (string, error) {
	if ok, errs := k.IsValid(); !ok {
		return "", errs[0]
	}
	def, err := v.schema.Definition(Definition(k))
	if err != nil {
		return "", err
	}
	node := def.Syntax(cue.Final(), cue.Docs(true), cue.Optional(true), cue.Definitions(true))
	out, err := format.Node(node, format.Simplify())
	if err != nil {
		return "", fmt.Errorf("formatting %s: %w", Definition(k), err)
	}
	return string(out), nil
}

// SPDX-License-Identifier: MPL-2.0

package loader

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/heimdal-dev/pkgdb/pkg/record"
)

var (
	// ErrEmptyDocument is returned for files without any YAML content.
	ErrEmptyDocument = errors.New("empty document")
	// ErrMultipleDocuments is returned for files holding more than one YAML document.
	ErrMultipleDocuments = errors.New("multiple documents in one file")
	// ErrNotMapping is returned when the top-level document is not a mapping.
	ErrNotMapping = errors.New("document root must be a mapping")

	yamlLinePattern = regexp.MustCompile(`line (\d+)`)
)

// maxDecodedNodes bounds the nodes one document may expand to. Aliases can
// otherwise grow a small file exponentially.
const maxDecodedNodes = 100_000

type (
	// DuplicateKeyError reports a key defined twice in one YAML mapping,
	// with the positions of both occurrences.
	DuplicateKeyError struct {
		Key       string
		FirstLine int
		FirstCol  int
		Line      int
		Col       int
	}

	// SyntaxError is a YAML decoding failure with the position it was detected at.
	SyntaxError struct {
		Line    int
		Col     int
		Message string
	}
)

func (e *DuplicateKeyError) Error() string {
	return fmt.Sprintf("duplicate key %q (first defined at %d:%d)", e.Key, e.FirstLine, e.FirstCol)
}

func (e *SyntaxError) Error() string {
	return e.Message
}

// position returns the 1-based location of a decoding error, when known.
func position(err error) (line, col int) {
	var dup *DuplicateKeyError
	if errors.As(err, &dup) {
		return dup.Line, dup.Col
	}
	var syn *SyntaxError
	if errors.As(err, &syn) {
		return syn.Line, syn.Col
	}
	return 0, 0
}

// decodeStrict decodes a single YAML document into JSON-compatible Go values,
// rejecting duplicate keys, non-scalar keys and multi-document input. The
// position of every field is recorded under its JSON-style path.
func decodeStrict(data []byte) (map[string]any, map[string]record.Position, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))

	var root yaml.Node
	if err := dec.Decode(&root); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil, ErrEmptyDocument
		}
		return nil, nil, syntaxError(err)
	}

	var extra yaml.Node
	if err := dec.Decode(&extra); err == nil {
		return nil, nil, &SyntaxError{Line: extra.Line, Col: extra.Column, Message: ErrMultipleDocuments.Error()}
	} else if !errors.Is(err, io.EOF) {
		return nil, nil, syntaxError(err)
	}

	if len(root.Content) == 0 {
		return nil, nil, ErrEmptyDocument
	}
	doc := root.Content[0]
	if doc.Kind == yaml.ScalarNode && doc.Tag == "!!null" {
		return nil, nil, ErrEmptyDocument
	}
	if doc.Kind != yaml.MappingNode {
		return nil, nil, &SyntaxError{Line: doc.Line, Col: doc.Column, Message: ErrNotMapping.Error()}
	}

	d := &nodeDecoder{
		positions: map[string]record.Position{"": {Line: doc.Line, Column: doc.Column}},
		expanding: make(map[*yaml.Node]bool),
	}
	v, err := d.value(doc, "")
	if err != nil {
		return nil, nil, err
	}
	return v.(map[string]any), d.positions, nil
}

type nodeDecoder struct {
	positions map[string]record.Position
	// expanding holds the anchors whose alias expansion is in progress.
	expanding map[*yaml.Node]bool
	nodes     int
}

func (d *nodeDecoder) mark(path string, n *yaml.Node) {
	d.positions[path] = record.Position{Line: n.Line, Column: n.Column}
}

func syntaxError(err error) error {
	line := 0
	if m := yamlLinePattern.FindStringSubmatch(err.Error()); m != nil {
		line, _ = strconv.Atoi(m[1])
	}
	return &SyntaxError{Line: line, Message: err.Error()}
}

func (d *nodeDecoder) value(n *yaml.Node, path string) (any, error) {
	if d.nodes++; d.nodes > maxDecodedNodes {
		return nil, &SyntaxError{Line: n.Line, Col: n.Column, Message: fmt.Sprintf("document expands to more than %d nodes", maxDecodedNodes)}
	}
	switch n.Kind {
	case yaml.DocumentNode:
		if len(n.Content) == 0 {
			return nil, nil
		}
		return d.value(n.Content[0], path)
	case yaml.AliasNode:
		if n.Alias == nil || d.expanding[n.Alias] {
			return nil, &SyntaxError{Line: n.Line, Col: n.Column, Message: fmt.Sprintf("alias *%s refers to itself", n.Value)}
		}
		d.expanding[n.Alias] = true
		defer delete(d.expanding, n.Alias)
		return d.value(n.Alias, path)
	case yaml.MappingNode:
		m := make(map[string]any, len(n.Content)/2)
		first := make(map[string][2]int, len(n.Content)/2)
		for i := 0; i+1 < len(n.Content); i += 2 {
			k, v := n.Content[i], n.Content[i+1]
			if k.Kind != yaml.ScalarNode {
				return nil, &SyntaxError{Line: k.Line, Col: k.Column, Message: "mapping keys must be scalars"}
			}
			key := k.Value
			if pos, dup := first[key]; dup {
				return nil, &DuplicateKeyError{Key: key, FirstLine: pos[0], FirstCol: pos[1], Line: k.Line, Col: k.Column}
			}
			first[key] = [2]int{k.Line, k.Column}
			child := key
			if path != "" {
				child = path + "." + key
			}
			d.mark(child, k)
			val, err := d.value(v, child)
			if err != nil {
				return nil, err
			}
			m[key] = val
		}
		return m, nil
	case yaml.SequenceNode:
		arr := make([]any, 0, len(n.Content))
		for i, c := range n.Content {
			child := path + "[" + strconv.Itoa(i) + "]"
			d.mark(child, c)
			v, err := d.value(c, child)
			if err != nil {
				return nil, err
			}
			arr = append(arr, v)
		}
		return arr, nil
	case yaml.ScalarNode:
		return scalarValue(n), nil
	default:
		return nil, nil
	}
}

func scalarValue(n *yaml.Node) any {
	switch n.Tag {
	case "!!null":
		return nil
	case "!!bool":
		var b bool
		if err := n.Decode(&b); err == nil {
			return b
		}
	case "!!int":
		if i, err := strconv.ParseInt(n.Value, 0, 64); err == nil {
			return i
		}
	case "!!float":
		var f float64
		if err := n.Decode(&f); err == nil {
			return f
		}
	}
	return n.Value
}

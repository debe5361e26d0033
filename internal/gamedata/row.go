package gamedata

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// rowReader extracts typed fields from one row mapping and records every
// shape problem it meets instead of stopping at the first one.
type rowReader struct {
	file string
	path string
	node *yaml.Node
	errs []error
}

func (r *rowReader) fail(field, reason string) {
	r.errs = append(r.errs, &MalformedError{File: r.file, Field: r.path + "." + field, Reason: reason})
}

func (r *rowReader) requiredString(field string) string {
	n := mappingValue(r.node, field)
	if n == nil || n.Kind != yaml.ScalarNode || n.ShortTag() != "!!str" {
		r.fail(field, "must be a non-empty string")
		return ""
	}
	v := strings.TrimSpace(n.Value)
	if v == "" {
		r.fail(field, "must be a non-empty string")
	}
	return v
}

func (r *rowReader) optionalString(field string) string {
	n := mappingValue(r.node, field)
	if n == nil || n.ShortTag() == "!!null" {
		return ""
	}
	if n.Kind != yaml.ScalarNode || n.ShortTag() != "!!str" {
		r.fail(field, "must be a string")
		return ""
	}
	return strings.TrimSpace(n.Value)
}

func (r *rowReader) optionalInt(field string) *int {
	n := mappingValue(r.node, field)
	if n == nil || n.ShortTag() == "!!null" {
		return nil
	}
	var v int
	if n.ShortTag() != "!!int" || n.Decode(&v) != nil {
		r.fail(field, "must be an int or null")
		return nil
	}
	return &v
}

func (r *rowReader) stringList(field string) []string {
	n := mappingValue(r.node, field)
	if n == nil || n.ShortTag() == "!!null" {
		return nil
	}
	if n.Kind != yaml.SequenceNode {
		r.fail(field, "must be a list of strings")
		return nil
	}
	out := make([]string, 0, len(n.Content))
	for i, c := range n.Content {
		c = resolveAlias(c)
		if c.Kind != yaml.ScalarNode || c.ShortTag() != "!!str" {
			r.fail(fmt.Sprintf("%s[%d]", field, i), "must be a string")
			continue
		}
		out = append(out, strings.TrimSpace(c.Value))
	}
	return out
}

// addresses reads the optional per-locale address mapping. Unrecognised
// locale keys are ignored; recognised ones must hold an int or null.
func (r *rowReader) addresses() AddressMap {
	n := mappingValue(r.node, "addresses")
	if n == nil || n.ShortTag() == "!!null" {
		return nil
	}
	if n.Kind != yaml.MappingNode {
		r.fail("addresses", "must be a mapping")
		return nil
	}
	out := make(AddressMap, len(Locales))
	for _, l := range Locales {
		v := mappingValue(n, string(l))
		if v == nil {
			continue
		}
		if v.ShortTag() == "!!null" {
			out[l] = nil
			continue
		}
		var addr int64
		if v.ShortTag() != "!!int" || v.Decode(&addr) != nil {
			r.fail("addresses."+string(l), "must be int or null")
			continue
		}
		out[l] = &addr
	}
	return out
}

func (r *rowReader) addValidation(err error) {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		r.errs = append(r.errs, &MalformedError{File: r.file, Field: r.path, Reason: err.Error()})
		return
	}
	for _, fe := range verrs {
		// Namespace is "ItemRow.tags[0]"; drop the struct name.
		field := fe.Field()
		if _, rest, ok := strings.Cut(fe.Namespace(), "."); ok {
			field = rest
		}
		r.fail(field, fmt.Sprintf("failed %q validation (value: %v)", fe.Tag(), fe.Value()))
	}
}

// mappingValue returns the value node stored under key in mapping m, or nil.
func mappingValue(m *yaml.Node, key string) *yaml.Node {
	if m == nil || m.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value == key {
			return resolveAlias(m.Content[i+1])
		}
	}
	return nil
}

func resolveAlias(n *yaml.Node) *yaml.Node {
	for n != nil && n.Kind == yaml.AliasNode && n.Alias != nil {
		n = n.Alias
	}
	return n
}

func kindName(n *yaml.Node) string {
	if n == nil {
		return "nothing"
	}
	switch n.Kind {
	case yaml.MappingNode:
		return "mapping"
	case yaml.SequenceNode:
		return "list"
	case yaml.ScalarNode:
		return strings.TrimPrefix(n.ShortTag(), "!!")
	case yaml.DocumentNode:
		return "empty document"
	}
	return "unknown"
}

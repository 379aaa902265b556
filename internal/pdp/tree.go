// Package pdp turns the grocery store's product detail page (PDP) layout tree into
// typed nodes and extracts promotion labels, promotion siblings and bundle options
// from it.
//
// The PDP is a deeply nested JSON document describing a rendered page. Only a few
// blocks matter here, and they are located by id prefix. Everything else in the tree
// is walked over and ignored.
package pdp

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

// maxDepth bounds recursion while decoding untrusted documents.
const maxDepth = 512

// Kind is the JSON kind of a Node.
type Kind uint8

const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
	KindArray
	KindObject
)

// Node is one value of a parsed document. Object keys keep document order so
// that depth-first searches see blocks in the order the page renders them.
type Node struct {
	Kind Kind

	str    string
	num    json.Number
	b      bool
	keys   []string
	fields map[string]*Node
	items  []*Node
}

// Document is a parsed PDP.
type Document struct {
	Root *Node
}

// Parse decodes a PDP document from r.
func Parse(r io.Reader) (*Document, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	root, err := decodeNode(dec, 0)
	if err != nil {
		return nil, fmt.Errorf("decode pdp: %w", err)
	}
	return &Document{Root: root}, nil
}

// ParseBytes decodes a PDP document from b.
func ParseBytes(b []byte) (*Document, error) {
	return Parse(bytes.NewReader(b))
}

func decodeNode(dec *json.Decoder, depth int) (*Node, error) {
	if depth > maxDepth {
		return nil, fmt.Errorf("document nested deeper than %d levels", maxDepth)
	}

	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}

	switch v := tok.(type) {
	case json.Delim:
		switch v {
		case '{':
			n := &Node{Kind: KindObject, fields: make(map[string]*Node)}
			for dec.More() {
				keyTok, err := dec.Token()
				if err != nil {
					return nil, err
				}
				key, ok := keyTok.(string)
				if !ok {
					return nil, fmt.Errorf("unexpected object key %v", keyTok)
				}
				child, err := decodeNode(dec, depth+1)
				if err != nil {
					return nil, err
				}
				if _, dup := n.fields[key]; !dup {
					n.keys = append(n.keys, key)
				}
				n.fields[key] = child
			}
			if _, err := dec.Token(); err != nil {
				return nil, err
			}
			return n, nil
		case '[':
			n := &Node{Kind: KindArray}
			for dec.More() {
				child, err := decodeNode(dec, depth+1)
				if err != nil {
					return nil, err
				}
				n.items = append(n.items, child)
			}
			if _, err := dec.Token(); err != nil {
				return nil, err
			}
			return n, nil
		}
		return nil, fmt.Errorf("unexpected delimiter %v", v)
	case string:
		return &Node{Kind: KindString, str: v}, nil
	case json.Number:
		return &Node{Kind: KindNumber, num: v}, nil
	case bool:
		return &Node{Kind: KindBool, b: v}, nil
	case nil:
		return &Node{Kind: KindNull}, nil
	}
	return nil, fmt.Errorf("unexpected token %T", tok)
}

// Get follows a path of object keys. It returns nil when any step is missing or
// is not an object. Get is safe to call on a nil node.
func (n *Node) Get(path ...string) *Node {
	cur := n
	for _, key := range path {
		if cur == nil || cur.Kind != KindObject {
			return nil
		}
		cur = cur.fields[key]
	}
	return cur
}

// Str returns the string value of a string node.
func (n *Node) Str() (string, bool) {
	if n == nil || n.Kind != KindString {
		return "", false
	}
	return n.str, true
}

// Text returns the string stored under key, or "" when absent or not a string.
func (n *Node) Text(key string) string {
	s, _ := n.Get(key).Str()
	return s
}

// Int returns the value of a number node rounded to the nearest integer.
func (n *Node) Int() (int, bool) {
	if n == nil || n.Kind != KindNumber {
		return 0, false
	}
	if i, err := n.num.Int64(); err == nil {
		return int(i), true
	}
	f, err := n.num.Float64()
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	f = math.Round(f)
	if f >= math.MaxInt64 || f < math.MinInt64 {
		return 0, false
	}
	return int(f), true
}

// ID returns the node's "id" field.
func (n *Node) ID() string {
	return n.Text("id")
}

// Items returns the elements of an array node.
func (n *Node) Items() []*Node {
	if n == nil || n.Kind != KindArray {
		return nil
	}
	return n.items
}

// children returns the direct descendants of n in document order.
func (n *Node) children() []*Node {
	if n == nil {
		return nil
	}
	switch n.Kind {
	case KindArray:
		return n.items
	case KindObject:
		out := make([]*Node, 0, len(n.keys))
		for _, k := range n.keys {
			out = append(out, n.fields[k])
		}
		return out
	}
	return nil
}

// Walk visits n and all its descendants depth-first in document order. Returning
// false from fn stops the walk.
func (n *Node) Walk(fn func(*Node) bool) bool {
	if n == nil {
		return true
	}
	if !fn(n) {
		return false
	}
	for _, c := range n.children() {
		if !c.Walk(fn) {
			return false
		}
	}
	return true
}

// Find returns the first node, in depth-first document order, matching pred.
func (n *Node) Find(pred func(*Node) bool) *Node {
	var found *Node
	n.Walk(func(c *Node) bool {
		if pred(c) {
			found = c
			return false
		}
		return true
	})
	return found
}

// FindField returns the first object-valued field named key anywhere below n.
func (n *Node) FindField(key string) *Node {
	holder := n.Find(func(c *Node) bool {
		v := c.Get(key)
		return v != nil && v.Kind == KindObject
	})
	return holder.Get(key)
}

// FindByIDPrefix returns the first object whose "id" starts with prefix.
func (n *Node) FindByIDPrefix(prefix string) *Node {
	return n.Find(func(c *Node) bool {
		id, ok := c.Get("id").Str()
		return ok && strings.HasPrefix(id, prefix)
	})
}

// parseDisplayPrice reads a display price in minor units. Numbers and bare digit
// strings ("199") are cents; strings with a euro sign or a decimal separator
// ("€ 3", "1,99", "€ 1.99") are euros.
func parseDisplayPrice(n *Node) (int, bool) {
	if i, ok := n.Int(); ok {
		return i, true
	}
	s, ok := n.Str()
	if !ok {
		return 0, false
	}
	s = strings.TrimSpace(s)
	euros := strings.HasPrefix(s, "€")
	s = strings.TrimSpace(strings.TrimPrefix(s, "€"))
	if s == "" {
		return 0, false
	}
	if !euros && !strings.ContainsAny(s, ".,") {
		i, err := strconv.Atoi(s)
		if err != nil {
			return 0, false
		}
		return i, true
	}
	f, err := strconv.ParseFloat(strings.Replace(s, ",", ".", 1), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	f = math.Round(f * 100)
	if f >= math.MaxInt64 || f < math.MinInt64 {
		return 0, false
	}
	return int(f), true
}

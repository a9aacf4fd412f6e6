// Package tree models the in-memory container object graph handed to the
// write pipeline: groups, array leaves, ragged composites, external-reference
// leaves, and small scalar attributes.
package tree

import (
	"fmt"
	"path"

	"github.com/datagrove/arraypack/pkg/core"
	"github.com/datagrove/arraypack/pkg/source"
)

// Node is one entry in the container tree.
type Node interface {
	node()
}

// Group holds named children in insertion order.
type Group struct {
	names    []string
	children map[string]Node
	attrs    map[string]any
}

// Array is an array-bearing leaf backed by a Source.
type Array struct {
	Dtype  core.Dtype
	Shape  core.Shape
	Source source.Source
}

// Ragged is a variable-length-per-row dataset: a flat values array plus a
// 1-D monotone index array marking row boundaries. Stored as two sibling
// leaves, "<name>" and "<name>_index".
type Ragged struct {
	Data  *Array
	Index *Array
}

// ExternalRef points at data kept outside the container. Never planned and
// never chunked; the path string is copied verbatim.
type ExternalRef struct {
	Target string
}

func (*Group) node()       {}
func (*Array) node()       {}
func (*Ragged) node()      {}
func (*ExternalRef) node() {}

func NewGroup() *Group {
	return &Group{children: make(map[string]Node), attrs: make(map[string]any)}
}

func (g *Group) add(name string, n Node) error {
	if name == "" {
		return fmt.Errorf("%w: empty child name", core.ErrInvalidInput)
	}
	if _, ok := g.children[name]; ok {
		return fmt.Errorf("%w: duplicate child %q", core.ErrInvalidInput, name)
	}
	g.names = append(g.names, name)
	g.children[name] = n
	return nil
}

// AddGroup creates and attaches a child group.
func (g *Group) AddGroup(name string) (*Group, error) {
	child := NewGroup()
	if err := g.add(name, child); err != nil {
		return nil, err
	}
	return child, nil
}

// AddArray attaches an array leaf backed by src.
func (g *Group) AddArray(name string, src source.Source) (*Array, error) {
	a := &Array{Dtype: src.Dtype(), Shape: src.Shape(), Source: src}
	if err := g.add(name, a); err != nil {
		return nil, err
	}
	return a, nil
}

// AddRagged attaches a ragged composite: data holds the flat values, index
// the monotone row boundaries (1-D integer).
func (g *Group) AddRagged(name string, data, index source.Source) (*Ragged, error) {
	if index.Shape().Rank() != 1 {
		return nil, fmt.Errorf("%w: ragged index must be 1-D", core.ErrInvalidInput)
	}
	r := &Ragged{
		Data:  &Array{Dtype: data.Dtype(), Shape: data.Shape(), Source: data},
		Index: &Array{Dtype: index.Dtype(), Shape: index.Shape(), Source: index},
	}
	if err := g.add(name, r); err != nil {
		return nil, err
	}
	return r, nil
}

// AddExternalRef attaches a pointer-to-external-data leaf.
func (g *Group) AddExternalRef(name, target string) error {
	return g.add(name, &ExternalRef{Target: target})
}

// SetAttr records a small scalar attribute on the group.
func (g *Group) SetAttr(name string, value any) { g.attrs[name] = value }

// Attrs returns the group's attributes.
func (g *Group) Attrs() map[string]any { return g.attrs }

// Children returns child names in insertion order.
func (g *Group) Children() []string {
	out := make([]string, len(g.names))
	copy(out, g.names)
	return out
}

// Child returns the named child, or nil.
func (g *Group) Child(name string) Node { return g.children[name] }

// WalkFunc is called once per node with its slash-delimited location.
// Returning an error stops the walk.
type WalkFunc func(loc string, n Node) error

// Walk traverses the tree depth-first in insertion order, calling fn for
// every node except the root group itself.
func Walk(root *Group, fn WalkFunc) error {
	return walkGroup("", root, fn)
}

func walkGroup(prefix string, g *Group, fn WalkFunc) error {
	for _, name := range g.names {
		loc := name
		if prefix != "" {
			loc = path.Join(prefix, name)
		}
		child := g.children[name]
		if err := fn(loc, child); err != nil {
			return err
		}
		if sub, ok := child.(*Group); ok {
			if err := walkGroup(loc, sub, fn); err != nil {
				return err
			}
		}
	}
	return nil
}

package tree

import (
	"errors"
	"reflect"
	"testing"

	"github.com/datagrove/arraypack/pkg/core"
	"github.com/datagrove/arraypack/pkg/source"
)

func mem(shape core.Shape, dtype core.Dtype) source.Source {
	return source.NewMemory(shape, dtype, make([]byte, shape.Elements()*dtype.Size()))
}

func TestWalkOrder(t *testing.T) {
	root := NewGroup()
	a, err := root.AddGroup("a")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := a.AddArray("x", mem(core.Shape{4}, core.Uint8)); err != nil {
		t.Fatal(err)
	}
	sub, err := a.AddGroup("deep")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := sub.AddArray("y", mem(core.Shape{2, 2}, core.Int32)); err != nil {
		t.Fatal(err)
	}
	if err := root.AddExternalRef("link", "/elsewhere"); err != nil {
		t.Fatal(err)
	}
	if _, err := root.AddArray("z", mem(core.Shape{8}, core.Float32)); err != nil {
		t.Fatal(err)
	}

	var visited []string
	err = Walk(root, func(loc string, n Node) error {
		visited = append(visited, loc)
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"a", "a/x", "a/deep", "a/deep/y", "link", "z"}
	if !reflect.DeepEqual(visited, want) {
		t.Errorf("walk order = %v, want %v", visited, want)
	}
}

func TestWalkStopsOnError(t *testing.T) {
	root := NewGroup()
	if _, err := root.AddArray("a", mem(core.Shape{1}, core.Uint8)); err != nil {
		t.Fatal(err)
	}
	if _, err := root.AddArray("b", mem(core.Shape{1}, core.Uint8)); err != nil {
		t.Fatal(err)
	}

	sentinel := errors.New("stop")
	var count int
	err := Walk(root, func(loc string, n Node) error {
		count++
		return sentinel
	})
	if err != sentinel {
		t.Errorf("want sentinel error, got %v", err)
	}
	if count != 1 {
		t.Errorf("walk continued after error: %d visits", count)
	}
}

func TestDuplicateAndEmptyNames(t *testing.T) {
	root := NewGroup()
	if _, err := root.AddGroup("g"); err != nil {
		t.Fatal(err)
	}
	if _, err := root.AddGroup("g"); !errors.Is(err, core.ErrInvalidInput) {
		t.Errorf("duplicate name: want ErrInvalidInput, got %v", err)
	}
	if _, err := root.AddArray("g", mem(core.Shape{1}, core.Uint8)); !errors.Is(err, core.ErrInvalidInput) {
		t.Errorf("duplicate across kinds: want ErrInvalidInput, got %v", err)
	}
	if _, err := root.AddGroup(""); !errors.Is(err, core.ErrInvalidInput) {
		t.Errorf("empty name: want ErrInvalidInput, got %v", err)
	}
}

func TestRaggedIndexMustBeOneD(t *testing.T) {
	root := NewGroup()
	_, err := root.AddRagged("r",
		mem(core.Shape{100}, core.Float64),
		mem(core.Shape{5, 2}, core.Int64),
	)
	if !errors.Is(err, core.ErrInvalidInput) {
		t.Errorf("want ErrInvalidInput, got %v", err)
	}
}

func TestAttrsAndChildren(t *testing.T) {
	root := NewGroup()
	root.SetAttr("subject", "mouse-07")
	root.SetAttr("rate_hz", 30000.0)

	if got := root.Attrs()["subject"]; got != "mouse-07" {
		t.Errorf("attr = %v", got)
	}

	if _, err := root.AddGroup("one"); err != nil {
		t.Fatal(err)
	}
	if _, err := root.AddGroup("two"); err != nil {
		t.Fatal(err)
	}
	if got := root.Children(); !reflect.DeepEqual(got, []string{"one", "two"}) {
		t.Errorf("children = %v", got)
	}
	if root.Child("one") == nil || root.Child("absent") != nil {
		t.Error("Child lookup misbehaves")
	}
}

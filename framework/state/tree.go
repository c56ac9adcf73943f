package state

import (
	"fmt"
	"strings"

	"github.com/km-arc/tracker/framework/support"
)

// Tree is the nested state mapping addressed by dot-delimited paths such as
// "user.preferences.theme".
type Tree map[string]any

// Lookup walks path through nested maps. Missing segments, or segments that
// run into a non-map value, report false. The empty path is the whole tree.
func (t Tree) Lookup(path string) (any, bool) {
	if path == "" {
		return map[string]any(t), true
	}
	var cur any = map[string]any(t)
	for _, seg := range strings.Split(path, ".") {
		m, ok := asMap(cur)
		if !ok {
			return nil, false
		}
		cur, ok = m[seg]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// Get is Lookup without the presence flag.
func (t Tree) Get(path string) any {
	v, _ := t.Lookup(path)
	return v
}

// Set stores v at path, creating intermediate maps as needed. It fails when
// an intermediate segment already holds something other than a map.
func (t Tree) Set(path string, v any) error {
	if path == "" {
		return ErrEmptyPath
	}
	segs := strings.Split(path, ".")
	cur := map[string]any(t)
	for i, seg := range segs[:len(segs)-1] {
		next, exists := cur[seg]
		if !exists || next == nil {
			child := make(map[string]any)
			cur[seg] = child
			cur = child
			continue
		}
		m, ok := asMap(next)
		if !ok {
			return fmt.Errorf("%w: [%s] holds %T", ErrNotAMap, strings.Join(segs[:i+1], "."), next)
		}
		cur = m
	}
	cur[segs[len(segs)-1]] = v
	return nil
}

// Delete removes the value at path. Missing paths are ignored.
func (t Tree) Delete(path string) {
	segs := strings.Split(path, ".")
	parent, ok := t.Lookup(strings.Join(segs[:len(segs)-1], "."))
	if !ok {
		return
	}
	if m, ok := asMap(parent); ok {
		delete(m, segs[len(segs)-1])
	}
}

// Clone deep-copies the tree.
func (t Tree) Clone() Tree {
	return Tree(support.CopyMap(t))
}

func asMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case Tree:
		return m, true
	}
	return nil, false
}

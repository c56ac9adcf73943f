package support_test

import (
	"testing"

	"github.com/km-arc/tracker/framework/support"
)

func TestDeepCopy_NestedMapsAreIndependent(t *testing.T) {
	orig := map[string]any{
		"user": map[string]any{
			"preferences": map[string]any{"theme": "light"},
		},
		"tags": []any{"a", map[string]any{"b": 1}},
	}

	cp := support.DeepCopy(orig).(map[string]any)
	cp["user"].(map[string]any)["preferences"].(map[string]any)["theme"] = "dark"
	cp["tags"].([]any)[1].(map[string]any)["b"] = 2

	theme := orig["user"].(map[string]any)["preferences"].(map[string]any)["theme"]
	if theme != "light" {
		t.Errorf("original theme mutated: got %v", theme)
	}
	if b := orig["tags"].([]any)[1].(map[string]any)["b"]; b != 1 {
		t.Errorf("original slice element mutated: got %v", b)
	}
}

func TestDeepCopy_TypedContainers(t *testing.T) {
	ints := []int{1, 2, 3}
	cp := support.DeepCopy(ints).([]int)
	cp[0] = 99
	if ints[0] != 1 {
		t.Errorf("[]int shared backing array")
	}

	counts := map[string]int{"a": 1}
	cm := support.DeepCopy(counts).(map[string]int)
	cm["a"] = 5
	if counts["a"] != 1 {
		t.Errorf("map[string]int shared")
	}
}

func TestDeepCopy_Scalars(t *testing.T) {
	tests := []struct {
		name string
		in   any
	}{
		{"nil", nil},
		{"string", "x"},
		{"int", 42},
		{"bool", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := support.DeepCopy(tt.in); got != tt.in {
				t.Errorf("got %v, want %v", got, tt.in)
			}
		})
	}
}

func TestCopyMap_NilGivesEmpty(t *testing.T) {
	if got := support.CopyMap(nil); got == nil || len(got) != 0 {
		t.Errorf("CopyMap(nil) = %#v, want empty map", got)
	}
}

func TestEqual(t *testing.T) {
	if !support.Equal([]any{1, "a"}, []any{1, "a"}) {
		t.Error("equal slices reported different")
	}
	if support.Equal(map[string]any{"a": 1}, map[string]any{"a": 2}) {
		t.Error("different maps reported equal")
	}
}

package rootset

import (
	"reflect"
	"testing"
	"unsafe"

	"github.com/cryguy/jsbridge/internal/core"
)

func TestCollectKeepsRootedCells(t *testing.T) {
	s := New(0)
	for id := uint64(1); id <= 5; id++ {
		s.Born(id)
	}

	obj := new(core.ObjectPtr)
	*obj = 1
	str := new(core.StringPtr)
	*str = 2
	val := new(core.Value)
	*val = core.ObjectValue(3)
	num := new(core.Value)
	*num = core.Int32Value(4)

	if !s.AddRoot(unsafe.Pointer(obj), KindObject, "") ||
		!s.AddRoot(unsafe.Pointer(str), KindString, "") ||
		!s.AddRoot(unsafe.Pointer(val), KindValue, "") ||
		!s.AddRoot(unsafe.Pointer(num), KindValue, "") {
		t.Fatal("AddRoot failed")
	}

	freed := s.Collect(nil)
	if want := []uint64{4, 5}; !reflect.DeepEqual(freed, want) {
		t.Errorf("freed = %v, want %v", freed, want)
	}
	for _, id := range []uint64{1, 2, 3} {
		if !s.Live(id) {
			t.Errorf("cell %d should be live", id)
		}
	}
	if s.Live(5) {
		t.Error("unrooted cell 5 survived")
	}
}

func TestCollectReadsSlotAtCollectionTime(t *testing.T) {
	s := New(0)
	s.Born(1)
	s.Born(2)

	slot := new(core.Value)
	*slot = core.ObjectValue(1)
	s.AddRoot(unsafe.Pointer(slot), KindValue, "")

	// Overwriting the slot moves the root to the new referent.
	*slot = core.ObjectValue(2)
	freed := s.Collect(nil)
	if !reflect.DeepEqual(freed, []uint64{1}) {
		t.Errorf("freed = %v, want [1]", freed)
	}
}

func TestCollectExtraMarks(t *testing.T) {
	s := New(0)
	s.Born(7)
	s.Born(8)
	freed := s.Collect([]uint64{8, 0})
	if !reflect.DeepEqual(freed, []uint64{7}) {
		t.Errorf("freed = %v, want [7]", freed)
	}
	if s.Allocs() != 0 || s.Collections() != 1 {
		t.Errorf("allocs=%d collections=%d", s.Allocs(), s.Collections())
	}
}

func TestRemoveRoot(t *testing.T) {
	s := New(0)
	slot := new(core.ScriptPtr)

	if s.RemoveRoot(unsafe.Pointer(slot)) {
		t.Error("removing an unknown root should fail")
	}
	if !s.AddRoot(unsafe.Pointer(slot), KindScript, "boot") {
		t.Fatal("AddRoot failed")
	}
	if !s.IsRooted(unsafe.Pointer(slot)) {
		t.Error("slot should be rooted")
	}
	if got := s.Names(); !reflect.DeepEqual(got, []string{"boot"}) {
		t.Errorf("Names() = %v", got)
	}
	if !s.RemoveRoot(unsafe.Pointer(slot)) {
		t.Error("RemoveRoot failed")
	}
	if s.RemoveRoot(unsafe.Pointer(slot)) {
		t.Error("second RemoveRoot should fail")
	}
}

func TestAddRootLimits(t *testing.T) {
	s := New(2)
	a, b, c := new(core.Value), new(core.Value), new(core.Value)

	tests := []struct {
		name string
		p    unsafe.Pointer
		kind Kind
		want bool
	}{
		{"nil slot", nil, KindValue, false},
		{"bad kind", unsafe.Pointer(a), Kind(0), false},
		{"first", unsafe.Pointer(a), KindValue, true},
		{"second", unsafe.Pointer(b), KindValue, true},
		{"table full", unsafe.Pointer(c), KindValue, false},
		{"re-register existing", unsafe.Pointer(a), KindValue, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := s.AddRoot(tt.p, tt.kind, ""); got != tt.want {
				t.Errorf("AddRoot = %v, want %v", got, tt.want)
			}
		})
	}
	if s.Roots() != 2 {
		t.Errorf("Roots() = %d, want 2", s.Roots())
	}
}

func TestReset(t *testing.T) {
	s := New(0)
	s.Born(1)
	s.AddRoot(unsafe.Pointer(new(core.Value)), KindValue, "")
	s.Reset()
	if s.Roots() != 0 || s.Cells() != 0 {
		t.Errorf("after Reset roots=%d cells=%d", s.Roots(), s.Cells())
	}
}

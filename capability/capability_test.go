package capability

import "testing"

type fakePlugin struct {
	desc  Descriptor
	count uint64
}

func (p fakePlugin) Descriptor() Descriptor    { return p.desc }
func (p fakePlugin) MessageCount() uint64      { return p.count }
func (p fakePlugin) OnStarting()               {}
func (p fakePlugin) OnStopping()               {}
func (p fakePlugin) NewInstance(SessionHandle, uint64) Instance { return nil }

func TestBindAssignsContiguousOffsets(t *testing.T) {
	r := NewRegistry()
	a := fakePlugin{desc: Descriptor{Name: "aaa", Version: 1}, count: 3}
	b := fakePlugin{desc: Descriptor{Name: "bbb", Version: 1}, count: 5}
	r.Register(a)
	r.Register(b)

	descs := r.Freeze()
	if len(descs) != 2 {
		t.Fatalf("expected 2 descriptors, got %d", len(descs))
	}

	bindings := r.Bind(descs)
	if len(bindings) != 2 {
		t.Fatalf("expected 2 bindings, got %d", len(bindings))
	}
	if bindings[0].Base != UserPacketBase {
		t.Fatalf("first binding base = %d, want %d", bindings[0].Base, UserPacketBase)
	}
	wantSecond := UserPacketBase + a.count
	if bindings[1].Base != wantSecond {
		t.Fatalf("second binding base = %d, want %d", bindings[1].Base, wantSecond)
	}
}

func TestRegisterAfterFreezePanics(t *testing.T) {
	r := NewRegistry()
	r.Freeze()
	defer func() {
		if recover() == nil {
			t.Fatal("expected Register after Freeze to panic")
		}
	}()
	r.Register(fakePlugin{desc: Descriptor{Name: "ccc", Version: 1}, count: 1})
}

func TestBindSkipsUnregisteredDescriptors(t *testing.T) {
	r := NewRegistry()
	known := fakePlugin{desc: Descriptor{Name: "aaa", Version: 1}, count: 2}
	r.Register(known)
	r.Freeze()

	unknown := Descriptor{Name: "zzz", Version: 9}
	bindings := r.Bind([]Descriptor{known.desc, unknown})
	if len(bindings) != 1 {
		t.Fatalf("expected 1 binding, got %d", len(bindings))
	}
}

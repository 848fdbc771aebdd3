package sndserial

import "testing"

// node is a minimal Serializable used to exercise cyclic object graphs:
// two nodes referencing each other.
type node struct {
	name string
	next *node
	read bool
}

func (n *node) ClassTag() string { return "node" }

func (n *node) SerializeFields(s *Serializer) {
	s.String("name", &n.name)
	if s.Mode == ModeWriting {
		s.ObjectRef("next", n.next)
	} else {
		if ref := s.ReadObjectRef("next"); ref != nil {
			n.next = ref.(*node)
		}
	}
}

func (n *node) Linked() bool { return n.read || n.next != nil || n.name != "" }

func TestObjectGraphCycleRoundTrip(t *testing.T) {
	a := &node{name: "a"}
	b := &node{name: "b"}
	a.next = b
	b.next = a // cycle

	w := NewWriter()
	w.ObjectRef("root", a)
	data, err := w.Close()
	if err != nil {
		t.Fatalf("Close: %v", err)
	}

	r, err := OpenEnvelope(data)
	if err != nil {
		t.Fatalf("OpenEnvelope: %v", err)
	}
	registry := map[string]Constructor{
		"node": func() Serializable { return &node{} },
	}
	if err := r.ReadObjects(registry); err != nil {
		t.Fatalf("ReadObjects: %v", err)
	}

	rootRef := r.ReadObjectRef("root")
	ra, ok := rootRef.(*node)
	if !ok {
		t.Fatalf("root is not a *node: %#v", rootRef)
	}
	if ra.name != "a" {
		t.Fatalf("root name = %q, want a", ra.name)
	}
	rb := ra.next
	if rb == nil || rb.name != "b" {
		t.Fatalf("a.next = %#v, want node b", rb)
	}
	if rb.next != ra {
		t.Fatalf("cycle did not resolve: b.next != a")
	}
	if err := r.CloseReader(); err != nil {
		t.Fatalf("CloseReader: %v", err)
	}
}

func TestReadObjectRefBeforeInstantiationPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic calling ReadObjectRef before ReadObjects")
		}
	}()
	r, err := NewReader([]byte(`{"root":0,"objects":[{"classtype":"node"}]}`))
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}
	r.ReadObjectRef("root")
}

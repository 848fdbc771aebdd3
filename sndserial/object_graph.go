package sndserial

import "fmt"

// ManagedObject is anything that can sit in the per-writer object table
// and be referenced by index.
type ManagedObject interface {
	ClassTag() string
}

// Serializable is a ManagedObject that also knows how to walk its own
// fields through a Serializer. SerializeFields is called once per object
// on write (in first-seen order, which may grow the table as it runs)
// and once per object on read, during the second pass, after every
// object has already been instantiated so back-references resolve.
type Serializable interface {
	ManagedObject
	SerializeFields(s *Serializer)
}

// Linker is an optional interface a Serializable can implement so
// CloseReader can sweep orphaned objects after a read: objects that were
// instantiated but never linked into their owning subsystem's lists.
type Linker interface {
	Linked() bool
}

// Destroyer is an optional interface for releasing an orphaned object's
// resources during the CloseReader sweep.
type Destroyer interface {
	Destroy()
}

// ObjectRef writes a reference to obj, allocating a table index the
// first time obj is seen. A nil obj serializes as an explicit null.
func (s *Serializer) ObjectRef(key string, obj ManagedObject) {
	if s.Mode != ModeWriting {
		panic("sndserial: ObjectRef called on a reader; use ReadObjectRef")
	}
	if obj == nil {
		s.attach(key, nil)
		return
	}
	ser, ok := obj.(Serializable)
	if !ok {
		panic(fmt.Sprintf("sndserial: %T is a ManagedObject but not Serializable", obj))
	}
	idx, seen := s.objIndex[obj]
	if !seen {
		idx = len(s.objectsList)
		s.objIndex[obj] = idx
		s.objectsList = append(s.objectsList, ser)
	}
	s.attach(key, idx)
}

// ReadObjectRef resolves a reference written by ObjectRef. It must only
// be called during or after ReadObjects' second pass (mObjectsRead);
// calling it earlier is a fatal programmer error, matching the
// original's assumption that reference order never precedes
// instantiation order within a single read.
func (s *Serializer) ReadObjectRef(key string) ManagedObject {
	if !s.objectsRead {
		panic("sndserial: ReadObjectRef before ReadObjects instantiation pass")
	}
	raw, ok := s.lookup(key)
	if !ok || raw == nil {
		return nil
	}
	idx, ok := asInt64(raw)
	if !ok || idx < 0 || int(idx) >= len(s.readObjects) {
		s.errorCount++
		return nil
	}
	return s.readObjects[idx]
}

// Constructor builds an empty instance of a class given its class tag,
// or reports the tag as unknown.
type Constructor func() Serializable

// EndWrite finalizes the root object by emitting the "objects" array:
// each managed object, prefixed with its class tag, in first-seen order.
// The worklist is index-based rather than range-based because
// SerializeFields may discover new objects (via ObjectRef) while it
// runs, extending objectsList mid-loop.
func (s *Serializer) EndWrite() map[string]interface{} {
	if s.Mode != ModeWriting {
		panic("sndserial: EndWrite on a reader")
	}
	var arr []interface{}
	for i := 0; i < len(s.objectsList); i++ {
		obj := s.objectsList[i]
		m := map[string]interface{}{"classtype": obj.ClassTag()}
		s.stack = append(s.stack, &frame{kind: kindObject, obj: m})
		obj.SerializeFields(s)
		s.stack = s.stack[:len(s.stack)-1]
		arr = append(arr, m)
	}
	s.root["objects"] = arr
	return s.root
}

// ReadObjects runs the two-pass object graph load: first it instantiates
// every object in the root "objects" array by class tag (recording
// allocation failures without aborting) and sets the objects-read flag;
// then it walks each instantiated object's fields, so self- and
// back-references resolve via ReadObjectRef.
func (s *Serializer) ReadObjects(registry map[string]Constructor) error {
	if s.Mode != ModeReading {
		panic("sndserial: ReadObjects on a writer")
	}
	s.readObjects = make([]ManagedObject, len(s.readObjectRaw))
	built := make([]Serializable, len(s.readObjectRaw))
	for i, raw := range s.readObjectRaw {
		m, ok := raw.(map[string]interface{})
		if !ok {
			s.readFailures = append(s.readFailures, fmt.Errorf("sndserial: object %d is not a map", i))
			continue
		}
		tag, _ := m["classtype"].(string)
		ctor, ok := registry[tag]
		if !ok {
			s.readFailures = append(s.readFailures, fmt.Errorf("sndserial: unknown class %q at object %d", tag, i))
			continue
		}
		obj := ctor()
		built[i] = obj
		s.readObjects[i] = obj
	}
	s.objectsRead = true

	for i, obj := range built {
		if obj == nil {
			continue
		}
		m := s.readObjectRaw[i].(map[string]interface{})
		s.stack = append(s.stack, &frame{kind: kindObject, robj: m})
		obj.SerializeFields(s)
		s.stack = s.stack[:len(s.stack)-1]
	}
	if len(s.readFailures) > 0 {
		return fmt.Errorf("sndserial: %d object(s) failed to instantiate: %v", len(s.readFailures), s.readFailures[0])
	}
	return nil
}

// ReadFailures returns every per-object instantiation failure recorded
// by ReadObjects.
func (s *Serializer) ReadFailures() []error { return s.readFailures }

// SweepOrphans destroys every read object that is a Linker reporting
// false (created but never linked back into its owning subsystem's
// lists), per the Close contract in §4.5.
func (s *Serializer) SweepOrphans() {
	for _, obj := range s.readObjects {
		if obj == nil {
			continue
		}
		if l, ok := obj.(Linker); ok && !l.Linked() {
			if d, ok := obj.(Destroyer); ok {
				d.Destroy()
			}
		}
	}
}

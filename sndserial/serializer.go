// Package sndserial implements a tagged key/value tree serializer: a
// single writer/reader that walks nested objects and arrays, elides
// fields equal to a caller-supplied default, and encodes an object graph
// by index so cyclic references round-trip. The wire format is JSON
// (via goccy/go-json, a drop-in for encoding/json) wrapped in a small
// compressed envelope.
//
// A Serializer is either writing (append-only) or reading (a DOM already
// parsed). The zero value is not usable; construct with NewWriter or
// NewReader.
package sndserial

import (
	"errors"
	"fmt"

	gojson "github.com/goccy/go-json"
)

// Mode selects whether a Serializer is building a tree or walking one
// already parsed from the wire.
type Mode int

const (
	ModeWriting Mode = iota
	ModeReading
)

type containerKind int

const (
	kindObject containerKind = iota
	kindArray
)

// frame is one level of the traversal stack.
type frame struct {
	kind containerKind

	// writing
	obj map[string]interface{}
	arr []interface{}

	// reading
	robj  map[string]interface{}
	rarr  []interface{}
	index int // next array element to consult on read
}

// Serializer is a tagged tree writer or reader. It is not safe for
// concurrent use; the engine owns one per save/load operation.
type Serializer struct {
	Mode Mode

	root  map[string]interface{} // writing: the root object under construction
	stack []*frame

	// object graph (see object_graph.go)
	objIndex    map[ManagedObject]int
	objectsList []Serializable

	readDOM       map[string]interface{}
	readObjectRaw []interface{}
	readObjects   []ManagedObject
	readFailures  []error
	objectsRead   bool

	errorCount int
	warnings   []string
}

// NewWriter starts a fresh write with an empty root object on the stack.
func NewWriter() *Serializer {
	root := map[string]interface{}{}
	return &Serializer{
		Mode:     ModeWriting,
		root:     root,
		stack:    []*frame{{kind: kindObject, obj: root}},
		objIndex: map[ManagedObject]int{},
	}
}

// NewReader parses raw (already decompressed) JSON bytes and positions
// the traversal stack at the root object.
func NewReader(raw []byte) (*Serializer, error) {
	var root map[string]interface{}
	if err := gojson.Unmarshal(raw, &root); err != nil {
		return nil, fmt.Errorf("sndserial: parse root: %w", err)
	}
	s := &Serializer{
		Mode:    ModeReading,
		readDOM: root,
		stack:   []*frame{{kind: kindObject, robj: root}},
	}
	if arr, ok := root["objects"].([]interface{}); ok {
		s.readObjectRaw = arr
	}
	return s, nil
}

// ErrorCount returns how many recoverable type-mismatch errors were seen
// while reading. CloseReader refuses to finish a read with a nonzero
// count.
func (s *Serializer) ErrorCount() int { return s.errorCount }

// Warnings returns non-fatal messages accumulated while reading (e.g.
// unresolved state references).
func (s *Serializer) Warnings() []string { return s.warnings }

func (s *Serializer) warn(format string, args ...interface{}) {
	s.warnings = append(s.warnings, fmt.Sprintf(format, args...))
}

func (s *Serializer) top() *frame {
	return s.stack[len(s.stack)-1]
}

// attach stores val under key in the current writing container. For an
// array container, key is ignored and val is appended.
func (s *Serializer) attach(key string, val interface{}) {
	top := s.top()
	switch top.kind {
	case kindObject:
		top.obj[key] = val
	case kindArray:
		top.arr = append(top.arr, val)
	}
}

// lookup resolves key (or the next array slot) in the current reading
// container. ok is false if no value is present at all; mismatch callers
// should check the type themselves.
func (s *Serializer) lookup(key string) (interface{}, bool) {
	top := s.top()
	switch top.kind {
	case kindObject:
		v, ok := top.robj[key]
		return v, ok
	case kindArray:
		if top.index >= len(top.rarr) {
			return nil, false
		}
		v := top.rarr[top.index]
		top.index++
		return v, true
	}
	return nil, false
}

// BeginObject opens a nested object. On write, key names the field in the
// parent object (ignored inside an array). On read, it descends into the
// existing object at key (or the next array slot); a type mismatch is a
// recorded error and leaves the stack unchanged so callers can bail out.
func (s *Serializer) BeginObject(key string) error {
	if s.Mode == ModeWriting {
		m := map[string]interface{}{}
		s.attach(key, m)
		s.stack = append(s.stack, &frame{kind: kindObject, obj: m})
		return nil
	}
	v, ok := s.lookup(key)
	if !ok {
		return fmt.Errorf("sndserial: missing object %q", key)
	}
	m, ok := v.(map[string]interface{})
	if !ok {
		s.errorCount++
		return fmt.Errorf("sndserial: field %q is not an object", key)
	}
	s.stack = append(s.stack, &frame{kind: kindObject, robj: m})
	return nil
}

// EndObject pops the traversal stack. key is not compared with the key
// passed to BeginObject. Calling it with no open object, or while the
// innermost open container is an array, is a programmer error and
// panics, matching the "config/programmer error" class in the error
// handling design (§7): it can only happen from a coding mistake, never
// from untrusted input.
func (s *Serializer) EndObject(key string) {
	if len(s.stack) <= 1 {
		panic("sndserial: EndObject without matching BeginObject")
	}
	top := s.top()
	if top.kind != kindObject {
		panic("sndserial: EndObject on a non-object frame")
	}
	if s.Mode == ModeWriting && top.obj != nil {
		// On write, flush the frame back into its parent by key is
		// already done eagerly in BeginObject (maps are references),
		// so there's nothing further to do here.
	}
	s.stack = s.stack[:len(s.stack)-1]
}

// BeginArray opens a nested array, mirroring BeginObject. On write, the
// array is attached to its parent by EndArray once every element has
// been appended (slices, unlike maps, are not reference-stable across
// append calls).
func (s *Serializer) BeginArray(key string) error {
	if s.Mode == ModeWriting {
		s.stack = append(s.stack, &frame{kind: kindArray})
		return nil
	}
	v, ok := s.lookup(key)
	if !ok {
		return fmt.Errorf("sndserial: missing array %q", key)
	}
	a, ok := v.([]interface{})
	if !ok {
		s.errorCount++
		return fmt.Errorf("sndserial: field %q is not an array", key)
	}
	s.stack = append(s.stack, &frame{kind: kindArray, rarr: a})
	return nil
}

// EndArray pops the traversal stack, writing back the accumulated
// elements into the parent container.
func (s *Serializer) EndArray(key string) {
	if len(s.stack) <= 1 {
		panic("sndserial: EndArray without matching BeginArray")
	}
	top := s.top()
	if top.kind != kindArray {
		panic("sndserial: EndArray on a non-array frame")
	}
	if s.Mode == ModeWriting {
		s.stack = s.stack[:len(s.stack)-1]
		s.attach(key, top.arr)
		return
	}
	s.stack = s.stack[:len(s.stack)-1]
}

// Root returns the fully-built root object once writing is done. Most
// callers should use Close instead, which also applies compression.
func (s *Serializer) Root() map[string]interface{} {
	return s.root
}

var errAbortedLoad = errors.New("sndserial: load aborted, recoverable errors present")

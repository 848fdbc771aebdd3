package sndserial

import "fmt"

// NameTable resolves the negative-name convention used by script numbers
// and special arguments: values < 0 are a negated index into a name
// table rather than a literal integer.
type NameTable interface {
	NameToIndex(name string) (int32, bool)
	IndexToName(index int32) string
}

// ScriptNumber reads or writes a value that is an int when >= 0 and a
// string name when < 0 (the string is a negated name-id). Five-arg
// specials use the same convention on their first argument.
func (s *Serializer) ScriptNumber(key string, v *int32, names NameTable) {
	if s.Mode == ModeWriting {
		if *v < 0 {
			s.attach(key, names.IndexToName(-*v))
		} else {
			s.attach(key, int64(*v))
		}
		return
	}
	raw, ok := s.lookup(key)
	if !ok {
		return
	}
	switch t := raw.(type) {
	case string:
		idx, ok := names.NameToIndex(t)
		if !ok {
			s.errorCount++
			return
		}
		*v = -idx
	case float64:
		*v = int32(t)
	default:
		s.errorCount++
	}
}

// TextureRef is a lightweight stand-in for a texture id: a logical name
// plus a use-type discriminator (wall, flat, sprite, ...).
type TextureRef struct {
	Name    string
	UseType int32
	Null    bool // explicit null texture, distinct from "field absent"
}

// TextureID writes the literal 0 for an explicit null texture and
// [name, use_type] otherwise; it never omits the field. On read, a
// missing field or a JSON null yields the zero TextureRef.
func (s *Serializer) TextureID(key string, v *TextureRef) {
	if s.Mode == ModeWriting {
		if v.Null {
			s.attach(key, 0)
			return
		}
		s.attach(key, []interface{}{v.Name, int64(v.UseType)})
		return
	}
	raw, ok := s.lookup(key)
	if !ok || raw == nil {
		*v = TextureRef{}
		return
	}
	if n, ok := raw.(float64); ok && n == 0 {
		*v = TextureRef{Null: true}
		return
	}
	arr, ok := raw.([]interface{})
	if !ok || len(arr) != 2 {
		s.errorCount++
		return
	}
	name, ok1 := arr[0].(string)
	use, ok2 := arr[1].(float64)
	if !ok1 || !ok2 {
		s.errorCount++
		return
	}
	*v = TextureRef{Name: name, UseType: int32(use)}
}

// StateOwnerLookup resolves a [owner_class_name, state_index] pair back
// to a live state reference for the caller's type system.
type StateOwnerLookup interface {
	HasClass(name string) bool
	StateCount(name string) int
}

// StateRef serializes as [owner_class_name, state_index] or null. An
// unknown class or an out-of-range index on read is a warning, not an
// error (it does not increment ErrorCount), and yields a null state:
// save compatibility across content updates is expected to lose some
// in-flight animation state, not fail the whole load.
type StateRef struct {
	OwnerClass string
	Index      int32
	Valid      bool
}

func (s *Serializer) StateRef(key string, v *StateRef, lookup StateOwnerLookup) {
	if s.Mode == ModeWriting {
		if !v.Valid {
			s.attach(key, nil)
			return
		}
		s.attach(key, []interface{}{v.OwnerClass, int64(v.Index)})
		return
	}
	raw, ok := s.lookup(key)
	if !ok || raw == nil {
		*v = StateRef{}
		return
	}
	arr, ok := raw.([]interface{})
	if !ok || len(arr) != 2 {
		s.warn("sndserial: malformed state ref at %q", key)
		*v = StateRef{}
		return
	}
	owner, ok1 := arr[0].(string)
	idx, ok2 := arr[1].(float64)
	if !ok1 || !ok2 {
		s.warn("sndserial: malformed state ref at %q", key)
		*v = StateRef{}
		return
	}
	if !lookup.HasClass(owner) {
		s.warn("sndserial: unknown state owner class %q", owner)
		*v = StateRef{}
		return
	}
	if int(idx) < 0 || int(idx) >= lookup.StateCount(owner) {
		s.warn(fmt.Sprintf("sndserial: state index %d out of range for %q", int(idx), owner))
		*v = StateRef{}
		return
	}
	*v = StateRef{OwnerClass: owner, Index: int32(idx), Valid: true}
}

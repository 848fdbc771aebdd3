package sndserial

// Each scalar method takes an optional default: when writing and the
// current container is an object (not an array) and *v equals the lone
// default argument, the field is elided entirely. Arrays have no keys to
// elide by, so every element is always emitted. Reading a missing key
// sets *v to the default when one is given (restoring an elided field)
// and otherwise leaves *v untouched; a type mismatch records a
// recoverable error and leaves *v untouched.

func elide(top *frame, equal bool) bool {
	return top.kind == kindObject && equal
}

func readDefault[T any](v *T, def []T) {
	if len(def) == 1 {
		*v = def[0]
	}
}

// Bool reads or writes a boolean field.
func (s *Serializer) Bool(key string, v *bool, def ...bool) {
	if s.Mode == ModeWriting {
		if len(def) == 1 && elide(s.top(), *v == def[0]) {
			return
		}
		s.attach(key, *v)
		return
	}
	raw, ok := s.lookup(key)
	if !ok {
		readDefault(v, def)
		return
	}
	b, ok := raw.(bool)
	if !ok {
		s.errorCount++
		return
	}
	*v = b
}

// Int64 reads or writes a signed integer field. Narrower integer widths
// are handled by Int8/Int16/Int32, which widen on write and narrow back
// on read.
func (s *Serializer) Int64(key string, v *int64, def ...int64) {
	if s.Mode == ModeWriting {
		if len(def) == 1 && elide(s.top(), *v == def[0]) {
			return
		}
		s.attach(key, *v)
		return
	}
	raw, ok := s.lookup(key)
	if !ok {
		readDefault(v, def)
		return
	}
	n, ok := asInt64(raw)
	if !ok {
		s.errorCount++
		return
	}
	*v = n
}

func (s *Serializer) Int32(key string, v *int32, def ...int32) {
	w := int64(*v)
	var d []int64
	if len(def) == 1 {
		d = []int64{int64(def[0])}
	}
	s.Int64(key, &w, d...)
	*v = int32(w)
}

func (s *Serializer) Int16(key string, v *int16, def ...int16) {
	w := int64(*v)
	var d []int64
	if len(def) == 1 {
		d = []int64{int64(def[0])}
	}
	s.Int64(key, &w, d...)
	*v = int16(w)
}

func (s *Serializer) Int8(key string, v *int8, def ...int8) {
	w := int64(*v)
	var d []int64
	if len(def) == 1 {
		d = []int64{int64(def[0])}
	}
	s.Int64(key, &w, d...)
	*v = int8(w)
}

func (s *Serializer) Int(key string, v *int, def ...int) {
	w := int64(*v)
	var d []int64
	if len(def) == 1 {
		d = []int64{int64(def[0])}
	}
	s.Int64(key, &w, d...)
	*v = int(w)
}

// Uint64 reads or writes an unsigned integer field.
func (s *Serializer) Uint64(key string, v *uint64, def ...uint64) {
	if s.Mode == ModeWriting {
		if len(def) == 1 && elide(s.top(), *v == def[0]) {
			return
		}
		s.attach(key, *v)
		return
	}
	raw, ok := s.lookup(key)
	if !ok {
		readDefault(v, def)
		return
	}
	n, ok := asUint64(raw)
	if !ok {
		s.errorCount++
		return
	}
	*v = n
}

func (s *Serializer) Uint32(key string, v *uint32, def ...uint32) {
	w := uint64(*v)
	var d []uint64
	if len(def) == 1 {
		d = []uint64{uint64(def[0])}
	}
	s.Uint64(key, &w, d...)
	*v = uint32(w)
}

func (s *Serializer) Uint16(key string, v *uint16, def ...uint16) {
	w := uint64(*v)
	var d []uint64
	if len(def) == 1 {
		d = []uint64{uint64(def[0])}
	}
	s.Uint64(key, &w, d...)
	*v = uint16(w)
}

func (s *Serializer) Uint8(key string, v *uint8, def ...uint8) {
	w := uint64(*v)
	var d []uint64
	if len(def) == 1 {
		d = []uint64{uint64(def[0])}
	}
	s.Uint64(key, &w, d...)
	*v = uint8(w)
}

// Float64 reads or writes a double field. Floats round-trip through JSON
// with full precision; Float32 widens to float64 on write and narrows
// back on read.
func (s *Serializer) Float64(key string, v *float64, def ...float64) {
	if s.Mode == ModeWriting {
		if len(def) == 1 && elide(s.top(), *v == def[0]) {
			return
		}
		s.attach(key, *v)
		return
	}
	raw, ok := s.lookup(key)
	if !ok {
		readDefault(v, def)
		return
	}
	f, ok := raw.(float64)
	if !ok {
		s.errorCount++
		return
	}
	*v = f
}

func (s *Serializer) Float32(key string, v *float32, def ...float32) {
	w := float64(*v)
	var d []float64
	if len(def) == 1 {
		d = []float64{float64(def[0])}
	}
	s.Float64(key, &w, d...)
	*v = float32(w)
}

// String reads or writes a string field, passing it through the
// reversible ASCII-safe escape (see string_encode.go) in both
// directions.
func (s *Serializer) String(key string, v *string, def ...string) {
	if s.Mode == ModeWriting {
		if len(def) == 1 && elide(s.top(), *v == def[0]) {
			return
		}
		s.attach(key, EncodeString(*v))
		return
	}
	raw, ok := s.lookup(key)
	if !ok {
		readDefault(v, def)
		return
	}
	str, ok := raw.(string)
	if !ok {
		s.errorCount++
		return
	}
	*v = DecodeString(str)
}

// AddString writes a string already known to be valid UTF-8, bypassing
// the escape pipeline.
func (s *Serializer) AddString(key string, v *string, def ...string) {
	if s.Mode == ModeWriting {
		if len(def) == 1 && elide(s.top(), *v == def[0]) {
			return
		}
		s.attach(key, *v)
		return
	}
	raw, ok := s.lookup(key)
	if !ok {
		readDefault(v, def)
		return
	}
	str, ok := raw.(string)
	if !ok {
		s.errorCount++
		return
	}
	*v = str
}

func asInt64(raw interface{}) (int64, bool) {
	switch n := raw.(type) {
	case float64:
		return int64(n), true
	case int64:
		return n, true
	case int:
		return int64(n), true
	}
	return 0, false
}

func asUint64(raw interface{}) (uint64, bool) {
	switch n := raw.(type) {
	case float64:
		if n < 0 {
			return 0, false
		}
		return uint64(n), true
	case uint64:
		return n, true
	case int:
		if n < 0 {
			return 0, false
		}
		return uint64(n), true
	}
	return 0, false
}

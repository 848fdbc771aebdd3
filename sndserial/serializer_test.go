package sndserial

import "testing"

func TestScalarRoundTripAndDefaultElision(t *testing.T) {
	w := NewWriter()
	flag := true
	vol := 0.75
	name := "siren"
	count := int32(3)

	w.Bool("flag", &flag, true) // equal to default, elided
	w.Float64("volume", &vol, 1.0)
	w.String("name", &name)
	w.Int32("count", &count, 0)

	root := w.EndWrite()
	if _, present := root["flag"]; present {
		t.Fatalf("expected flag to be elided, found in output: %v", root)
	}
	if _, present := root["volume"]; !present {
		t.Fatalf("expected volume to be present")
	}

	payload, err := marshalJSON(root)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	r, err := NewReader(payload)
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}
	var (
		rFlag  = false
		rVol   = 0.0
		rName  string
		rCount int32
	)
	r.Bool("flag", &rFlag, true)
	r.Float64("volume", &rVol, 1.0)
	r.String("name", &rName)
	r.Int32("count", &rCount, 0)

	if !rFlag {
		t.Errorf("expected flag to restore to default true, got false")
	}
	if rVol != 0.75 {
		t.Errorf("volume = %v, want 0.75", rVol)
	}
	if rName != "siren" {
		t.Errorf("name = %q, want siren", rName)
	}
	if rCount != 3 {
		t.Errorf("count = %d, want 3", rCount)
	}
	if r.ErrorCount() != 0 {
		t.Errorf("unexpected errors: %d", r.ErrorCount())
	}
}

func TestScalarTypeMismatchRecordsError(t *testing.T) {
	w := NewWriter()
	s := "not a number"
	w.String("x", &s)
	root := w.EndWrite()
	payload, _ := marshalJSON(root)

	r, err := NewReader(payload)
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}
	var n int64 = 42
	r.Int64("x", &n)
	if n != 42 {
		t.Errorf("expected destination unchanged on mismatch, got %d", n)
	}
	if r.ErrorCount() != 1 {
		t.Errorf("expected 1 recorded error, got %d", r.ErrorCount())
	}
}

func TestMissingFieldLeavesDestinationUnchanged(t *testing.T) {
	w := NewWriter()
	root := w.EndWrite()
	payload, _ := marshalJSON(root)

	r, _ := NewReader(payload)
	n := int64(99)
	r.Int64("absent", &n)
	if n != 99 {
		t.Errorf("expected 99 unchanged, got %d", n)
	}
	if r.ErrorCount() != 0 {
		t.Errorf("missing field should not count as an error")
	}
}

func TestNestedObjectAndArray(t *testing.T) {
	w := NewWriter()
	w.BeginObject("pos")
	x, y, z := 1.5, -2.0, 3.25
	w.Float64("x", &x)
	w.Float64("y", &y)
	w.Float64("z", &z)
	w.EndObject("pos")

	w.BeginArray("tags")
	for _, tag := range []string{"a", "b", "c"} {
		t2 := tag
		w.String("", &t2)
	}
	w.EndArray("tags")

	root := w.EndWrite()
	payload, _ := marshalJSON(root)

	r, err := NewReader(payload)
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}
	if err := r.BeginObject("pos"); err != nil {
		t.Fatalf("BeginObject(pos): %v", err)
	}
	var rx, ry, rz float64
	r.Float64("x", &rx)
	r.Float64("y", &ry)
	r.Float64("z", &rz)
	r.EndObject("pos")
	if rx != 1.5 || ry != -2.0 || rz != 3.25 {
		t.Errorf("pos = (%v,%v,%v), want (1.5,-2,3.25)", rx, ry, rz)
	}

	if err := r.BeginArray("tags"); err != nil {
		t.Fatalf("BeginArray(tags): %v", err)
	}
	var got []string
	for i := 0; i < 3; i++ {
		var tag string
		r.String("", &tag)
		got = append(got, tag)
	}
	r.EndArray("tags")
	want := []string{"a", "b", "c"}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("tags[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestEnvelopeRoundTrip(t *testing.T) {
	w := NewWriter()
	name := "door_open"
	vol := 0.9
	w.String("sound", &name)
	w.Float64("volume", &vol)

	data, err := w.Close()
	if err != nil {
		t.Fatalf("Close: %v", err)
	}

	r, err := OpenEnvelope(data)
	if err != nil {
		t.Fatalf("OpenEnvelope: %v", err)
	}
	var rName string
	var rVol float64
	r.String("sound", &rName)
	r.Float64("volume", &rVol)
	if rName != "door_open" || rVol != 0.9 {
		t.Errorf("got (%q, %v), want (door_open, 0.9)", rName, rVol)
	}
	if err := r.CloseReader(); err != nil {
		t.Fatalf("CloseReader: %v", err)
	}
}

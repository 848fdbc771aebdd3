package sndserial

import (
	"bytes"
	"fmt"
	"hash/crc32"
	"io"

	"github.com/klauspost/compress/flate"

	gojson "github.com/goccy/go-json"
)

// Envelope is the on-disk savegame wrapper: a small header describing
// the (possibly compressed) payload, plus a CRC32 of the uncompressed
// form so a corrupt save is caught before the JSON parser ever sees it.
type Envelope struct {
	Size           uint32 `json:"size"`
	CompressedSize uint32 `json:"compressed_size"`
	ZipFlags       uint32 `json:"zip_flags"`
	CRC32          uint32 `json:"crc32"`
	Method         string `json:"method"` // "stored" or "deflate"
	Buffer         []byte `json:"buffer"`
}

const (
	methodStored  = "stored"
	methodDeflate = "deflate"
)

func marshalJSON(v interface{}) ([]byte, error) {
	return gojson.Marshal(v)
}

// Close finalizes a write: it emits the object graph, marshals the root
// to JSON, and wraps it in a compressed Envelope. Compression uses raw
// DEFLATE (no zlib/gzip header, i.e. window -15) at level 9; a
// compression failure falls back to storing the payload uncompressed
// rather than failing the save.
func (s *Serializer) Close() ([]byte, error) {
	root := s.EndWrite()
	raw, err := gojson.Marshal(root)
	if err != nil {
		return nil, fmt.Errorf("sndserial: marshal root: %w", err)
	}
	env := compress(raw)
	out, err := gojson.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("sndserial: marshal envelope: %w", err)
	}
	return out, nil
}

// CloseReader finishes a read: it sweeps orphaned objects and, if any
// recoverable field errors were recorded, aborts the load per §7
// ("Close with counter > 0 aborts the load").
func (s *Serializer) CloseReader() error {
	s.SweepOrphans()
	if s.errorCount > 0 {
		return fmt.Errorf("%w: %d field error(s)", errAbortedLoad, s.errorCount)
	}
	return nil
}

// OpenEnvelope decompresses raw envelope bytes (as produced by Close)
// and returns a Serializer ready to navigate the payload's root object.
func OpenEnvelope(data []byte) (*Serializer, error) {
	var env Envelope
	if err := gojson.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("sndserial: parse envelope: %w", err)
	}
	payload, err := decompress(env)
	if err != nil {
		return nil, err
	}
	return NewReader(payload)
}

func compress(raw []byte) Envelope {
	env := Envelope{
		Size:     uint32(len(raw)),
		CRC32:    crc32.ChecksumIEEE(raw),
		ZipFlags: 0,
	}
	var buf bytes.Buffer
	w, err := flate.NewWriter(&buf, 9)
	if err == nil {
		if _, werr := w.Write(raw); werr == nil {
			if cerr := w.Close(); cerr == nil {
				env.Method = methodDeflate
				env.Buffer = buf.Bytes()
				env.CompressedSize = uint32(len(env.Buffer))
				return env
			}
		}
	}
	env.Method = methodStored
	env.Buffer = raw
	env.CompressedSize = uint32(len(raw))
	return env
}

func decompress(env Envelope) ([]byte, error) {
	switch env.Method {
	case methodDeflate:
		r := flate.NewReader(bytes.NewReader(env.Buffer))
		defer r.Close()
		out, err := io.ReadAll(r)
		if err != nil {
			return nil, fmt.Errorf("sndserial: inflate: %w", err)
		}
		if crc32.ChecksumIEEE(out) != env.CRC32 {
			return nil, fmt.Errorf("sndserial: crc32 mismatch")
		}
		return out, nil
	case methodStored, "":
		if crc32.ChecksumIEEE(env.Buffer) != env.CRC32 {
			return nil, fmt.Errorf("sndserial: crc32 mismatch")
		}
		return env.Buffer, nil
	default:
		return nil, fmt.Errorf("sndserial: unknown compression method %q", env.Method)
	}
}

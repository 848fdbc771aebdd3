package soundengine

import (
	"fmt"

	"github.com/maxtraxv3/soundengine/sndbackend"
)

// fakeVoice is the test double's VoiceHandle: just enough state to drive
// GetPosition/GetSampleLength deterministically.
type fakeVoice struct {
	samples int
	length  int
	stopped bool
}

// fakeHandle is the test double's SoundHandle.
type fakeHandle struct{ null bool }

func (h *fakeHandle) IsNull() bool { return h.null }

// fakeDriver is a minimal, deterministic sndbackend.Driver: every
// StartSound/StartSound3D call succeeds unless refuse is set, and every
// decode call succeeds unless failDecode is set.
type fakeDriver struct {
	refuse           bool
	failDecode       bool
	started          []*fakeVoice
	stopped          []*fakeVoice
	volumeSets       []float32
	pitchSets        []int
	started3DVolumes []float32
}

func (d *fakeDriver) StartSound(handle sndbackend.SoundHandle, volume float32, pitch int, flags sndbackend.StartFlags, channel *sndbackend.VoiceHandle) sndbackend.VoiceHandle {
	if d.refuse {
		return nil
	}
	v := &fakeVoice{length: 1000}
	d.started = append(d.started, v)
	return v
}

func (d *fakeDriver) StartSound3D(handle3d sndbackend.SoundHandle, listener sndbackend.Vec3, volume float32, rolloff sndbackend.Rolloff, distanceScale float32,
	pitch int, priority int, pos, vel sndbackend.Vec3, slot int, flags sndbackend.StartFlags, channel *sndbackend.VoiceHandle) sndbackend.VoiceHandle {
	if d.refuse {
		return nil
	}
	v := &fakeVoice{length: 1000}
	d.started = append(d.started, v)
	d.started3DVolumes = append(d.started3DVolumes, volume)
	return v
}

func (d *fakeDriver) StopChannel(ch sndbackend.VoiceHandle) {
	if v, ok := ch.(*fakeVoice); ok {
		v.stopped = true
		d.stopped = append(d.stopped, v)
	}
}

func (d *fakeDriver) ChannelVolume(ch sndbackend.VoiceHandle, volume float32) {
	d.volumeSets = append(d.volumeSets, volume)
}
func (d *fakeDriver) ChannelPitch(ch sndbackend.VoiceHandle, pitch int) {
	d.pitchSets = append(d.pitchSets, pitch)
}
func (d *fakeDriver) UpdateSoundParams3D(listener sndbackend.Vec3, ch sndbackend.VoiceHandle, area int, pos, vel sndbackend.Vec3) {
}
func (d *fakeDriver) UpdateListener(listener sndbackend.Vec3) {}
func (d *fakeDriver) UpdateSounds()                           {}

func (d *fakeDriver) GetPosition(ch sndbackend.VoiceHandle) (int, bool) {
	v, ok := ch.(*fakeVoice)
	if !ok {
		return 0, false
	}
	return v.samples, true
}

func (d *fakeDriver) GetSampleLength(handle sndbackend.SoundHandle) int { return 1000 }
func (d *fakeDriver) MarkStartTime(ch sndbackend.VoiceHandle)          {}

func (d *fakeDriver) LoadSound(data []byte) (sndbackend.SoundHandle, error) {
	if d.failDecode {
		return nil, fmt.Errorf("fake decode failure")
	}
	return &fakeHandle{}, nil
}
func (d *fakeDriver) LoadSound3D(data []byte) (sndbackend.SoundHandle, error) { return d.LoadSound(data) }
func (d *fakeDriver) LoadSoundVoc(data []byte) (sndbackend.SoundHandle, error) {
	return d.LoadSound(data)
}
func (d *fakeDriver) LoadSoundRaw(data []byte, rate int, channels, bits int, loopStart int) (sndbackend.SoundHandle, error) {
	return d.LoadSound(data)
}
func (d *fakeDriver) LoadSoundBuffered(data []byte, rate int, channels, bits int) (sndbackend.SoundHandle, error) {
	return d.LoadSound(data)
}
func (d *fakeDriver) UnloadSound(handle sndbackend.SoundHandle) {}
func (d *fakeDriver) GetMSLength(handle sndbackend.SoundHandle) int { return 0 }

// fakeClient is a minimal sndbackend.Client: positions are supplied by
// the test via posFor, keyed by the source pointer (identity) or, for
// Unattached sources, the requested point.
type fakeClient struct {
	invalid bool
	lumps   map[int][]byte
	posFor  map[any]sndbackend.Vec3
}

func newFakeClient() *fakeClient {
	return &fakeClient{lumps: map[int][]byte{}, posFor: map[any]sndbackend.Vec3{}}
}

func (c *fakeClient) CalcPosVel(sourceType sndbackend.SourceType, source any, point *sndbackend.Vec3, slot int, flags sndbackend.StartFlags) (sndbackend.Vec3, sndbackend.Vec3, bool) {
	if c.invalid {
		return sndbackend.Vec3{}, sndbackend.Vec3{}, false
	}
	if point != nil {
		return *point, sndbackend.Vec3{}, true
	}
	if source != nil {
		if p, ok := c.posFor[source]; ok {
			return p, sndbackend.Vec3{}, true
		}
	}
	return sndbackend.Vec3{}, sndbackend.Vec3{}, true
}

func (c *fakeClient) ValidatePosVel(sourceType sndbackend.SourceType, source any, pos, vel sndbackend.Vec3) bool {
	return !c.invalid
}

func (c *fakeClient) ReadSound(lump int) ([]byte, error) {
	if data, ok := c.lumps[lump]; ok {
		return data, nil
	}
	return []byte{0xAA, 0xBB, 0xCC, 0xDD}, nil
}

// newTestEngine wires a fresh registry/cache/pool/engine with fake
// collaborators. The registry holds only the reserved null sound at
// index 0, which also serves as the empty sentinel; tests register
// their own sounds (see setupSound).
func newTestEngine(t interface{ Helper() }) (*SoundEngine, *fakeDriver, *fakeClient) {
	t.Helper()
	reg := NewSoundRegistry(nil)
	driver := &fakeDriver{}
	client := newFakeClient()
	cache := NewResourceCache(reg, client, driver, 0)
	e := NewEngine(reg, cache, client, driver, 0, DefaultEngineConfig())
	return e, driver, client
}

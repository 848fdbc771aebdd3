// Package ebitenbackend adapts sndbackend.Driver onto
// github.com/hajimehoshi/ebiten/v2/audio, the same player API the
// teacher uses for its own in-game sound effects (see sound.go's
// audioContext/audio.Player bookkeeping).
package ebitenbackend

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"sync"

	"github.com/hajimehoshi/ebiten/v2/audio"

	"github.com/maxtraxv3/soundengine/sndbackend"
)

// pcmHandle is a decoded, backend-resident sound: raw little-endian
// 16-bit stereo PCM at the context's sample rate, ready for
// audio.Context.NewPlayerFromBytes.
type pcmHandle struct {
	data []byte
	rate int
}

func (h *pcmHandle) IsNull() bool { return h == nil || len(h.data) == 0 }

// voice wraps one playing or paused ebiten player. The engine only ever
// sees it through the sndbackend.VoiceHandle interface{}.
type voice struct {
	player    *audio.Player
	startLen  int // total sample frames, for GetPosition/GetSampleLength
	markedPos int
}

// Driver plays sfxinfo PCM through a single ebiten audio.Context,
// mirroring the teacher's one-context-many-players model rather than
// spinning up a context per voice.
type Driver struct {
	mu      sync.Mutex
	ctx     *audio.Context
	voices  map[*voice]struct{}
	onEnded func(sndbackend.VoiceHandle)
}

// New wires a driver to an existing ebiten audio context (the teacher
// creates exactly one at startup via audio.NewContext(sampleRate); this
// adapter reuses that pattern instead of allocating its own, since
// ebiten only permits one context per process).
func New(ctx *audio.Context) *Driver {
	return &Driver{ctx: ctx, voices: map[*voice]struct{}{}}
}

// SetEndedCallback installs the function called (from Poll) when a voice
// finishes playing naturally — the adapter's half of the
// ChannelEnded contract spec §5 assigns to the backend.
func (d *Driver) SetEndedCallback(fn func(sndbackend.VoiceHandle)) { d.onEnded = fn }

// Poll must be called periodically (once per UpdateSounds tick is
// sufficient) to detect voices that finished since the last check and
// invoke the ended callback — ebiten's player has no native completion
// event, only IsPlaying().
func (d *Driver) Poll() {
	d.mu.Lock()
	var done []*voice
	for v := range d.voices {
		if !v.player.IsPlaying() {
			done = append(done, v)
		}
	}
	for _, v := range done {
		delete(d.voices, v)
	}
	d.mu.Unlock()

	if d.onEnded == nil {
		return
	}
	for _, v := range done {
		d.onEnded(sndbackend.VoiceHandle(v))
	}
}

func (d *Driver) startPlayer(h *pcmHandle, volume float32, pitch int) (*voice, error) {
	if h == nil || len(h.data) == 0 {
		return nil, fmt.Errorf("ebitenbackend: empty handle")
	}
	data := h.data
	if pitch != 128 {
		data = repitch(data, pitch)
	}
	p, err := d.ctx.NewPlayer(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("ebitenbackend: new player: %w", err)
	}
	p.SetVolume(clampVolume(volume))
	v := &voice{player: p, startLen: len(data) / 4}
	d.mu.Lock()
	d.voices[v] = struct{}{}
	d.mu.Unlock()
	p.Play()
	return v, nil
}

func clampVolume(v float32) float64 {
	if v < 0 {
		v = 0
	}
	if v > 1 {
		v = 1
	}
	return float64(v)
}

// repitch resamples 16-bit stereo PCM by a ratio derived from the
// engine's neutral-128 pitch convention (128 = unchanged, linear in
// playback rate either side) — a crude but adequate stand-in for the
// backend driver's pitch shifting, since ebiten's Player exposes no
// pitch control of its own.
func repitch(data []byte, pitch int) []byte {
	if pitch <= 0 {
		pitch = 128
	}
	ratio := float64(pitch) / 128.0
	frames := len(data) / 4
	if frames == 0 || ratio == 1 {
		return data
	}
	outFrames := int(math.Round(float64(frames) / ratio))
	if outFrames < 1 {
		outFrames = 1
	}
	out := make([]byte, outFrames*4)
	for i := 0; i < outFrames; i++ {
		src := int(float64(i) * ratio)
		if src >= frames {
			src = frames - 1
		}
		copy(out[i*4:i*4+4], data[src*4:src*4+4])
	}
	return out
}

func (d *Driver) StartSound(handle sndbackend.SoundHandle, volume float32, pitch int, flags sndbackend.StartFlags, channel *sndbackend.VoiceHandle) sndbackend.VoiceHandle {
	h, _ := handle.(*pcmHandle)
	v, err := d.startPlayer(h, volume, pitch)
	if err != nil {
		return nil
	}
	if channel != nil {
		*channel = v
	}
	return v
}

// StartSound3D plays volume as given: the engine core has already
// resolved it against the rolloff descriptor and the listener distance
// (see soundengine's resolve3DVolume), so the backend does not
// attenuate a second time. rolloff/distanceScale/pos/vel are accepted
// for backends with native 3D positioning to re-attenuate on their own
// as a voice moves; this software mixer has none and ignores them.
func (d *Driver) StartSound3D(handle3d sndbackend.SoundHandle, listener sndbackend.Vec3, volume float32, rolloff sndbackend.Rolloff, distanceScale float32,
	pitch int, priority int, pos, vel sndbackend.Vec3, slot int, flags sndbackend.StartFlags, channel *sndbackend.VoiceHandle) sndbackend.VoiceHandle {
	h, _ := handle3d.(*pcmHandle)
	v, err := d.startPlayer(h, volume, pitch)
	if err != nil {
		return nil
	}
	if channel != nil {
		*channel = v
	}
	return v
}

func (d *Driver) StopChannel(ch sndbackend.VoiceHandle) {
	v, ok := ch.(*voice)
	if !ok || v == nil {
		return
	}
	v.player.Pause()
	_ = v.player.Close()
	d.mu.Lock()
	delete(d.voices, v)
	d.mu.Unlock()
}

func (d *Driver) ChannelVolume(ch sndbackend.VoiceHandle, volume float32) {
	if v, ok := ch.(*voice); ok {
		v.player.SetVolume(clampVolume(volume))
	}
}

func (d *Driver) ChannelPitch(ch sndbackend.VoiceHandle, pitch int) {
	// ebiten's audio.Player has no runtime pitch knob; re-pitching
	// requires rebuilding the player from resampled bytes, which only
	// happens in startPlayer, from the pitch passed to StartSound or
	// StartSound3D. A pitch change on an already-playing voice is a
	// no-op here.
}

func (d *Driver) UpdateSoundParams3D(listener sndbackend.Vec3, ch sndbackend.VoiceHandle, area int, pos, vel sndbackend.Vec3) {
	v, ok := ch.(*voice)
	if !ok {
		return
	}
	dist := float32(math.Sqrt(pos.Sub(listener).LengthSquared()))
	_ = dist // volume re-attenuation on move is left to the caller via ChannelVolume
	_ = v
}

func (d *Driver) UpdateListener(listener sndbackend.Vec3) {}

func (d *Driver) UpdateSounds() { d.Poll() }

func (d *Driver) GetPosition(ch sndbackend.VoiceHandle) (int, bool) {
	v, ok := ch.(*voice)
	if !ok {
		return 0, false
	}
	pos := v.player.Position()
	samples := int(pos.Seconds() * float64(d.ctx.SampleRate()))
	return samples, true
}

func (d *Driver) GetSampleLength(handle sndbackend.SoundHandle) int {
	h, ok := handle.(*pcmHandle)
	if !ok || h == nil {
		return 0
	}
	return len(h.data) / 4
}

func (d *Driver) MarkStartTime(ch sndbackend.VoiceHandle) {
	if v, ok := ch.(*voice); ok {
		v.markedPos = 0
	}
}

func (d *Driver) LoadSound(data []byte) (sndbackend.SoundHandle, error) {
	return &pcmHandle{data: data, rate: d.ctx.SampleRate()}, nil
}

func (d *Driver) LoadSound3D(data []byte) (sndbackend.SoundHandle, error) {
	return d.LoadSound(data)
}

func (d *Driver) LoadSoundVoc(data []byte) (sndbackend.SoundHandle, error) {
	return nil, fmt.Errorf("ebitenbackend: VOC decoding is not implemented")
}

// LoadSoundRaw converts raw PCM (rate/channels/bits as described by the
// caller) into the stereo 16-bit format ebiten's context expects,
// mirroring loadSound's own u8-to-s16 and channel-folding steps in
// sound.go.
func (d *Driver) LoadSoundRaw(data []byte, rate int, channels, bits int, loopStart int) (sndbackend.SoundHandle, error) {
	samples, err := toS16Mono(data, channels, bits)
	if err != nil {
		return nil, err
	}
	ctxRate := d.ctx.SampleRate()
	if rate > 0 && rate != ctxRate {
		samples = resampleLinear(samples, rate, ctxRate)
	}
	out := make([]byte, len(samples)*4)
	for i, v := range samples {
		binary.LittleEndian.PutUint16(out[4*i:], uint16(v))
		binary.LittleEndian.PutUint16(out[4*i+2:], uint16(v))
	}
	return &pcmHandle{data: out, rate: ctxRate}, nil
}

func (d *Driver) LoadSoundBuffered(data []byte, rate int, channels, bits int) (sndbackend.SoundHandle, error) {
	return d.LoadSoundRaw(data, rate, channels, bits, -1)
}

func (d *Driver) UnloadSound(handle sndbackend.SoundHandle) {}

func (d *Driver) GetMSLength(handle sndbackend.SoundHandle) int {
	h, ok := handle.(*pcmHandle)
	if !ok || h == nil || h.rate == 0 {
		return 0
	}
	frames := len(h.data) / 4
	return frames * 1000 / h.rate
}

func toS16Mono(data []byte, channels, bits int) ([]int16, error) {
	if channels <= 0 {
		channels = 1
	}
	switch bits {
	case 8:
		frames := len(data) / channels
		out := make([]int16, frames)
		for i := 0; i < frames; i++ {
			b := data[i*channels]
			out[i] = int16(int32(b)*257 - 32768)
		}
		return out, nil
	case 16:
		frameSize := channels * 2
		frames := len(data) / frameSize
		out := make([]int16, frames)
		for i := 0; i < frames; i++ {
			off := i * frameSize
			out[i] = int16(binary.LittleEndian.Uint16(data[off : off+2]))
		}
		return out, nil
	default:
		return nil, fmt.Errorf("ebitenbackend: unsupported bit depth %d", bits)
	}
}

func resampleLinear(src []int16, srcRate, dstRate int) []int16 {
	if len(src) == 0 || srcRate <= 0 || dstRate <= 0 || srcRate == dstRate {
		out := make([]int16, len(src))
		copy(out, src)
		return out
	}
	n := int(float64(len(src)) * float64(dstRate) / float64(srcRate))
	if n < 1 {
		n = 1
	}
	out := make([]int16, n)
	step := float64(srcRate) / float64(dstRate)
	pos := 0.0
	last := len(src) - 1
	for i := 0; i < n; i++ {
		idx := int(pos)
		if idx > last {
			idx = last
		}
		out[i] = src[idx]
		pos += step
	}
	return out
}

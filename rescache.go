package soundengine

import (
	"context"
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/remeh/sizedwaitgroup"
	"golang.org/x/sync/errgroup"

	"github.com/maxtraxv3/soundengine/sndbackend"
)

const vocSignature = "Creative Voice File"

// ResourceCache decodes and caches the backend sound handles referenced
// by a SoundRegistry's sfxinfo table, deduplicating by lump id and
// chasing links the same way the registry does for names.
//
// CacheMarkedSounds and PreloadAll both fan loadSound out across a
// bounded worker pool, so mu guards every touch of a sfxinfo's data,
// data3D, Link and Rolloff fields (and the findLoadedDuplicateLocked
// table scan) to keep that concurrency genuinely safe rather than merely
// bounded; the client.ReadSound/decode calls themselves run unlocked
// so I/O for different lumps still overlaps.
type ResourceCache struct {
	mu      sync.Mutex
	reg     *SoundRegistry
	client  sndbackend.Client
	driver  sndbackend.Driver
	emptyID int // index of sfx_empty, the sentinel for "no sound"
	log     *engineLogger
}

// NewResourceCache wires a cache to its registry, client (for reading
// raw lump bytes) and backend driver (for decoding them). emptySoundID
// names the registry entry substituted whenever a lump is absent or
// fails to decode (sfx_empty).
func NewResourceCache(reg *SoundRegistry, client sndbackend.Client, driver sndbackend.Driver, emptySoundID int) *ResourceCache {
	return &ResourceCache{reg: reg, client: client, driver: driver, emptyID: emptySoundID, log: newEngineLogger(false)}
}

// SetDebug toggles verbose decode/substitution logging, mirroring the
// debug gate SoundEngine exposes via EngineConfig.Debug.
func (c *ResourceCache) SetDebug(debug bool) { c.log.debug = debug }

// LoadSound ensures sfx.data is populated, per spec §4.2:
//  1. substitute sfx_empty if the lump is absent;
//  2. dedup against any other sfxinfo already loaded from the same lump;
//  3. otherwise read and dispatch by content (VOC signature, raw PCM,
//     DMX, or a generic decode);
//  4. on decode failure, retry once against the empty sentinel.
func (c *ResourceCache) LoadSound(id int) (int, error) {
	return c.loadSound(id, false)
}

// LoadSound3D is LoadSound's 3D counterpart: it populates sfx.data3D,
// which may alias data if the generic decode already produced a
// 3D-capable result.
func (c *ResourceCache) LoadSound3D(id int) (int, error) {
	return c.loadSound(id, true)
}

func (c *ResourceCache) loadSound(id int, want3D bool) (int, error) {
	c.mu.Lock()
	s := c.reg.get(id)
	if s == nil {
		c.mu.Unlock()
		return 0, fmt.Errorf("soundengine: LoadSound: invalid id %d", id)
	}
	if want3D && s.data3D != nil && !s.data3D.IsNull() {
		c.mu.Unlock()
		return id, nil
	}
	if !want3D && s.data != nil && !s.data.IsNull() {
		c.mu.Unlock()
		return id, nil
	}

	if s.Lump == NoLump {
		c.mu.Unlock()
		return c.substituteEmpty(id, want3D)
	}

	if dedupIdx, ok := c.findLoadedDuplicateLocked(id, s.Lump, want3D); ok {
		dup := c.reg.get(dedupIdx)
		s.Link = dedupIdx
		if s.Rolloff.IsUnset() {
			s.Rolloff = dup.Rolloff
		}
		if want3D {
			s.data3D = dup.data3D
		} else {
			s.data = dup.data
		}
		c.mu.Unlock()
		return dedupIdx, nil
	}
	lump, name := s.Lump, s.Name
	c.mu.Unlock()

	raw, err := c.client.ReadSound(lump)
	if err != nil {
		c.log.Errorf("read lump %d for %q: %v", lump, name, err)
		return c.substituteEmpty(id, want3D)
	}
	c.log.Debugf("decoding %q: lump %d, %s", name, lump, humanBytes(uint64(len(raw))))

	c.mu.Lock()
	s = c.reg.get(id)
	handle, err := c.decode(s, raw, want3D)
	if err != nil {
		c.mu.Unlock()
		c.log.Errorf("decode %q (lump %d, %s): %v", name, lump, humanBytes(uint64(len(raw))), err)
		return c.substituteEmpty(id, want3D)
	}
	if want3D {
		s.data3D = handle
	} else {
		s.data = handle
	}
	c.mu.Unlock()
	return id, nil
}

// substituteEmpty swaps in the sfx_empty sentinel and retries exactly
// once; if the sentinel itself is already what failed, it gives up with
// an invalid handle rather than looping, returning the sentinel's id
// (which callers treat as "nothing to play") and no error.
func (c *ResourceCache) substituteEmpty(id int, want3D bool) (int, error) {
	if id == c.emptyID {
		return c.emptyID, nil
	}
	return c.loadSound(c.emptyID, want3D)
}

// findLoadedDuplicateLocked scans the sfxinfo table for an
// already-loaded entry sharing self's lump. want3D selects which handle
// the caller is about to alias, so a sound whose canonical entry only
// has its 2D handle loaded isn't handed back as a 3D duplicate (which
// would alias a nil data3D). Callers must hold c.mu.
func (c *ResourceCache) findLoadedDuplicateLocked(self, lump int, want3D bool) (int, bool) {
	for i := range c.reg.sounds {
		if i == self {
			continue
		}
		other := &c.reg.sounds[i]
		if other.Lump != lump || other.Link != NoLink {
			continue
		}
		if want3D {
			if other.data3D != nil {
				return i, true
			}
		} else if other.data != nil {
			return i, true
		}
	}
	return 0, false
}

func (c *ResourceCache) decode(s *sfxinfo, raw []byte, want3D bool) (sndbackend.SoundHandle, error) {
	switch {
	case len(raw) >= len(vocSignature) && string(raw[:len(vocSignature)]) == vocSignature:
		return c.driver.LoadSoundVoc(raw)

	case s.IsLoadRAW():
		return c.driver.LoadSoundRaw(raw, s.RawRate, 1, 8, s.LoopStart)

	case isDMX(raw):
		rate, data := dmxPayload(raw)
		return c.driver.LoadSoundRaw(data, rate, 1, 8, s.LoopStart)

	default:
		if want3D {
			return c.driver.LoadSound3D(raw)
		}
		return c.driver.LoadSound(raw)
	}
}

// isDMX reports whether raw looks like a DMX-format sound lump: first
// two bytes (3, 0), and the little-endian 32-bit length at offset 4 that
// fits within the remaining buffer.
func isDMX(raw []byte) bool {
	if len(raw) < 8 {
		return false
	}
	if raw[0] != 3 || raw[1] != 0 {
		return false
	}
	length := binary.LittleEndian.Uint32(raw[4:8])
	return int64(length) <= int64(len(raw)-8)
}

// dmxPayload extracts the sample rate (offset 2, defaulting to 11025 if
// the header records zero) and the PCM payload starting at offset 8.
func dmxPayload(raw []byte) (rate int, data []byte) {
	rate = int(binary.LittleEndian.Uint16(raw[2:4]))
	if rate == 0 {
		rate = 11025
	}
	length := binary.LittleEndian.Uint32(raw[4:8])
	end := 8 + int(length)
	if end > len(raw) {
		end = len(raw)
	}
	return rate, raw[8:end]
}

// UnloadSound releases both handles, unless data3D aliases data (to
// avoid a double free on the backend).
func (c *ResourceCache) UnloadSound(id int) {
	c.mu.Lock()
	s := c.reg.get(id)
	if s == nil {
		c.mu.Unlock()
		return
	}
	aliased := s.data3D == s.data
	data, data3D := s.data, s.data3D
	s.data, s.data3D = nil, nil
	c.mu.Unlock()

	if data != nil {
		c.driver.UnloadSound(data)
	}
	if data3D != nil && !aliased {
		c.driver.UnloadSound(data3D)
	}
}

// CacheMarkedSounds preserves every sfxinfo referenced by stillNeeded
// (the ids an active channel currently references) and unloads the
// rest, decoding any newly-needed-but-not-yet-loaded sounds
// concurrently (bounded via errgroup, mu-guarded per loadSound) since
// this is a maintenance sweep, not a per-frame operation, and the
// spec's single-threaded requirement only binds StartSound/UpdateSounds.
func (c *ResourceCache) CacheMarkedSounds(ctx context.Context, stillNeeded map[int]bool) error {
	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for id := range stillNeeded {
		id := id
		g.Go(func() error {
			_, err := c.LoadSound(id)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	for i := range c.reg.sounds {
		if i == 0 || stillNeeded[i] {
			continue
		}
		c.UnloadSound(i)
	}
	return nil
}

// PreloadAll decodes every registered sfxinfo's 2D handle up front,
// bounded to concurrency workers, for callers that want to warm the
// cache at startup instead of relying purely on lazy LoadSound calls
// from StartSound (a feature present in the original engine's level
// loader but left implicit by the distilled spec). Safe to run
// alongside CacheMarkedSounds since both funnel through loadSound's
// mu-guarded table access.
func (c *ResourceCache) PreloadAll(ctx context.Context, workers int) []error {
	if workers <= 0 {
		workers = 4
	}
	swg := sizedwaitgroup.New(workers)
	errsCh := make(chan error, len(c.reg.sounds))
	for i := 1; i < len(c.reg.sounds); i++ {
		id := i
		swg.Add()
		go func() {
			defer swg.Done()
			select {
			case <-ctx.Done():
				errsCh <- ctx.Err()
				return
			default:
			}
			if _, err := c.LoadSound(id); err != nil {
				errsCh <- fmt.Errorf("soundengine: preload %d: %w", id, err)
			}
		}()
	}
	swg.Wait()
	close(errsCh)
	var errs []error
	for err := range errsCh {
		errs = append(errs, err)
	}
	return errs
}

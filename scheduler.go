package soundengine

import (
	"math/rand"

	"github.com/maxtraxv3/soundengine/sndbackend"
)

// StartSound runs the decision pipeline of spec §4.3: resolve links,
// apply near-limit/singular/pause policy, ask the backend for a voice,
// and record the resulting channel. A policy rejection (guard, volume,
// singular, near-limit, pause, empty sound, backend refusal) returns
// (nil, nil) — a deliberate, non-error rejection the caller can simply
// treat as "nothing started". Three cases return a nil channel with a
// sentinel error instead: an invalid position (ErrInvalidPosition), a
// link chain that does not terminate (ErrLinkCycle), and no free
// auto-selected slot on the emitter (ErrChannelBusy).
func (e *SoundEngine) StartSound(req StartRequest) (*FSoundChan, error) {
	// 1. Guard.
	if req.SoundID <= 0 || req.Volume <= 0 || e.disabled {
		return nil, nil
	}
	sourceType := req.SourceType
	if sourceType == sndbackend.SourceUnattached && req.Point == nil {
		sourceType = sndbackend.SourceNone
	}

	// 2. Separate channel bits.
	slot := req.Channel & PublicSlotMask
	high := req.Channel &^ PublicSlotMask
	var flags ChanFlags
	if high&PublicListenerZ != 0 {
		flags |= ChanListenerZ
	}
	if high&PublicUI != 0 {
		flags |= ChanUI
	}
	if high&PublicNoPause != 0 {
		flags |= ChanNoPause
	}
	if high&PublicArea != 0 {
		flags |= ChanArea
	}
	if high&PublicLoop != 0 {
		flags |= ChanLoop
	}

	ref := sourceRef{Type: sourceType, Actor: req.Source}
	if sourceType == sndbackend.SourceUnattached {
		ref.Point = *req.Point
		ref.UsePoint = true
	}

	// 3. Position.
	pos, vel, ok := e.client.CalcPosVel(sourceType, req.Source, req.Point, slot, toStartFlags(flags))
	if !ok || !e.client.ValidatePosVel(sourceType, req.Source, pos, vel) {
		return nil, ErrInvalidPosition
	}

	sfx0 := e.Registry.get(req.SoundID)
	if sfx0 == nil {
		return nil, nil
	}

	// 4. Volume.
	volume := req.Volume * sfx0.Volume
	if volume > 1 {
		volume = 1
	}
	if volume <= 0 {
		return nil, nil
	}

	attenuation := req.Attenuation
	effNearLimit := sfx0.NearLimit
	effLimitRange := sfx0.LimitRange
	effRolloff := sfx0.Rolloff

	// 5. Link resolution loop.
	id := req.SoundID
	for depth := 0; ; depth++ {
		cur := e.Registry.get(id)
		if cur == nil || cur.Link == NoLink {
			break
		}
		if depth >= maxLinkChainDepth {
			e.log.Errorf("link chain for sound %d did not terminate within %d hops", req.SoundID, maxLinkChainDepth)
			return nil, ErrLinkCycle
		}
		var nextID int
		if cur.IsRandomHeader() {
			nextID = e.Registry.PickReplacement(id)
			attenuation *= cur.Attenuation
		} else {
			nextID = cur.Link
		}
		target := e.Registry.get(nextID)
		if target == nil || nextID == id {
			break
		}
		if effNearLimit < 0 {
			effNearLimit = target.NearLimit
			effLimitRange = target.LimitRange
		}
		if effRolloff.IsUnset() {
			effRolloff = target.Rolloff
		}
		id = nextID
	}
	resolvedID := id
	resolvedSfx := e.Registry.get(resolvedID)
	if resolvedSfx == nil {
		return nil, nil
	}

	// 6. Attenuation.
	attenuation *= resolvedSfx.Attenuation
	if req.ForcedRolloff != nil && !req.ForcedRolloff.IsUnset() {
		effRolloff = *req.ForcedRolloff
	}

	// 7. Singular check.
	if resolvedSfx.IsSingular() {
		e.Pool.ForEachActive(func(c *FSoundChan) bool {
			if c.SoundID == resolvedID {
				flags |= ChanEvicted
				return false
			}
			return true
		})
	}

	// 8. Unlimited exemption.
	if sourceType == sndbackend.SourceNone || e.isListener(sourceType, req.Source) {
		effNearLimit = 0
	}

	// 9. Near-limit check.
	if effNearLimit > 0 {
		var count int32
		e.Pool.ForEachActive(func(c *FSoundChan) bool {
			if flags.Has(ChanEvicted) {
				return false
			}
			if c.Flags.Has(ChanEvicted) || c.SoundID != resolvedID {
				return true
			}
			if req.Source != nil && c.matchesSource(ref, slot) {
				return false // restarting the same emitter on the requested slot: not limited at all
			}
			d := c.Pos.Sub(pos).LengthSquared()
			if float32(d) <= effLimitRange {
				count++
			}
			if count >= effNearLimit {
				flags |= ChanEvicted
				return false
			}
			return true
		})
	}

	// 10. Early abort.
	if flags.Has(ChanEvicted) && !flags.Has(ChanLoop) {
		return nil, nil
	}

	// 11. Resource load.
	loadedID, err := e.Cache.LoadSound(resolvedID)
	if err != nil {
		return nil, nil
	}
	if loadedID == e.emptySoundID {
		return nil, nil
	}
	resolvedID = loadedID
	resolvedSfx = e.Registry.get(resolvedID)
	if resolvedSfx == nil {
		return nil, nil
	}

	// 12. Priority.
	priority := 0
	if sourceType == sndbackend.SourceNone || e.isListener(sourceType, req.Source) {
		priority = 80
	}

	// 13. Channel slot selection.
	if slot == 0 {
		var seen uint8
		e.Pool.ForEachActive(func(c *FSoundChan) bool {
			if c.sameEmitter(ref) && c.EntChannel >= 0 && c.EntChannel < 8 {
				seen |= 1 << uint(c.EntChannel)
			}
			return true
		})
		if seen&1 == 0 {
			slot = 0
		} else {
			found := -1
			for s := 7; s >= 1; s-- {
				if seen&(1<<uint(s)) == 0 {
					found = s
					break
				}
			}
			if found == -1 {
				e.log.Debugf("no free auto-slot for sound %d on source %v", req.SoundID, req.Source)
				return nil, ErrChannelBusy
			}
			slot = found
		}
	}

	// 14. Collision.
	var collided *FSoundChan
	e.Pool.ForEachActive(func(c *FSoundChan) bool {
		if c.matchesSource(ref, slot) {
			collided = c
			return false
		}
		return true
	})
	if collided != nil {
		e.forceStopChannel(collided)
	}

	// 15. Pause gate.
	if e.paused && !flags.Has(ChanLoop) && !flags.Has(ChanUI) && !flags.Has(ChanNoPause) {
		return nil, nil
	}

	// 16. Pitch randomization.
	pitch := defaultPitch
	if mask := resolvedSfx.PitchMask; mask != 0 {
		pitch = defaultPitch + int(e.rng().Int31()&mask) - int(e.rng().Int31()&mask)
	}

	// 17. Start.
	startFlags := toStartFlags(flags)
	var voice sndbackend.VoiceHandle
	var channelOut sndbackend.VoiceHandle
	if attenuation > 0 {
		id3, err := e.Cache.LoadSound3D(resolvedID)
		if err == nil {
			if s3 := e.Registry.get(id3); s3 != nil {
				listenerPos, _ := e.listener()
				vol3D := resolve3DVolume(volume, effRolloff, pos, listenerPos, req.DistanceScale, e.curve)
				voice = e.driver.StartSound3D(s3.data3D, listenerPos, vol3D, effRolloff, req.DistanceScale,
					pitch, priority, pos, vel, slot, startFlags, &channelOut)
			}
		}
	} else {
		voice = e.driver.StartSound(resolvedSfx.data, volume, pitch, startFlags, &channelOut)
	}

	var ch *FSoundChan
	if voice != nil {
		ch = e.Pool.Alloc()
		ch.SysChannel = voice
	} else if flags.Has(ChanLoop) {
		// 18. Evicted-park fallback.
		ch = e.Pool.Alloc()
		ch.StartTime = req.Now
		flags |= ChanEvicted | ChanAbsTime
	} else {
		return nil, nil
	}

	// 19. Record state.
	ch.SoundID = resolvedID
	ch.OrgID = req.SoundID
	ch.Volume = volume
	ch.Pitch = pitch
	ch.EntChannel = slot
	ch.Priority = priority
	ch.NearLimit = effNearLimit
	ch.LimitRange = effLimitRange
	ch.Source = ref
	ch.DistanceScale = req.DistanceScale
	ch.Rolloff = effRolloff
	ch.Pos = pos
	ch.Vel = vel
	ch.id = e.nextChannelID()
	if attenuation > 0 {
		flags |= Chan3D | ChanJustStarted
	} else {
		flags |= ChanListenerZ | ChanJustStarted
	}
	ch.Flags |= flags

	if req.CustomSampleRate > 0 && resolvedSfx.RawRate > 0 {
		ch.Pitch = rescalePitch(ch.Pitch, resolvedSfx.RawRate, req.CustomSampleRate)
		e.driver.ChannelPitch(ch.SysChannel, ch.Pitch)
	}

	return ch, nil
}

// forceStopChannel stops a colliding channel unconditionally, outside
// the normal ChannelEnded callback path — the new sound is about to
// claim its (source, slot) tuple, so there is nothing left to park.
func (e *SoundEngine) forceStopChannel(ch *FSoundChan) {
	if ch.SysChannel != nil {
		e.driver.StopChannel(ch.SysChannel)
	}
	e.Pool.Retire(ch)
}

func (e *SoundEngine) rng() *rand.Rand {
	if e.prng == nil {
		e.prng = rand.New(rand.NewSource(1))
	}
	return e.prng
}

func toStartFlags(f ChanFlags) sndbackend.StartFlags {
	var sf sndbackend.StartFlags
	if f.Has(ChanLoop) {
		sf |= sndbackend.StartLoop
	}
	if f.Has(ChanArea) {
		sf |= sndbackend.StartArea
	}
	if f.Has(ChanUI) || f.Has(ChanNoPause) {
		sf |= sndbackend.StartNoPause
	}
	if f.Has(ChanUI) {
		sf |= sndbackend.StartNoReverb
	}
	return sf
}

// rescalePitch adjusts a neutral-128 pitch value for a caller-supplied
// sample rate against the sfx's authored rate.
func rescalePitch(pitch, authoredRate, customRate int) int {
	if authoredRate <= 0 {
		return pitch
	}
	return pitch * customRate / authoredRate
}

// StopSoundID stops every active channel currently playing soundID
// (matched post-link-resolution, as SoundID is stored after resolution).
func (e *SoundEngine) StopSoundID(soundID int) {
	var victims []*FSoundChan
	e.Pool.ForEachActive(func(c *FSoundChan) bool {
		if c.SoundID == soundID {
			victims = append(victims, c)
		}
		return true
	})
	for _, c := range victims {
		e.forceStopChannel(c)
	}
}

// StopChannel stops the single active channel matching (sourceType,
// source, slot), mirroring the lookup StartSound's collision step (14)
// performs.
func (e *SoundEngine) StopChannel(sourceType sndbackend.SourceType, source any, slot int) {
	ref := sourceRef{Type: sourceType, Actor: source}
	var victim *FSoundChan
	e.Pool.ForEachActive(func(c *FSoundChan) bool {
		if c.matchesSource(ref, slot) {
			victim = c
			return false
		}
		return true
	})
	if victim != nil {
		e.forceStopChannel(victim)
	}
}

// StopActorSounds stops every active channel attached to source across
// all slots, the bulk counterpart to StopChannel used when an actor is
// destroyed.
func (e *SoundEngine) StopActorSounds(sourceType sndbackend.SourceType, source any) {
	ref := sourceRef{Type: sourceType, Actor: source}
	var victims []*FSoundChan
	e.Pool.ForEachActive(func(c *FSoundChan) bool {
		if c.sameEmitter(ref) {
			victims = append(victims, c)
		}
		return true
	})
	for _, c := range victims {
		e.forceStopChannel(c)
	}
}

// IsSourcePlayingSomething reports whether source has any active,
// non-evicted channel, optionally narrowed to one slot (pass slot <= 0
// to check all slots) and one resolved sound id (pass soundID <= 0 to
// match any).
func (e *SoundEngine) IsSourcePlayingSomething(sourceType sndbackend.SourceType, source any, slot, soundID int) bool {
	ref := sourceRef{Type: sourceType, Actor: source}
	found := false
	e.Pool.ForEachActive(func(c *FSoundChan) bool {
		if c.Flags.Has(ChanEvicted) || !c.sameEmitter(ref) {
			return true
		}
		if slot > 0 && c.EntChannel != slot {
			return true
		}
		if soundID > 0 && c.SoundID != soundID {
			return true
		}
		found = true
		return false
	})
	return found
}

// SetChannelVolume live-adjusts a playing channel's volume without
// restarting it, wired straight to the backend's ChannelVolume op. A
// channel with no live backend voice (parked/evicted) only has its
// stored Volume updated, so a later restart picks it up.
func (e *SoundEngine) SetChannelVolume(ch *FSoundChan, volume float32) {
	if ch == nil {
		return
	}
	if volume < 0 {
		volume = 0
	} else if volume > 1 {
		volume = 1
	}
	ch.Volume = volume
	if ch.SysChannel != nil {
		e.driver.ChannelVolume(ch.SysChannel, volume)
	}
}

// SetChannelPitch live-adjusts a playing channel's pitch without
// restarting it, wired straight to the backend's ChannelPitch op.
func (e *SoundEngine) SetChannelPitch(ch *FSoundChan, pitch int) {
	if ch == nil {
		return
	}
	ch.Pitch = pitch
	if ch.SysChannel != nil {
		e.driver.ChannelPitch(ch.SysChannel, pitch)
	}
}

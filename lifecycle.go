package soundengine

import (
	"time"

	"github.com/maxtraxv3/soundengine/sndbackend"
)

// ChannelEnded is the backend's "this voice finished or was stopped"
// callback (spec §4.4). It decides evicted-vs-natural and either parks
// the channel (sets Evicted, clears SysChannel) or retires it to Free.
//
// Per spec §5 this must run as if on the game thread; a concrete driver
// is responsible for marshalling the call accordingly before invoking
// it.
func (e *SoundEngine) ChannelEnded(voice sndbackend.VoiceHandle) {
	var target *FSoundChan
	e.Pool.ForEachActive(func(c *FSoundChan) bool {
		if c.SysChannel == voice {
			target = c
			return false
		}
		return true
	})
	if target == nil {
		return
	}

	var evicted bool
	switch {
	case target.Flags.Has(ChanForgettable):
		evicted = false
	case target.Flags.Has(ChanLoop) || target.Flags.Has(ChanEvicted):
		evicted = true
	default:
		if samples, ok := e.driver.GetPosition(voice); ok {
			length := e.driver.GetSampleLength(e.resolvedHandleFor(target))
			if samples == 0 {
				evicted = target.Flags.Has(ChanJustStarted)
			} else {
				evicted = samples < length
			}
		}
	}

	if evicted {
		target.Flags |= ChanEvicted
		target.SysChannel = nil
		return
	}
	e.Pool.Retire(target)
}

// resolvedHandleFor returns the 2D sound handle a channel's resolved
// sfxinfo holds, used only to measure sample length for the natural-end
// heuristic in ChannelEnded.
func (e *SoundEngine) resolvedHandleFor(ch *FSoundChan) sndbackend.SoundHandle {
	sfx := e.Registry.get(ch.SoundID)
	if sfx == nil {
		return nil
	}
	return sfx.data
}

// ChannelVirtualized is the backend's "this voice stopped/started being
// mixed in software" callback, used by backends that virtualize
// far-away or low-priority voices instead of stopping them outright.
func (e *SoundEngine) ChannelVirtualized(voice sndbackend.VoiceHandle, virtual bool) {
	e.Pool.ForEachActive(func(c *FSoundChan) bool {
		if c.SysChannel != voice {
			return true
		}
		if virtual {
			c.Flags |= ChanVirtual
		} else {
			c.Flags &^= ChanVirtual
		}
		return false
	})
}

// EvictAllChannels parks every non-evicted channel with a live backend
// voice: it records the current playback position in StartTime (with
// AbsTime set), marks the channel Evicted, stops the voice and clears
// SysChannel. Used ahead of a backend reset (device change, output
// restart).
func (e *SoundEngine) EvictAllChannels() {
	start := time.Now()
	var victims []*FSoundChan
	e.Pool.ForEachActive(func(c *FSoundChan) bool {
		if !c.Flags.Has(ChanEvicted) && c.SysChannel != nil {
			victims = append(victims, c)
		}
		return true
	})
	for _, c := range victims {
		if samples, ok := e.driver.GetPosition(c.SysChannel); ok {
			c.StartTime = int64(samples)
			c.Flags |= ChanAbsTime
		}
		// Evicted is set before the stop so a ChannelEnded callback from
		// the backend parks the channel instead of retiring it.
		c.Flags |= ChanEvicted
		e.driver.StopChannel(c.SysChannel)
		c.SysChannel = nil
	}
	if len(victims) > 0 {
		e.log.Debugf("evicted %d channels in %s", len(victims), humanSince(start))
	}
}

// RestoreEvictedChannels retries every parked channel, oldest first, so
// replay order on a restored backend matches original play order. It is
// throttled by the engine's restore-events limiter (see EngineConfig) so
// a mass eviction doesn't thunder-herd the driver on the very next call.
func (e *SoundEngine) RestoreEvictedChannels() {
	start := time.Now()
	var evicted []*FSoundChan
	e.Pool.ForEachActiveOldestFirst(func(c *FSoundChan) bool {
		if c.Flags.Has(ChanEvicted) {
			evicted = append(evicted, c)
		}
		return true
	})
	restored := 0
	defer func() {
		if len(evicted) > 0 {
			e.log.Debugf("restored %d/%d evicted channels in %s", restored, len(evicted), humanSince(start))
		}
	}()
	for _, c := range evicted {
		if !e.restoreLimiter.Allow() {
			break
		}
		wasLoop := c.Flags.Has(ChanLoop)
		ok := e.RestartChannel(c)
		if !ok {
			if !wasLoop {
				e.Pool.Retire(c)
			}
			continue
		}
		restored++
		if !wasLoop {
			c.Flags |= ChanForgettable
		}
	}
}

// RestartChannel retries a single parked channel: re-checks Singular,
// reloads its resource, and (for 3D channels) recomputes position and
// re-checks the near-limit before asking the backend to start a fresh
// voice. It clears Evicted|AbsTime before the attempt and restores them
// on failure.
func (e *SoundEngine) RestartChannel(ch *FSoundChan) bool {
	if ch.Flags.Has(ChanForgettable) {
		return false
	}

	sfx := e.Registry.get(ch.SoundID)
	if sfx == nil {
		return false
	}
	if sfx.IsSingular() {
		live := false
		e.Pool.ForEachActive(func(c *FSoundChan) bool {
			if c == ch {
				return true
			}
			if c.SoundID == ch.SoundID && !c.Flags.Has(ChanEvicted) {
				live = true
				return false
			}
			return true
		})
		if live {
			return false
		}
	}

	loadedID, err := e.Cache.LoadSound(ch.SoundID)
	if err != nil || loadedID == e.emptySoundID {
		return false
	}

	savedFlags := ch.Flags
	pos, vel := ch.Pos, ch.Vel
	if ch.Flags.Has(Chan3D) {
		newPos, newVel, ok := e.client.CalcPosVel(ch.Source.Type, ch.Source.Actor, pointOf(ch.Source), ch.EntChannel, toStartFlags(ch.Flags))
		if ok && e.client.ValidatePosVel(ch.Source.Type, ch.Source.Actor, newPos, newVel) {
			pos, vel = newPos, newVel
		}
		if ch.NearLimit > 0 {
			var count int32
			e.Pool.ForEachActive(func(c *FSoundChan) bool {
				if c == ch || c.Flags.Has(ChanEvicted) || c.SoundID != ch.SoundID {
					return true
				}
				if float32(c.Pos.Sub(pos).LengthSquared()) <= ch.LimitRange {
					count++
				}
				return count < ch.NearLimit
			})
			if count >= ch.NearLimit {
				return false
			}
		}
	}

	ch.Flags &^= ChanEvicted | ChanAbsTime

	var voice sndbackend.VoiceHandle
	var channelOut sndbackend.VoiceHandle
	startFlags := toStartFlags(ch.Flags)
	if ch.Flags.Has(Chan3D) {
		listenerPos, _ := e.listener()
		vol3D := resolve3DVolume(ch.Volume, ch.Rolloff, pos, listenerPos, ch.DistanceScale, e.curve)
		voice = e.driver.StartSound3D(sfx.data3D, listenerPos, vol3D, ch.Rolloff, ch.DistanceScale,
			ch.Pitch, ch.Priority, pos, vel, ch.EntChannel, startFlags, &channelOut)
	} else {
		voice = e.driver.StartSound(sfx.data, ch.Volume, ch.Pitch, startFlags, &channelOut)
	}

	if voice == nil {
		ch.Flags = savedFlags
		return false
	}
	ch.SysChannel = voice
	ch.Pos, ch.Vel = pos, vel
	return true
}

func pointOf(ref sourceRef) *sndbackend.Vec3 {
	if !ref.UsePoint {
		return nil
	}
	p := ref.Point
	return &p
}

// UpdateSounds is the per-tick maintenance pass (spec §4.4): refresh 3D
// parameters for live channels, clear transient flags, push the
// listener position, let the backend run its own per-tick bookkeeping,
// and — once time reaches RestartEvictionsAt — retry parked channels.
func (e *SoundEngine) UpdateSounds(now int64) {
	listenerPos, listenerVel := e.listener()

	e.Pool.ForEachActive(func(c *FSoundChan) bool {
		if c.Flags.Has(ChanEvicted) {
			return true
		}
		if c.Flags.Has(Chan3D) && c.SysChannel != nil {
			pos, vel, ok := e.client.CalcPosVel(c.Source.Type, c.Source.Actor, pointOf(c.Source), c.EntChannel, toStartFlags(c.Flags))
			if ok && e.client.ValidatePosVel(c.Source.Type, c.Source.Actor, pos, vel) {
				c.Pos, c.Vel = pos, vel
				area := 0
				if c.Flags.Has(ChanArea) {
					area = 1
				}
				e.driver.UpdateSoundParams3D(listenerPos, c.SysChannel, area, pos, vel)
			}
		}
		c.Flags &^= ChanJustStarted
		return true
	})

	e.driver.UpdateListener(listenerPos)
	_ = listenerVel
	e.driver.UpdateSounds()

	if e.RestartEvictionsAt != NoPendingRestore && now >= e.RestartEvictionsAt {
		e.RestoreEvictedChannels()
		e.RestartEvictionsAt = NoPendingRestore
	}
}

// ResetBackend marks the engine as having just survived a backend
// restart: every channel is evicted, and restores are fenced off until
// fenceUntil so the flood of freshly-parked channels doesn't all retry
// on the very next UpdateSounds call. fenceUntil may legitimately be 0
// (see spec §8 scenario 4); NoPendingRestore, not 0, means "nothing
// pending".
func (e *SoundEngine) ResetBackend(fenceUntil int64) {
	e.EvictAllChannels()
	e.RestartEvictionsAt = fenceUntil
}

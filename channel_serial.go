package soundengine

import (
	"fmt"

	"github.com/maxtraxv3/soundengine/sndbackend"
	"github.com/maxtraxv3/soundengine/sndserial"
)

// ClassTag identifies FSoundChan in the "objects" array of a snapshot,
// per spec §4.5's object-graph encoding.
func (c *FSoundChan) ClassTag() string { return "FSoundChan" }

// Linked reports whether this channel is still reachable from the pool
// that owns it — a channel read back by the serializer but never handed
// to ChannelPool.adopt is an orphan the Close sweep should destroy.
func (c *FSoundChan) Linked() bool { return c.pool != nil }

// Destroy releases a channel's backend voice. Called only on an orphan
// discovered during the post-read sweep (see SweepOrphans).
func (c *FSoundChan) Destroy() {
	if c.SysChannel != nil {
		// The caller's driver has already been torn down by the time an
		// orphan sweep runs during load, so there's nothing left to
		// stop on the backend; just drop the reference.
		c.SysChannel = nil
	}
}

// SerializeFields walks every field spec §4.3's Record State step
// populates, plus the flag bitset, against s. It is called once per
// channel on write and once per channel (after all channels in a
// snapshot have been instantiated) on read.
func (c *FSoundChan) SerializeFields(s *sndserial.Serializer) {
	s.Int("soundid", &c.SoundID)
	s.Int("orgid", &c.OrgID)
	s.Float32("volume", &c.Volume, 1)
	s.Int("pitch", &c.Pitch, defaultPitch)
	s.Int("entchannel", &c.EntChannel)
	s.Int("priority", &c.Priority)
	s.Int32("nearlimit", &c.NearLimit)
	s.Float32("limitrange", &c.LimitRange)
	s.Float32("distancescale", &c.DistanceScale, 1)
	s.Int64("starttime", &c.StartTime)

	var flags uint32
	if s.Mode == sndserial.ModeWriting {
		flags = uint32(c.Flags)
	}
	s.Uint32("flags", &flags)
	if s.Mode == sndserial.ModeReading {
		c.Flags = ChanFlags(flags)
	}

	serializeRolloff(s, &c.Rolloff)
	serializeVec3(s, "pos", &c.Pos)
	serializeVec3(s, "vel", &c.Vel)

	var sourceType int32
	if s.Mode == sndserial.ModeWriting {
		sourceType = int32(c.Source.Type)
	}
	s.Int32("sourcetype", &sourceType)
	if s.Mode == sndserial.ModeReading {
		c.Source.Type = sndbackend.SourceType(sourceType)
	}

	if c.Source.Type == sndbackend.SourceUnattached {
		c.Source.UsePoint = true
		serializeVec3(s, "sourcepoint", &c.Source.Point)
	}

	if s.Mode == sndserial.ModeWriting {
		if ser, ok := c.Source.Actor.(sndserial.Serializable); ok {
			s.ObjectRef("source", ser)
		} else {
			s.ObjectRef("source", nil)
		}
	} else if obj := s.ReadObjectRef("source"); obj != nil {
		c.Source.Actor = obj
	}
}

func serializeVec3(s *sndserial.Serializer, key string, v *sndbackend.Vec3) {
	if err := s.BeginObject(key); err != nil {
		return
	}
	var x, y, z float32
	if s.Mode == sndserial.ModeWriting {
		x, y, z = float32(v.X), float32(v.Y), float32(v.Z)
	}
	s.Float32("x", &x)
	s.Float32("y", &y)
	s.Float32("z", &z)
	if s.Mode == sndserial.ModeReading {
		v.X, v.Y, v.Z = float64(x), float64(y), float64(z)
	}
	s.EndObject(key)
}

func serializeRolloff(s *sndserial.Serializer, r *sndbackend.Rolloff) {
	if err := s.BeginObject("rolloff"); err != nil {
		return
	}
	var typ int32
	if s.Mode == sndserial.ModeWriting {
		typ = int32(r.Type)
	}
	s.Int32("type", &typ)
	s.Float32("min", &r.MinDistance)
	s.Float32("max", &r.MaxDistance)
	s.Float32("factor", &r.Factor)
	if s.Mode == sndserial.ModeReading {
		r.Type = sndbackend.RolloffType(typ)
	}
	s.EndObject("rolloff")
}

// Snapshot serializes every active channel into a compressed savegame
// buffer, per spec §4.5's stated primary use case for the tagged-tree
// serializer.
func (e *SoundEngine) Snapshot() ([]byte, error) {
	w := sndserial.NewWriter()
	if err := w.BeginArray("channels"); err != nil {
		return nil, err
	}
	e.Pool.ForEachActiveOldestFirst(func(c *FSoundChan) bool {
		w.ObjectRef("", c)
		return true
	})
	w.EndArray("channels")
	return w.Close()
}

// Restore replaces the engine's active channels with the contents of a
// snapshot produced by Snapshot. Any channel currently playing is
// stopped on the backend first. Restored channels are parked (Evicted)
// rather than immediately re-started on the backend; call
// RestoreEvictedChannels afterward to attempt playback.
func (e *SoundEngine) Restore(data []byte) error {
	r, err := sndserial.OpenEnvelope(data)
	if err != nil {
		return err
	}

	var victims []*FSoundChan
	e.Pool.ForEachActive(func(c *FSoundChan) bool { victims = append(victims, c); return true })
	for _, c := range victims {
		if c.SysChannel != nil {
			e.driver.StopChannel(c.SysChannel)
		}
		e.Pool.Retire(c)
	}

	registry := map[string]sndserial.Constructor{
		"FSoundChan": func() sndserial.Serializable { return &FSoundChan{} },
	}
	if err := r.ReadObjects(registry); err != nil {
		return fmt.Errorf("soundengine: restore: %w", err)
	}

	if err := r.BeginArray("channels"); err != nil {
		return err
	}
	for {
		obj := r.ReadObjectRef("")
		if obj == nil {
			break
		}
		ch, ok := obj.(*FSoundChan)
		if !ok {
			continue
		}
		ch.Flags |= ChanEvicted
		e.Pool.adopt(ch)
	}
	r.EndArray("channels")

	return r.CloseReader()
}

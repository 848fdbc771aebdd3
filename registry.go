package soundengine

import (
	"fmt"
	"math/rand"
	"strings"

	"golang.org/x/text/encoding/charmap"
)

// SoundRegistry maps logical sound names and resource ids to sfxinfo
// records, and resolves random-sound lists and link chains. Entry 0 is
// always the reserved null sound. The table is append-only after
// HashSounds is called; HashSounds itself may be called again after
// further appends to rebuild the chains from scratch.
type SoundRegistry struct {
	sounds    []sfxinfo
	randoms   []FRandomSoundList
	hashTable []int // index -> head of hash chain, -1 = empty
	byResID   map[int]int

	rng *rand.Rand
}

// NewSoundRegistry returns a registry with the reserved null sound
// already present at index 0.
func NewSoundRegistry(rng *rand.Rand) *SoundRegistry {
	if rng == nil {
		rng = rand.New(rand.NewSource(1))
	}
	r := &SoundRegistry{
		byResID: map[int]int{},
		rng:     rng,
	}
	null := defaultSfxinfo("")
	null.Flags |= sfxUsed
	r.sounds = append(r.sounds, null)
	return r
}

// Len reports how many sfxinfo entries are registered, including the
// null sound at index 0.
func (r *SoundRegistry) Len() int { return len(r.sounds) }

func (r *SoundRegistry) get(id int) *sfxinfo {
	if id < 0 || id >= len(r.sounds) {
		return nil
	}
	return &r.sounds[id]
}

// AddSoundLump appends a new sfxinfo with the documented defaults
// (volume=1, attenuation=1, near_limit=2, limit_range=65536, rolloff
// Doom, loop_start=-1, link=NoLink). It does not rebuild the hash table;
// call HashSounds after a batch of inserts.
func (r *SoundRegistry) AddSoundLump(name string, lump int, pitchMask int32, resID int) int {
	s := defaultSfxinfo(name)
	s.Lump = lump
	s.PitchMask = pitchMask
	s.ResID = resID
	s.Flags |= sfxUsed
	idx := len(r.sounds)
	r.sounds = append(r.sounds, s)
	if resID >= 0 {
		r.byResID[resID] = idx
	}
	return idx
}

// AddSoundLumpLegacyName behaves like AddSoundLump but decodes name from
// a legacy single-byte codepage (e.g. a WAD lump table entry that
// predates UTF-8) into the registry's canonical UTF-8 representation.
func (r *SoundRegistry) AddSoundLumpLegacyName(legacyName []byte, cp *charmap.Charmap, lump int, pitchMask int32, resID int) (int, error) {
	if cp == nil {
		cp = charmap.Windows1252
	}
	decoded, err := cp.NewDecoder().Bytes(legacyName)
	if err != nil {
		return 0, fmt.Errorf("soundengine: decode legacy sound name: %w", err)
	}
	return r.AddSoundLump(string(decoded), lump, pitchMask, resID), nil
}

// MarkRaw flags id as headerless raw PCM sampled at rate, the
// counterpart to the DMX/VOC signature sniffing ResourceCache.decode
// otherwise relies on to choose a decode path. Use this for lumps that
// carry no recognizable header of their own.
func (r *SoundRegistry) MarkRaw(id int, rate int) {
	s := r.get(id)
	if s == nil {
		return
	}
	s.Flags |= sfxLoadRAW
	s.RawRate = rate
}

// HashSounds shrinks the backing slice to fit and rebuilds the
// name-hash chains. Must be called after bulk loading and before
// FindSound is relied on.
func (r *SoundRegistry) HashSounds() {
	fitted := make([]sfxinfo, len(r.sounds))
	copy(fitted, r.sounds)
	r.sounds = fitted

	size := len(r.sounds)
	if size == 0 {
		size = 1
	}
	r.hashTable = make([]int, size)
	for i := range r.hashTable {
		r.hashTable[i] = -1
	}
	for i := 1; i < len(r.sounds); i++ {
		s := &r.sounds[i]
		if s.Name == "" {
			continue
		}
		h := hashName(s.Name) % uint32(size)
		s.hashNext = r.hashTable[h]
		r.hashTable[h] = i
	}
}

func hashName(name string) uint32 {
	lower := strings.ToLower(name)
	var h uint32 = 5381
	for i := 0; i < len(lower); i++ {
		h = h*33 + uint32(lower[i])
	}
	return h
}

// FindSound returns the index of name, or 0 (the null sound) if it is
// not registered.
func (r *SoundRegistry) FindSound(name string) int {
	if len(r.hashTable) == 0 {
		return 0
	}
	h := hashName(name) % uint32(len(r.hashTable))
	for i := r.hashTable[h]; i != -1; i = r.sounds[i].hashNext {
		if strings.EqualFold(r.sounds[i].Name, name) {
			return i
		}
	}
	return 0
}

// FindSoundTentative returns an existing index for name via linear scan,
// or creates a lumpless tentative entry if none exists. Used when a
// caller references a sound name before its defining lump is known.
func (r *SoundRegistry) FindSoundTentative(name string) int {
	for i := 1; i < len(r.sounds); i++ {
		if strings.EqualFold(r.sounds[i].Name, name) {
			return i
		}
	}
	s := defaultSfxinfo(name)
	s.Flags |= sfxTentative
	idx := len(r.sounds)
	r.sounds = append(r.sounds, s)
	return idx
}

// AddRandomSound reserves a random-list entry, points owner's link at
// it, marks the owner as a random header, and forces near_limit = -1 so
// the limit resolves from whichever child gets picked.
func (r *SoundRegistry) AddRandomSound(owner int, choices []int) error {
	o := r.get(owner)
	if o == nil {
		return fmt.Errorf("soundengine: AddRandomSound: invalid owner %d", owner)
	}
	idx := len(r.randoms)
	cp := make([]int, len(choices))
	copy(cp, choices)
	r.randoms = append(r.randoms, FRandomSoundList{Owner: owner, Choices: cp})
	o.Link = idx
	o.Flags |= sfxRandomHeader
	o.NearLimit = -1
	return nil
}

// PickReplacement follows a random-header chain until it lands on a
// concrete (non-random-header) sfxinfo index. Iteration is capped at
// maxRandomPickDepth: authored random lists can reference other random
// headers, and nothing in the data format rules out a cycle (see
// spec §9), so this is treated as a data error rather than looping
// forever.
func (r *SoundRegistry) PickReplacement(id int) int {
	for depth := 0; depth < maxRandomPickDepth; depth++ {
		s := r.get(id)
		if s == nil || !s.IsRandomHeader() {
			return id
		}
		list := r.randoms[s.Link]
		if len(list.Choices) == 0 {
			return id
		}
		id = list.Choices[r.rng.Intn(len(list.Choices))]
	}
	return 0
}

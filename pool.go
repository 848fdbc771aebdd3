package soundengine

// chanNode is the intrusive list node wrapping one channel. Go's garbage
// collector removes the usual motivation for the index-into-an-arena
// encoding a non-GC systems-language port would want (see spec §9's
// design note); a pointer-linked list is the direct idiomatic
// translation here; the invariant it preserves is the one the spec
// actually cares about — "exactly one list" — not the pointer
// representation.
type chanNode struct {
	ch         *FSoundChan
	prev, next *chanNode
}

// chanList is one intrusive doubly-linked list (Active or Free).
type chanList struct {
	head, tail *chanNode
	size       int
}

func (l *chanList) pushFront(n *chanNode) {
	n.prev = nil
	n.next = l.head
	if l.head != nil {
		l.head.prev = n
	}
	l.head = n
	if l.tail == nil {
		l.tail = n
	}
	l.size++
}

func (l *chanList) remove(n *chanNode) {
	if n.prev != nil {
		n.prev.next = n.next
	} else {
		l.head = n.next
	}
	if n.next != nil {
		n.next.prev = n.prev
	} else {
		l.tail = n.prev
	}
	n.prev, n.next = nil, nil
	l.size--
}

// popBack removes and returns the tail node, or nil if the list is
// empty.
func (l *chanList) popBack() *chanNode {
	n := l.tail
	if n == nil {
		return nil
	}
	l.remove(n)
	return n
}

// ChannelPool owns every FSoundChan: the Active list (playing or parked)
// and the Free list (retired structs kept for reuse). A channel lives in
// exactly one list at a time; SysChannel is non-nil iff the channel is
// in Active and not Evicted.
type ChannelPool struct {
	active, free chanList
	nodeOf       map[*FSoundChan]*chanNode
}

// NewChannelPool returns an empty pool.
func NewChannelPool() *ChannelPool {
	return &ChannelPool{nodeOf: map[*FSoundChan]*chanNode{}}
}

// Alloc returns a channel linked into Active at the head (newest-first,
// per spec §5's ordering guarantee), reusing a retired struct from Free
// when one is available instead of allocating.
func (p *ChannelPool) Alloc() *FSoundChan {
	n := p.free.popBack()
	if n == nil {
		ch := &FSoundChan{}
		n = &chanNode{ch: ch}
		p.nodeOf[ch] = n
	} else {
		*n.ch = FSoundChan{}
	}
	p.active.pushFront(n)
	n.ch.pool = p
	return n.ch
}

// adopt links a channel instantiated outside Alloc (the serializer's
// object-graph reader) directly into Active, at the head. Used by
// Restore to repopulate the pool from a snapshot.
func (p *ChannelPool) adopt(ch *FSoundChan) {
	n := &chanNode{ch: ch}
	p.nodeOf[ch] = n
	p.active.pushFront(n)
	ch.pool = p
}

// Retire moves ch from Active back to Free. It is a programmer error to
// retire a channel not currently in Active.
func (p *ChannelPool) Retire(ch *FSoundChan) {
	n, ok := p.nodeOf[ch]
	if !ok {
		panic("soundengine: Retire called on an untracked channel")
	}
	p.active.remove(n)
	ch.SysChannel = nil
	ch.pool = nil
	p.free.pushFront(n)
}

// ActiveLen and FreeLen report list sizes, mainly for tests and metrics.
func (p *ChannelPool) ActiveLen() int { return p.active.size }
func (p *ChannelPool) FreeLen() int   { return p.free.size }

// ForEachActive calls fn for every active channel, head (newest) to
// tail (oldest) — the order UpdateSounds refreshes them in.
func (p *ChannelPool) ForEachActive(fn func(*FSoundChan) bool) {
	for n := p.active.head; n != nil; {
		next := n.next
		if !fn(n.ch) {
			return
		}
		n = next
	}
}

// ForEachActiveOldestFirst walks tail-first (oldest sound played,
// first), the order RestoreEvictedChannels needs to preserve original
// play order when retrying parked channels.
func (p *ChannelPool) ForEachActiveOldestFirst(fn func(*FSoundChan) bool) {
	for n := p.active.tail; n != nil; {
		prev := n.prev
		if !fn(n.ch) {
			return
		}
		n = prev
	}
}

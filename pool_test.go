package soundengine

import "testing"

func TestChannelPoolAllocRetireReuse(t *testing.T) {
	p := NewChannelPool()
	a := p.Alloc()
	a.SoundID = 1
	b := p.Alloc()
	b.SoundID = 2

	if p.ActiveLen() != 2 {
		t.Fatalf("expected 2 active, got %d", p.ActiveLen())
	}

	p.Retire(a)
	if p.ActiveLen() != 1 || p.FreeLen() != 1 {
		t.Fatalf("expected 1 active/1 free after retire, got %d/%d", p.ActiveLen(), p.FreeLen())
	}
	if a.pool != nil {
		t.Fatalf("retired channel should not still report itself linked")
	}

	c := p.Alloc() // should reuse a's retired node
	if p.FreeLen() != 0 {
		t.Fatalf("expected free list drained by reuse, got %d", p.FreeLen())
	}
	if c.SoundID != 0 {
		t.Fatalf("reused channel struct should be zeroed, got SoundID=%d", c.SoundID)
	}
}

func TestChannelPoolOrderingNewestAndOldestFirst(t *testing.T) {
	p := NewChannelPool()
	first := p.Alloc()
	first.SoundID = 1
	second := p.Alloc()
	second.SoundID = 2
	third := p.Alloc()
	third.SoundID = 3

	var newestOrder []int
	p.ForEachActive(func(c *FSoundChan) bool {
		newestOrder = append(newestOrder, c.SoundID)
		return true
	})
	if len(newestOrder) != 3 || newestOrder[0] != 3 || newestOrder[2] != 1 {
		t.Fatalf("expected newest-first order [3 2 1], got %v", newestOrder)
	}

	var oldestOrder []int
	p.ForEachActiveOldestFirst(func(c *FSoundChan) bool {
		oldestOrder = append(oldestOrder, c.SoundID)
		return true
	})
	if len(oldestOrder) != 3 || oldestOrder[0] != 1 || oldestOrder[2] != 3 {
		t.Fatalf("expected oldest-first order [1 2 3], got %v", oldestOrder)
	}
}

func TestChannelPoolRetireUntrackedPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic retiring an untracked channel")
		}
	}()
	p := NewChannelPool()
	p.Retire(&FSoundChan{})
}

package malloc

import "github.com/bnclabs/gopool/api"

// owner registration, cleanup is called with tracked when the pool
// it is registered with is cleared.
type owner struct {
	tracked interface{}
	cleanup api.Cleanup
	next    *owner
	seqno   uint64
}

// Track register cleanup for `tracked` with pool. When pool is
// cleared, or reset to a mark taken before this call, cleanup is
// called with tracked. Cleanups run in reverse order of
// registration and can register new cleanups with this pool.
// Tracked must be comparable, typically a pointer.
func (pool *Pool) Track(tracked interface{}, cleanup api.Cleanup) {
	pool.assertlive()
	if cleanup == nil {
		panicerr("%v Track(): nil cleanup", pool)
	}
	pool.pushowner(&owner{tracked: tracked, cleanup: cleanup})
}

// Untrack remove the most recent registration for `tracked`, cleanup
// is not called. Return false if tracked is not registered.
func (pool *Pool) Untrack(tracked interface{}) bool {
	pool.assertlive()
	for link := &pool.owners; *link != nil; link = &(*link).next {
		if rec := *link; rec.tracked == tracked {
			*link, rec.next = rec.next, nil
			if p, ok := tracked.(*Pool); ok && &p.track == rec {
				p.trackedby = nil
			}
			return true
		}
	}
	return false
}

// TrackIn register this pool with owner, clearing owner shall
// destroy this pool. A pool can be tracked in only one owner at a
// time.
func (pool *Pool) TrackIn(owner *Pool) {
	pool.assertlive()
	owner.assertlive()
	if pool.trackedby != nil {
		panicerr("%v already tracked in %v", pool, pool.trackedby)
	} else if owner == pool {
		panicerr("%v cannot be tracked in itself", pool)
	}
	pool.track.tracked, pool.track.cleanup = pool, destroytracked
	owner.pushowner(&pool.track)
	pool.trackedby = owner
}

//---- local functions

func (pool *Pool) pushowner(rec *owner) {
	pool.seqno++
	rec.seqno = pool.seqno
	rec.next, pool.owners = pool.owners, rec
}

// untrackowner remove registration rec.
func (pool *Pool) untrackowner(rec *owner) bool {
	for link := &pool.owners; *link != nil; link = &(*link).next {
		if *link == rec {
			*link, rec.next = rec.next, nil
			if p, ok := rec.tracked.(*Pool); ok && &p.track == rec {
				p.trackedby = nil
			}
			return true
		}
	}
	return false
}

func destroytracked(tracked interface{}) {
	pool := tracked.(*Pool)
	pool.trackedby = nil
	if !pool.dead {
		pool.Destroy()
	}
}

package malloc

import "github.com/bnclabs/gopool/api"
import "github.com/bnclabs/gopool/memtree"

// Post is a mark inside a pool, created by Pool.Mark(). Resetting
// the pool to a post releases everything allocated from the pool
// after the mark, while keeping memory allocated before the mark.
type Post struct {
	pool     *Pool
	seqno    uint64
	current  int64
	curblock *memtree.Block
	nonstd   *memtree.Block
	prev     *Post
	valid    bool
}

// Mark current state of pool, refer ResetTo().
func (pool *Pool) Mark() *Post {
	pool.assertlive()
	pool.seqno++
	post := &Post{
		pool:     pool,
		seqno:    pool.seqno,
		current:  pool.current,
		curblock: pool.curblock,
		nonstd:   pool.nonstd,
		prev:     pool.post,
		valid:    true,
	}
	pool.post = post
	return post
}

// ResetTo rewind pool to post. Cleanups registered and children
// created after the mark are run and destroyed, blocks acquired after
// the mark are handed back to context and freed memory is forgotten.
// Posts marked after this post are invalidated, while this post can
// be reset to again. Panics with api.ErrorInvalidPost if post does
// not belong to this pool or is invalidated.
func (pool *Pool) ResetTo(post *Post) {
	pool.assertlive()
	if post == nil || post.pool != pool || !post.valid {
		panic(api.ErrorInvalidPost)
	}

	for pool.ownedafter(post.seqno) || pool.childafter(post.seqno) {
		pool.runowners(post.seqno)
		pool.destroychildren(post.seqno)
	}

	for pool.nonstd != post.nonstd {
		blk := pool.nonstd
		pool.nonstd, blk.Next = blk.Next, nil
		pool.ctx.returnnonstd(blk)
	}
	pool.returnblocks(post.curblock)
	pool.curblock, pool.current = post.curblock, post.current
	pool.remnants.Reset(nil)
	pool.invalidateposts(post)
}

//---- local functions

func (pool *Pool) ownedafter(seqno uint64) bool {
	return pool.owners != nil && pool.owners.seqno > seqno
}

func (pool *Pool) childafter(seqno uint64) bool {
	return pool.child != nil && pool.child.born > seqno
}

// invalidateposts marked after `upto`, nil invalidates all posts.
func (pool *Pool) invalidateposts(upto *Post) {
	for post := pool.post; post != nil && post != upto; post = post.prev {
		post.valid = false
	}
	pool.post = upto
}

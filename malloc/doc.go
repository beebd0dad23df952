// Package malloc supplies hierarchical, pool based memory management,
// with a limited scope:
//
//   - Context is the explicit handle that obtains memory from the system
//     in standard sized blocks and caches every block given back by
//     pools, standard blocks in a free list and larger blocks in a
//     best-fit catalog.
//   - Pool is an arena, memory is bump-allocated from the pool's
//     current block and is released only when the pool is cleared or
//     destroyed. Pools form a tree, clearing a pool destroys all its
//     children and runs the cleanups registered with it.
//   - Memory handed out by a pool is never moved. It is not zeroed when
//     blocks are reused, use Calloc for zeroed memory.
//   - Memory chunks allocated by this package are always 64-bit aligned.
//   - Pools are not thread safe. Context caches are shared by all pools
//     created from it and are guarded by a single mutex, held only while
//     a block is moved in or out of the caches.
//   - Once a block is obtained from the system it is not given back
//     until the Context is destroyed.
//
// Context is configured with gosettings, refer Defaultsettings().
package malloc

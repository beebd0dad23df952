package malloc

import "fmt"
import "strings"
import "sync/atomic"

import "github.com/bnclabs/gopool/lib"
import gohumanize "github.com/dustin/go-humanize"

// Stats return context statistics.
func (ctx *Context) Stats() map[string]interface{} {
	stats := map[string]interface{}{
		"blocksize":      ctx.stdsize,
		"capacity":       ctx.capacity,
		"poison":         ctx.poison,
		"inuse":          atomic.LoadInt64(&ctx.inuse),
		"n_pools":        atomic.LoadInt64(&ctx.n_pools),
		"n_sysallocs":    atomic.LoadInt64(&ctx.n_sysallocs),
		"n_sysfrees":     atomic.LoadInt64(&ctx.n_sysfrees),
		"n_stdgets":      atomic.LoadInt64(&ctx.n_stdgets),
		"n_stdreuses":    atomic.LoadInt64(&ctx.n_stdreuses),
		"n_stdreturns":   atomic.LoadInt64(&ctx.n_stdreturns),
		"n_nonstdgets":   atomic.LoadInt64(&ctx.n_nonstdgets),
		"n_nonstdreuses": atomic.LoadInt64(&ctx.n_nonstdreuses),
		"n_nonstdrets":   atomic.LoadInt64(&ctx.n_nonstdrets),
		"n_ooms":         atomic.LoadInt64(&ctx.n_ooms),
		"n_retries":      atomic.LoadInt64(&ctx.n_retries),
	}

	mu := ctx.mutex()
	mu.Lock()
	stats["stdblocks"] = ctx.nstdblocks
	stats["stdmemory"] = ctx.nstdblocks * ctx.stdsize
	for key, val := range ctx.nonstd.Stats() {
		stats["nonstd."+key] = val
	}
	stats["nonstd.requests"] = ctx.h_nonstd.Fullstats()
	mu.Unlock()

	return stats
}

// Log context statistics, if humanize is true memory is logged in
// human readable form.
func (ctx *Context) Log(humanize bool) {
	stats := ctx.Stats()
	dohumanize := func(val interface{}) interface{} {
		if humanize {
			return humanizebytes(val.(int64))
		}
		return val.(int64)
	}

	inuse, capacity := dohumanize(stats["inuse"]), dohumanize(stats["capacity"])
	stdmem := dohumanize(stats["stdmemory"])
	nonstdmem := dohumanize(stats["nonstd.memory"])
	fmsg := "%v inuse %v of %v, cached %v in %v std blocks, %v in %v nonstd blocks\n"
	infof(fmsg, ctx.logprefix, inuse, capacity, stdmem, stats["stdblocks"],
		nonstdmem, stats["nonstd.n_spans"])

	keys := []string{
		"n_pools", "n_sysallocs", "n_sysfrees", "n_stdgets", "n_stdreuses",
		"n_stdreturns", "n_nonstdgets", "n_nonstdreuses", "n_nonstdrets",
		"n_ooms", "n_retries",
	}
	outs := []string{}
	for _, key := range keys {
		outs = append(outs, fmt.Sprintf("%v:%v", key, stats[key]))
	}
	infof("%v %v\n", ctx.logprefix, strings.Join(outs, " "))
	requests := lib.Prettystats(stats["nonstd.requests"].(map[string]interface{}), false)
	infof("%v nonstd requests %v\n", ctx.logprefix, requests)
}

// Stats return pool statistics, pool's children are not included.
func (pool *Pool) Stats() map[string]interface{} {
	pool.assertlive()
	stats := map[string]interface{}{
		"n_allocs":   pool.n_allocs,
		"n_frees":    pool.n_frees,
		"n_remnants": pool.n_remnants,
		"n_blocks":   pool.n_blocks,
		"n_nonstd":   pool.n_nonstd,
		"coalescing": pool.coalesce,
	}
	blocks, memory := int64(0), int64(0)
	for blk := pool.firstblock; blk != nil; blk = blk.Next {
		blocks, memory = blocks+1, memory+blk.Size()
	}
	stats["stdblocks"] = blocks
	nonstd, nonstdmem := int64(0), int64(0)
	for blk := pool.nonstd; blk != nil; blk = blk.Next {
		nonstd, nonstdmem = nonstd+1, nonstdmem+blk.Size()
	}
	stats["nonstdblocks"] = nonstd
	stats["memory"] = memory + nonstdmem
	stats["available"] = pool.curblock.Size() - pool.current
	children := int64(0)
	for child := pool.child; child != nil; child = child.sibling {
		children++
	}
	stats["children"] = children
	owners := int64(0)
	for rec := pool.owners; rec != nil; rec = rec.next {
		owners++
	}
	stats["owners"] = owners
	for key, val := range pool.remnants.Stats() {
		stats["remnants."+key] = val
	}
	return stats
}

func humanizebytes(val int64) string {
	if val < 0 {
		return "-" + gohumanize.Bytes(uint64(-val))
	}
	return gohumanize.Bytes(uint64(val))
}

package malloc

import "math"

import s "github.com/bnclabs/gosettings"
import sigar "github.com/cloudfoundry/gosigar"

// Alignment of every allocation, amounts are rounded up to a multiple
// of Alignment.
const Alignment = int64(8)

// Stdblocksize default size for standard blocks.
const Stdblocksize = int64(8192)

// Minblocksize smaller block sizes are raised to this size.
const Minblocksize = int64(256)

// Defaultblocksize can be supplied as "blocksize" to pick Stdblocksize.
const Defaultblocksize = int64(0)

// Sizetagsize trailing bytes reserved for size tag in coalescing pools.
const Sizetagsize = int64(8)

// Maxcapacity used when system memory cannot be probed.
const Maxcapacity = int64(1024 * 1024 * 1024 * 1024) // 1TB

// Defaultsettings for Context.
//
// "name" (string, default: "context")
//		Name of the context, used as log prefix.
//
// "blocksize" (int64, default: <Stdblocksize>)
//		Size of standard blocks, including block header. Values less
//		than Minblocksize are raised to Minblocksize and
//		Defaultblocksize maps to Stdblocksize.
//
// "capacity" (int64, default: <total system memory>)
//		Maximum memory that can be obtained from the system. Exceeding
//		this limit invokes the context's OOMHandler. Values larger
//		than total system memory are lowered to total system memory.
//
// "poison" (bool, default: false, true with -tags debug)
//		Fill blocks given back to the context with 0xff and verify,
//		when the block is reused, that nothing wrote into it.
func Defaultsettings() s.Settings {
	return s.Settings{
		"name":      "context",
		"blocksize": Stdblocksize,
		"capacity":  sysmemlimit(),
		"poison":    debugmode,
	}
}

// sysmemlimit return total system memory, Maxcapacity if it cannot
// be probed.
func sysmemlimit() int64 {
	total, _, _ := getsysmem()
	if total == 0 || total > uint64(math.MaxInt64) {
		return Maxcapacity
	}
	return int64(total)
}

func clampcapacity(capacity int64) int64 {
	if limit := sysmemlimit(); capacity > limit {
		return limit
	}
	return capacity
}

func getsysmem() (total, used, free uint64) {
	mem := sigar.Mem{}
	if err := mem.Get(); err != nil {
		return 0, 0, 0
	}
	return mem.Total, mem.Used, mem.Free
}

func clampblocksize(size int64) int64 {
	if size == Defaultblocksize {
		return Stdblocksize
	} else if size < Minblocksize {
		return Minblocksize
	}
	return align(size)
}

package malloc

import "fmt"

import "github.com/zeebo/xxh3"

// poison byte for blocks cached by the context.
const poisonbyte = byte(0xff)

// align amount to the next multiple of Alignment.
func align(amount int64) int64 {
	return (amount + Alignment - 1) &^ (Alignment - 1)
}

// poisonblock fill mem with poisonbyte and return its checksum.
func poisonblock(mem []byte) uint64 {
	if len(mem) > 0 {
		mem[0] = poisonbyte
		for i := 1; i < len(mem); i *= 2 {
			copy(mem[i:], mem[:i])
		}
	}
	return xxh3.Hash(mem)
}

func panicerr(fmsg string, args ...interface{}) {
	panic(fmt.Errorf(fmsg, args...))
}

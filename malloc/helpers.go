package malloc

import "fmt"

import "github.com/bnclabs/gopool/api"
import "github.com/bnclabs/gopool/lib"

// Memdup copy src into memory allocated from pool.
func (pool *Pool) Memdup(src []byte) []byte {
	mem := pool.Alloc(int64(len(src)))
	copy(mem, src)
	return mem
}

// Strdup copy str into memory allocated from pool. Returned string
// is valid as long as pool's memory is valid.
func (pool *Pool) Strdup(str string) string {
	mem := pool.Alloc(int64(len(str)))
	copy(mem, str)
	return lib.Bytes2str(mem)
}

// Strndup same as Strdup, but copies at most n bytes of str, stopping
// at the first zero byte.
func (pool *Pool) Strndup(str string, n int) string {
	if n < 0 {
		panicerr("Strndup(%v): %w", n, api.ErrorInvalidSize)
	}
	if len(str) > n {
		str = str[:n]
	}
	for i := 0; i < len(str); i++ {
		if str[i] == 0 {
			str = str[:i]
			break
		}
	}
	return pool.Strdup(str)
}

// Sprintf format into memory allocated from pool.
func (pool *Pool) Sprintf(format string, args ...interface{}) string {
	return pool.Strdup(fmt.Sprintf(format, args...))
}

// Version of this library.
func Version() (major, minor, patch int) {
	return api.MajorVersion, api.MinorVersion, api.PatchVersion
}

// Versionstr return library version as "major.minor.patch".
func Versionstr() string {
	major, minor, patch := Version()
	return fmt.Sprintf("%v.%v.%v", major, minor, patch)
}

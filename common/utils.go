package common

import (
	"crypto/rand"
	"math/big"
	"strings"

	ethcommon "github.com/ethereum/go-ethereum/common"
)

// Trim 0x or 0X prefix off the string.
func Trim0xPrefix(str string) string {
	s := strings.TrimPrefix(str, "0x")
	return strings.TrimPrefix(s, "0X")
}

func Prepend0xPrefix(str string) string {
	if strings.HasPrefix(str, "0x") || strings.HasPrefix(str, "0X") {
		return str
	}
	return "0x" + str
}

// shorten shortens a hex string so that both sides have n characters and
// the rest is replaced with "..."
func shorten(hexStr string, n int) string {
	str := Trim0xPrefix(hexStr)

	if len(str) <= n*2 {
		return Prepend0xPrefix(str)
	}
	return Prepend0xPrefix(str[:n] + "..." + str[len(str)-n:])
}

// ShortHash shortens h for log lines.
func ShortHash(h ethcommon.Hash) string {
	return shorten(h.Hex(), 6)
}

// BigIntClone copies bigInt, nil stays nil.
func BigIntClone(bigInt *big.Int) *big.Int {
	if bigInt == nil {
		return nil
	}
	return new(big.Int).Set(bigInt)
}

// BigIntString prints bigInt in base 10, nil prints as 0.
func BigIntString(bigInt *big.Int) string {
	if bigInt == nil {
		return "0"
	}
	return bigInt.String()
}

// RandBytes32 generates [32]byte with random values
func RandBytes32() [32]byte {
	var b [32]byte
	if _, err := rand.Read(b[:]); err != nil {
		return [32]byte{}
	}
	return b
}

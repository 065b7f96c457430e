package reserve

import (
	"encoding/hex"
	"strconv"

	"reservecore/crypto"
)

var (
	curveKey         = []byte("reserve/curve")
	ownerKey         = []byte("reserve/owner")
	distributionKey  = []byte("reserve/distribution")
	stabilizationKey = []byte("reserve/stabilization")
	cooldownKey      = []byte("reserve/cooldown")
	loanPrefix       = []byte("reserve/loan/")
)

func loanCountKey(addr crypto.Address) []byte {
	encoded := hex.EncodeToString(addr.Bytes())
	buf := make([]byte, 0, len(loanPrefix)+len(encoded)+len("/count"))
	buf = append(buf, loanPrefix...)
	buf = append(buf, encoded...)
	buf = append(buf, "/count"...)
	return buf
}

func loanSlotKey(addr crypto.Address, slot uint64) []byte {
	encoded := hex.EncodeToString(addr.Bytes())
	index := strconv.FormatUint(slot, 10)
	buf := make([]byte, 0, len(loanPrefix)+len(encoded)+1+len(index))
	buf = append(buf, loanPrefix...)
	buf = append(buf, encoded...)
	buf = append(buf, '/')
	buf = append(buf, index...)
	return buf
}

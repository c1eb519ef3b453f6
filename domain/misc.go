package domain

import (
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"golang.org/x/xerrors"
)

var (
	Big0   = big.NewInt(0)
	Big1   = big.NewInt(1)
	Big10  = big.NewInt(10)
	Big100 = big.NewInt(100)

	// WeiPerToken scales a whole-token price into the settlement token's
	// smallest unit.
	WeiPerToken = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)
)

type Address string

const EmptyAddress = Address("0x0000000000000000000000000000000000000000")

func (a Address) ToLower() Address {
	return Address(strings.ToLower(string(a)))
}

func (a Address) ToLowerStr() string {
	return strings.ToLower(string(a))
}

func (a Address) IsEmpty() bool {
	return len(a) == 0 || a.Equals(EmptyAddress)
}

func (a Address) Equals(b Address) bool {
	return a.ToLowerStr() == b.ToLowerStr()
}

type TokenId string

func (i TokenId) String() string {
	return string(i)
}

func (i TokenId) ToHexString() (string, error) {
	id, ok := new(big.Int).SetString(i.String(), 10)
	if !ok {
		return "", xerrors.Errorf("invalid id %s", i)
	}
	return fmt.Sprintf("%064x", id), nil
}

func (i TokenId) ToUint64() (uint64, error) {
	return strconv.ParseUint(string(i), 10, 64)
}

func TokenIdFromUint64(v uint64) TokenId {
	return TokenId(strconv.FormatUint(v, 10))
}

// Table is a mongo collection name
type Table string

const (
	TableEvents Table = "events"
)

func ToBigInt(nums []string) ([]*big.Int, error) {
	var bns []*big.Int
	for _, n := range nums {
		bn, ok := new(big.Int).SetString(n, 10)
		if !ok {
			return nil, fmt.Errorf("bad number %q: %w", n, ErrInvalidArgument)
		}
		bns = append(bns, bn)
	}
	return bns, nil
}

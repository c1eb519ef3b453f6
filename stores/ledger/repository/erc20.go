package repository

import (
	"fmt"
	"math/big"

	"github.com/talmarket/goapi/base/ctx"
	"github.com/talmarket/goapi/domain"
	"github.com/talmarket/goapi/domain/keys"
	"github.com/talmarket/goapi/domain/ledger"
	"github.com/talmarket/goapi/service/statedb"
)

type fungible struct {
	state *statedb.StateDB
	// symbol namespaces the ledger's keys so several fungible tokens can
	// share one state store
	symbol string
}

// NewFungible builds one fungible settlement ledger over the shared state
// store. Writes stay in the state write buffer; the calling engine commits.
func NewFungible(state *statedb.StateDB, symbol string) ledger.Fungible {
	return &fungible{
		state:  state,
		symbol: symbol,
	}
}

func (im *fungible) balanceKey(account domain.Address) string {
	return keys.CustomKey("/", "erc20", im.symbol, "balance", account.ToLowerStr())
}

func (im *fungible) allowanceKey(owner, spender domain.Address) string {
	return keys.CustomKey("/", "erc20", im.symbol, "allowance", owner.ToLowerStr(), spender.ToLowerStr())
}

func (im *fungible) getBig(key string) (*big.Int, error) {
	raw, err := im.state.Get(key)
	if err == statedb.ErrNotFound {
		return new(big.Int), nil
	} else if err != nil {
		return nil, err
	}
	v, ok := new(big.Int).SetString(string(raw), 10)
	if !ok {
		return nil, fmt.Errorf("corrupt balance record at %s", key)
	}
	return v, nil
}

func (im *fungible) putBig(key string, v *big.Int) {
	im.state.Put(key, []byte(v.String()))
}

func (im *fungible) BalanceOf(c ctx.Ctx, account domain.Address) (*big.Int, error) {
	return im.getBig(im.balanceKey(account))
}

func (im *fungible) Transfer(c ctx.Ctx, from, to domain.Address, amount *big.Int) error {
	if to.IsEmpty() {
		return domain.ErrInvalidAddress
	}
	if amount == nil || amount.Sign() < 0 {
		return domain.ErrZeroAmount
	}
	fromBal, err := im.getBig(im.balanceKey(from))
	if err != nil {
		return err
	}
	if fromBal.Cmp(amount) < 0 {
		return domain.ErrInsufficientSettlementBalance
	}
	// debit lands before the credit side is read, so a self-transfer nets
	// to zero instead of double-counting the shared record
	im.putBig(im.balanceKey(from), new(big.Int).Sub(fromBal, amount))
	toBal, err := im.getBig(im.balanceKey(to))
	if err != nil {
		return err
	}
	im.putBig(im.balanceKey(to), new(big.Int).Add(toBal, amount))
	return nil
}

func (im *fungible) Approve(c ctx.Ctx, owner, spender domain.Address, amount *big.Int) error {
	if spender.IsEmpty() {
		return domain.ErrInvalidAddress
	}
	if amount == nil || amount.Sign() < 0 {
		return domain.ErrZeroAmount
	}
	im.putBig(im.allowanceKey(owner, spender), amount)
	return nil
}

func (im *fungible) Allowance(c ctx.Ctx, owner, spender domain.Address) (*big.Int, error) {
	return im.getBig(im.allowanceKey(owner, spender))
}

func (im *fungible) TransferFrom(c ctx.Ctx, spender, from, to domain.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return domain.ErrZeroAmount
	}
	if !spender.Equals(from) {
		allowance, err := im.getBig(im.allowanceKey(from, spender))
		if err != nil {
			return err
		}
		if allowance.Cmp(amount) < 0 {
			return domain.ErrInsufficientAllowance
		}
		im.putBig(im.allowanceKey(from, spender), new(big.Int).Sub(allowance, amount))
	}
	return im.Transfer(c, from, to, amount)
}

func (im *fungible) Mint(c ctx.Ctx, to domain.Address, amount *big.Int) error {
	if to.IsEmpty() {
		return domain.ErrInvalidAddress
	}
	if amount == nil || amount.Sign() <= 0 {
		return domain.ErrZeroAmount
	}
	bal, err := im.getBig(im.balanceKey(to))
	if err != nil {
		return err
	}
	im.putBig(im.balanceKey(to), new(big.Int).Add(bal, amount))
	return nil
}

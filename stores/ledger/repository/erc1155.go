package repository

import (
	"bytes"
	"fmt"
	"math/big"
	"sync"

	"github.com/talmarket/goapi/base/ctx"
	"github.com/talmarket/goapi/base/log"
	"github.com/talmarket/goapi/domain"
	"github.com/talmarket/goapi/domain/keys"
	"github.com/talmarket/goapi/domain/ledger"
	"github.com/talmarket/goapi/service/statedb"
)

var (
	ErrReceiverRejected = fmt.Errorf("receiver rejected transfer: %w", domain.ErrPreconditionFailed)
	ErrLengthMismatch   = fmt.Errorf("ids and amounts length mismatch: %w", domain.ErrInvalidArgument)
	ErrNotApproved      = fmt.Errorf("operator not approved: %w", domain.ErrPermissionDenied)
)

type multiToken struct {
	state *statedb.StateDB

	mu        sync.RWMutex
	receivers map[domain.Address]ledger.Receiver
}

// NewMultiToken builds the multi-token custody ledger over the shared state
// store. Writes stay in the state write buffer; the calling engine commits.
func NewMultiToken(state *statedb.StateDB) ledger.MultiToken {
	return &multiToken{
		state:     state,
		receivers: map[domain.Address]ledger.Receiver{},
	}
}

func (im *multiToken) balanceKey(account domain.Address, id domain.TokenId) string {
	return keys.CustomKey("/", "erc1155", "balance", account.ToLowerStr(), id.String())
}

func (im *multiToken) approvalKey(owner, operator domain.Address) string {
	return keys.CustomKey("/", "erc1155", "approval", owner.ToLowerStr(), operator.ToLowerStr())
}

func (im *multiToken) getBig(key string) (*big.Int, error) {
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

func (im *multiToken) putBig(key string, v *big.Int) {
	im.state.Put(key, []byte(v.String()))
}

func (im *multiToken) BalanceOf(c ctx.Ctx, account domain.Address, id domain.TokenId) (*big.Int, error) {
	return im.getBig(im.balanceKey(account, id))
}

func (im *multiToken) BalanceOfBatch(c ctx.Ctx, accounts []domain.Address, ids []domain.TokenId) ([]*big.Int, error) {
	if len(accounts) != len(ids) {
		return nil, ErrLengthMismatch
	}
	res := make([]*big.Int, 0, len(accounts))
	for i := range accounts {
		v, err := im.getBig(im.balanceKey(accounts[i], ids[i]))
		if err != nil {
			return nil, err
		}
		res = append(res, v)
	}
	return res, nil
}

func (im *multiToken) SetApprovalForAll(c ctx.Ctx, owner, operator domain.Address, approved bool) error {
	if approved {
		im.state.Put(im.approvalKey(owner, operator), []byte("1"))
	} else {
		im.state.Delete(im.approvalKey(owner, operator))
	}
	return nil
}

func (im *multiToken) IsApprovedForAll(c ctx.Ctx, owner, operator domain.Address) (bool, error) {
	raw, err := im.state.Get(im.approvalKey(owner, operator))
	if err == statedb.ErrNotFound {
		return false, nil
	} else if err != nil {
		return false, err
	}
	return bytes.Equal(raw, []byte("1")), nil
}

func (im *multiToken) SafeTransferFrom(c ctx.Ctx, operator, from, to domain.Address, id domain.TokenId, amount *big.Int, data []byte) error {
	if to.IsEmpty() {
		return domain.ErrInvalidAddress
	}
	if amount == nil || amount.Sign() < 0 {
		return domain.ErrZeroAmount
	}
	if err := im.checkOperator(c, operator, from); err != nil {
		return err
	}
	if err := im.move(c, from, to, id, amount); err != nil {
		return err
	}

	// custody records are updated before the receiver runs, matching the
	// checks-effects-interactions order of the on-chain ledger
	if r := im.receiverOf(to); r != nil {
		magic, err := r.OnTokenReceived(c, operator, from, id, amount, data)
		if err != nil {
			return err
		}
		if magic != ledger.ReceivedMagic {
			return ErrReceiverRejected
		}
	}
	return nil
}

func (im *multiToken) SafeBatchTransferFrom(c ctx.Ctx, operator, from, to domain.Address, ids []domain.TokenId, amounts []*big.Int, data []byte) error {
	if to.IsEmpty() {
		return domain.ErrInvalidAddress
	}
	if len(ids) != len(amounts) {
		return ErrLengthMismatch
	}
	if err := im.checkOperator(c, operator, from); err != nil {
		return err
	}
	for i := range ids {
		if amounts[i] == nil || amounts[i].Sign() < 0 {
			return domain.ErrZeroAmount
		}
		if err := im.move(c, from, to, ids[i], amounts[i]); err != nil {
			return err
		}
	}

	if r := im.receiverOf(to); r != nil {
		magic, err := r.OnTokenBatchReceived(c, operator, from, ids, amounts, data)
		if err != nil {
			return err
		}
		if magic != ledger.BatchReceivedMagic {
			return ErrReceiverRejected
		}
	}
	return nil
}

func (im *multiToken) Mint(c ctx.Ctx, to domain.Address, id domain.TokenId, amount *big.Int) error {
	if to.IsEmpty() {
		return domain.ErrInvalidAddress
	}
	if amount == nil || amount.Sign() <= 0 {
		return domain.ErrZeroAmount
	}
	bal, err := im.getBig(im.balanceKey(to, id))
	if err != nil {
		return err
	}
	im.putBig(im.balanceKey(to, id), new(big.Int).Add(bal, amount))
	return nil
}

func (im *multiToken) RegisterReceiver(addr domain.Address, r ledger.Receiver) {
	im.mu.Lock()
	defer im.mu.Unlock()
	im.receivers[addr.ToLower()] = r
}

func (im *multiToken) receiverOf(addr domain.Address) ledger.Receiver {
	im.mu.RLock()
	defer im.mu.RUnlock()
	return im.receivers[addr.ToLower()]
}

func (im *multiToken) checkOperator(c ctx.Ctx, operator, from domain.Address) error {
	if operator.Equals(from) {
		return nil
	}
	approved, err := im.IsApprovedForAll(c, from, operator)
	if err != nil {
		return err
	}
	if !approved {
		c.WithFields(log.Fields{
			"operator": operator,
			"from":     from,
		}).Warn("transfer by unapproved operator")
		return ErrNotApproved
	}
	return nil
}

func (im *multiToken) move(c ctx.Ctx, from, to domain.Address, id domain.TokenId, amount *big.Int) error {
	fromBal, err := im.getBig(im.balanceKey(from, id))
	if err != nil {
		return err
	}
	if fromBal.Cmp(amount) < 0 {
		return domain.ErrInsufficientTokenBalance
	}
	// debit lands before the credit side is read, so a self-transfer nets
	// to zero instead of double-counting the shared record
	im.putBig(im.balanceKey(from, id), new(big.Int).Sub(fromBal, amount))
	toBal, err := im.getBig(im.balanceKey(to, id))
	if err != nil {
		return err
	}
	im.putBig(im.balanceKey(to, id), new(big.Int).Add(toBal, amount))
	return nil
}

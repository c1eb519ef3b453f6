package ledger

import (
	"math/big"

	"github.com/talmarket/goapi/base/ctx"
	"github.com/talmarket/goapi/domain"
)

// Magic values a token receiver returns to accept incoming transfers,
// mirroring the ERC1155 receiver acceptance handshake.
var (
	ReceivedMagic      = [4]byte{0xf2, 0x3a, 0x6e, 0x61}
	BatchReceivedMagic = [4]byte{0xbc, 0x19, 0x7c, 0x81}
)

// Receiver is implemented by contract accounts that accept multi-token
// transfers. The ledger invokes it synchronously during SafeTransferFrom,
// which makes it the reentrancy surface engines must guard against.
type Receiver interface {
	OnTokenReceived(c ctx.Ctx, operator, from domain.Address, id domain.TokenId, amount *big.Int, data []byte) ([4]byte, error)
	OnTokenBatchReceived(c ctx.Ctx, operator, from domain.Address, ids []domain.TokenId, amounts []*big.Int, data []byte) ([4]byte, error)
}

// MultiToken is the ERC1155-shaped authoritative custody ledger.
type MultiToken interface {
	BalanceOf(c ctx.Ctx, account domain.Address, id domain.TokenId) (*big.Int, error)
	BalanceOfBatch(c ctx.Ctx, accounts []domain.Address, ids []domain.TokenId) ([]*big.Int, error)
	SetApprovalForAll(c ctx.Ctx, owner, operator domain.Address, approved bool) error
	IsApprovedForAll(c ctx.Ctx, owner, operator domain.Address) (bool, error)
	SafeTransferFrom(c ctx.Ctx, operator, from, to domain.Address, id domain.TokenId, amount *big.Int, data []byte) error
	SafeBatchTransferFrom(c ctx.Ctx, operator, from, to domain.Address, ids []domain.TokenId, amounts []*big.Int, data []byte) error
	Mint(c ctx.Ctx, to domain.Address, id domain.TokenId, amount *big.Int) error

	// RegisterReceiver binds a contract account address to its in-process
	// receiver callback. Transfers to unregistered addresses are
	// record-only accepted.
	RegisterReceiver(addr domain.Address, r Receiver)
}

// Fungible is the ERC20-shaped settlement/payment ledger.
type Fungible interface {
	BalanceOf(c ctx.Ctx, account domain.Address) (*big.Int, error)
	Transfer(c ctx.Ctx, from, to domain.Address, amount *big.Int) error
	Approve(c ctx.Ctx, owner, spender domain.Address, amount *big.Int) error
	Allowance(c ctx.Ctx, owner, spender domain.Address) (*big.Int, error)
	TransferFrom(c ctx.Ctx, spender, from, to domain.Address, amount *big.Int) error
	Mint(c ctx.Ctx, to domain.Address, amount *big.Int) error
}

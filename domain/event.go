package domain

import (
	"time"

	"github.com/talmarket/goapi/base/ctx"
	"github.com/talmarket/goapi/base/ptr"
)

type EventName string

const (
	EventNFTTransfer          EventName = "NFTTransfer"
	EventBuyTALTokenByBNB     EventName = "BuyTALTokenByBNB"
	EventBuyTALTokenByUSDT    EventName = "BuyTALTokenByUSDT"
	EventBuyTALTokenByCash    EventName = "BuyTALTokenByCash"
	EventOwnershipTransferred EventName = "OwnershipTransferred"
)

type TransferType string

const (
	TransferTypeList   TransferType = "list"
	TransferTypeBuy    TransferType = "buy"
	TransferTypeCancel TransferType = "cancel"
)

// NFTTransferEvent is the settlement record of one marketplace transition.
// Field order and naming are part of the external contract; indexers match
// on them.
type NFTTransferEvent struct {
	TokenID              TokenId      `json:"tokenID" bson:"tokenID"`
	From                 Address      `json:"from" bson:"from"`
	To                   Address      `json:"to" bson:"to"`
	UnitPrice            string       `json:"unitPrice" bson:"unitPrice"`
	Amount               string       `json:"amount" bson:"amount"`
	SellerAmount         string       `json:"sellerAmount" bson:"sellerAmount"`
	FeeAmount            string       `json:"feeAmount" bson:"feeAmount"`
	FeePercentPrimary    int64        `json:"feePercentPrimary" bson:"feePercentPrimary"`
	FeePercentSecondhand int64        `json:"feePercentSecondhand" bson:"feePercentSecondhand"`
	TransferType         TransferType `json:"transferType" bson:"transferType"`
}

// PresaleBuyEvent records one presale purchase. PaymentAmount is empty for
// the off-chain-settled cash rail.
type PresaleBuyEvent struct {
	Buyer         Address `json:"buyer" bson:"buyer"`
	Amount        string  `json:"amount" bson:"amount"`
	PaymentAmount string  `json:"paymentAmount,omitempty" bson:"paymentAmount,omitempty"`
}

type OwnershipTransferredEvent struct {
	PreviousOwner Address `json:"previousOwner" bson:"previousOwner"`
	NewOwner      Address `json:"newOwner" bson:"newOwner"`
}

type Event struct {
	Id        string    `json:"id" bson:"_id"`
	Name      EventName `json:"name" bson:"name"`
	Timestamp time.Time `json:"timestamp" bson:"timestamp"`

	NFTTransfer *NFTTransferEvent          `json:"nftTransfer,omitempty" bson:"nftTransfer,omitempty"`
	PresaleBuy  *PresaleBuyEvent           `json:"presaleBuy,omitempty" bson:"presaleBuy,omitempty"`
	Ownership   *OwnershipTransferredEvent `json:"ownership,omitempty" bson:"ownership,omitempty"`
}

type EventFindAllOptions struct {
	Name    *EventName
	Account *Address
	Limit   *int
}

type EventFindAllOptionsFunc func(*EventFindAllOptions) error

func GetEventFindAllOptions(opts ...EventFindAllOptionsFunc) (EventFindAllOptions, error) {
	res := EventFindAllOptions{}

	for _, opt := range opts {
		if err := opt(&res); err != nil {
			return res, err
		}
	}

	return res, nil
}

func EventWithName(name EventName) EventFindAllOptionsFunc {
	return func(options *EventFindAllOptions) error {
		options.Name = &name
		return nil
	}
}

func EventWithAccount(account Address) EventFindAllOptionsFunc {
	return func(options *EventFindAllOptions) error {
		lowered := account.ToLower()
		options.Account = &lowered
		return nil
	}
}

func EventWithLimit(limit int) EventFindAllOptionsFunc {
	return func(options *EventFindAllOptions) error {
		options.Limit = ptr.Int(limit)
		return nil
	}
}

type EventRepo interface {
	Insert(c ctx.Ctx, event *Event) error
	FindAll(c ctx.Ctx, opts ...EventFindAllOptionsFunc) ([]*Event, error)
}

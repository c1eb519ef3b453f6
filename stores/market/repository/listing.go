package repository

import (
	"encoding/json"
	"math/big"

	"github.com/talmarket/goapi/base/ctx"
	"github.com/talmarket/goapi/domain"
	"github.com/talmarket/goapi/domain/keys"
	"github.com/talmarket/goapi/domain/market"
	"github.com/talmarket/goapi/service/statedb"
)

type listingImpl struct {
	state *statedb.StateDB
}

func NewListingRepo(state *statedb.StateDB) market.ListingRepo {
	return &listingImpl{state}
}

func (im *listingImpl) recordKey(book market.Book, id market.ListingId) string {
	return keys.CustomKey("/", "market", "listing", string(book), id.Seller.ToLowerStr(), id.TokenId.String())
}

func (im *listingImpl) indexKey(book market.Book) string {
	return keys.CustomKey("/", "market", "index", string(book))
}

func (im *listingImpl) FindOne(c ctx.Ctx, book market.Book, id market.ListingId) (*market.Listing, error) {
	raw, err := im.state.Get(im.recordKey(book, id))
	if err == statedb.ErrNotFound {
		// never-written keys read back as a cleared record
		return clearedListing(id.TokenId), nil
	} else if err != nil {
		return nil, err
	}
	res := &market.Listing{}
	if err := json.Unmarshal(raw, res); err != nil {
		c.WithField("err", err).Error("json.Unmarshal failed")
		return nil, err
	}
	return res, nil
}

func (im *listingImpl) Upsert(c ctx.Ctx, book market.Book, id market.ListingId, listing *market.Listing) error {
	raw, err := json.Marshal(listing)
	if err != nil {
		c.WithField("err", err).Error("json.Marshal failed")
		return err
	}
	im.state.Put(im.recordKey(book, id), raw)
	return nil
}

func (im *listingImpl) Clear(c ctx.Ctx, book market.Book, id market.ListingId) error {
	return im.Upsert(c, book, id, clearedListing(id.TokenId))
}

func (im *listingImpl) IndexKeys(c ctx.Ctx, book market.Book) ([]market.ListingId, error) {
	raw, err := im.state.Get(im.indexKey(book))
	if err == statedb.ErrNotFound {
		return nil, nil
	} else if err != nil {
		return nil, err
	}
	var ids []market.ListingId
	if err := json.Unmarshal(raw, &ids); err != nil {
		c.WithField("err", err).Error("json.Unmarshal failed")
		return nil, err
	}
	return ids, nil
}

func (im *listingImpl) AppendIndex(c ctx.Ctx, book market.Book, id market.ListingId) error {
	ids, err := im.IndexKeys(c, book)
	if err != nil {
		return err
	}
	return im.storeIndex(c, book, append(ids, id))
}

func (im *listingImpl) RemoveIndex(c ctx.Ctx, book market.Book, id market.ListingId) error {
	ids, err := im.IndexKeys(c, book)
	if err != nil {
		return err
	}
	for i := range ids {
		if ids[i].Seller.Equals(id.Seller) && ids[i].TokenId == id.TokenId {
			// swap with last then truncate, order is not preserved
			ids[i] = ids[len(ids)-1]
			return im.storeIndex(c, book, ids[:len(ids)-1])
		}
	}
	return nil
}

func (im *listingImpl) storeIndex(c ctx.Ctx, book market.Book, ids []market.ListingId) error {
	raw, err := json.Marshal(ids)
	if err != nil {
		c.WithField("err", err).Error("json.Marshal failed")
		return err
	}
	im.state.Put(im.indexKey(book), raw)
	return nil
}

func clearedListing(id domain.TokenId) *market.Listing {
	return &market.Listing{
		UnitPrice:       new(big.Int),
		Seller:          "",
		Amount:          new(big.Int),
		UnlistingAmount: new(big.Int),
		TokenId:         id,
	}
}

package repository

import (
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/talmarket/goapi/base/ctx"
	"github.com/talmarket/goapi/domain"
	"github.com/talmarket/goapi/service/query"
)

const defaultLimit = 100

type impl struct {
	q query.Mongo
}

func New(q query.Mongo) domain.EventRepo {
	return &impl{q}
}

func (im *impl) Insert(c ctx.Ctx, event *domain.Event) error {
	if event.Id == "" {
		event.Id = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	if err := im.q.Insert(c, domain.TableEvents, event); err != nil {
		c.WithField("err", err).Error("q.Insert failed")
		return err
	}
	return nil
}

func (im *impl) FindAll(c ctx.Ctx, optFns ...domain.EventFindAllOptionsFunc) ([]*domain.Event, error) {
	opts, err := domain.GetEventFindAllOptions(optFns...)
	if err != nil {
		return nil, err
	}

	qry := bson.M{}
	if opts.Name != nil {
		qry["name"] = *opts.Name
	}
	if opts.Account != nil {
		acct := *opts.Account
		qry["$or"] = bson.A{
			bson.M{"nftTransfer.from": acct},
			bson.M{"nftTransfer.to": acct},
			bson.M{"presaleBuy.buyer": acct},
			bson.M{"ownership.newOwner": acct},
		}
	}

	limit := defaultLimit
	if opts.Limit != nil {
		limit = *opts.Limit
	}

	res := []*domain.Event{}
	if err := im.q.Search(c, domain.TableEvents, 0, limit, "-timestamp", qry, &res); err != nil {
		c.WithField("err", err).Error("q.Search failed")
		return nil, err
	}
	return res, nil
}

package query

/*
	Description:
		Package `query` provides interface for querying mongo db
		This package is basically nothing but wrap https://github.com/mongodb/mongo-go-driver
		so please read document at following link for any detail
		https://godoc.org/go.mongodb.org/mongo-driver/mongo

	Use Case:
		Please Read the testcases for usage of each method
*/

import (
	"fmt"

	"github.com/talmarket/goapi/base/ctx"
	"github.com/talmarket/goapi/domain"
)

var (
	// ErrNotFound is mongo document not found error
	ErrNotFound = fmt.Errorf("document not found")

	// ErrDuplicateKey is an error when violating unique index
	ErrDuplicateKey = fmt.Errorf("duplicate key")
)

// Mongo abstract the mongo layer.
type Mongo interface {
	// Insert inserts a new document to the table
	Insert(context ctx.Ctx, table domain.Table, insert interface{}) error

	// FindOne get data from the table
	FindOne(context ctx.Ctx, table domain.Table, query, result interface{}) error

	// Count return counting for matched entry in the table
	// https://docs.mongodb.com/manual/reference/method/db.collection.countDocuments
	Count(context ctx.Ctx, table domain.Table, selector interface{}) (n int, err error)

	// Upsert update an entry , if the selector is already exist.
	// Upsert insert an entry , if the selector is not exist.
	Upsert(context ctx.Ctx, table domain.Table, selector, update interface{}) error

	// Search sort order by `sort` argument (ex "timestamp" ascending, or "-timestamp" descending)
	// if `sort` is "", the sort action is skipped, and the MongoDB does not guarantee the order of query results.
	Search(context ctx.Ctx, table domain.Table, offset, limit int, sort string, query, results interface{}) error

	// Remove remove an entry from the table
	// Return ErrNotFound if selector does not match any documents
	Remove(context ctx.Ctx, table domain.Table, selector interface{}) error

	// RemoveAll remove all entries matching the selector from the table
	RemoveAll(context ctx.Ctx, table domain.Table, selector interface{}) (removedCnt int64, err error)
}

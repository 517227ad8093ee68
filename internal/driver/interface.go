package driver

import (
	"context"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// Tx is the slice of a managed transaction the core needs. All statements run
// through one Tx commit or roll back together.
type Tx interface {
	Run(ctx context.Context, query string, params map[string]interface{}) ([]*neo4j.Record, error)
}

type GraphDriver interface {
	ExecuteQuery(ctx context.Context, query string, params map[string]interface{}) (neo4j.EagerResult, error)
	ExecuteWrite(ctx context.Context, work func(tx Tx) error) error
	BuildIndices(ctx context.Context) error
	Close(ctx context.Context) error
}

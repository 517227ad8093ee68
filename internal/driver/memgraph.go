package driver

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/agenthands/canon/internal/config"
	"github.com/agenthands/canon/internal/logger"
)

const connectTimeout = 10 * time.Second

type MemgraphDriver struct {
	Driver   neo4j.DriverWithContext
	Database string
	log      *logger.Logger
}

func NewMemgraphDriver(cfg config.MemgraphConfig, log *logger.Logger) (*MemgraphDriver, error) {
	maxPool := cfg.MaxPool
	if maxPool <= 0 {
		maxPool = 50
	}
	driver, err := neo4j.NewDriverWithContext(cfg.URI, neo4j.BasicAuth(cfg.User, cfg.Password, ""), func(c *neo4j.Config) {
		c.MaxConnectionPoolSize = maxPool
		c.SocketConnectTimeout = connectTimeout
	})
	if err != nil {
		return nil, errors.Wrap(err, "memgraph: init driver")
	}

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()
	if err := driver.VerifyConnectivity(ctx); err != nil {
		_ = driver.Close(ctx)
		return nil, errors.WithHint(errors.Wrap(err, "memgraph: verify connectivity"), "check MEMGRAPH_URI and credentials")
	}

	log = log.With("client", "Memgraph")
	log.Info("Connected to Memgraph", "uri", cfg.URI)
	return &MemgraphDriver{Driver: driver, Database: cfg.Database, log: log}, nil
}

func (d *MemgraphDriver) Close(ctx context.Context) error {
	return d.Driver.Close(ctx)
}

func (d *MemgraphDriver) ExecuteQuery(ctx context.Context, query string, params map[string]interface{}) (neo4j.EagerResult, error) {
	var opts []neo4j.ExecuteQueryConfigurationOption
	if d.Database != "" {
		opts = append(opts, neo4j.ExecuteQueryWithDatabase(d.Database))
	}
	result, err := neo4j.ExecuteQuery(ctx, d.Driver, query, params, neo4j.EagerResultTransformer, opts...)
	if err != nil {
		return neo4j.EagerResult{}, errors.Wrap(err, "failed to execute query")
	}
	return *result, nil
}

// ExecuteWrite runs work inside one managed write transaction. The driver
// retries transient failures of the whole unit of work.
func (d *MemgraphDriver) ExecuteWrite(ctx context.Context, work func(tx Tx) error) error {
	session := d.Driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   neo4j.AccessModeWrite,
		DatabaseName: d.Database,
	})
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(mtx neo4j.ManagedTransaction) (any, error) {
		return nil, work(managedTx{tx: mtx})
	})
	if err != nil {
		return errors.Wrap(err, "write transaction failed")
	}
	return nil
}

func (d *MemgraphDriver) BuildIndices(ctx context.Context) error {
	queries := []string{
		"CREATE INDEX ON :Concept;",
		"CREATE INDEX ON :Concept(name);",
	}

	for _, q := range queries {
		if _, err := d.ExecuteQuery(ctx, q, nil); err != nil {
			// Memgraph errors when the index already exists.
			d.log.Warn("failed to create index", "query", q, "error", err)
		}
	}

	return nil
}

type managedTx struct {
	tx neo4j.ManagedTransaction
}

func (m managedTx) Run(ctx context.Context, query string, params map[string]interface{}) ([]*neo4j.Record, error) {
	res, err := m.tx.Run(ctx, query, params)
	if err != nil {
		return nil, err
	}
	return res.Collect(ctx)
}

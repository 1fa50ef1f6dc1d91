// Package client bootstraps the *mongo.Client the wire and topology
// packages are built on. Connection pooling, retry, and topology balancing
// inside the driver itself stay the driver's responsibility — this package
// only owns the lifecycle (connect on startup, disconnect on shutdown) and
// hands out the client.
package client

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.opentelemetry.io/contrib/instrumentation/go.mongodb.org/mongo-driver/v2/mongo/otelmongo"
	"go.uber.org/zap"
)

// Client owns a *mongo.Client and its database handle.
type Client struct {
	conf     Config
	client   *mongo.Client
	database *mongo.Database
	log      *zap.Logger
}

// New creates a Client and its underlying *mongo.Client. The returned Client
// is not yet connected; call Connect to validate connectivity.
func New(log *zap.Logger, conf Config) (*Client, error) {
	conf.applyDefaults()
	if err := conf.validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = zap.NewNop()
	}

	opts := options.Client().
		ApplyURI(conf.BuildURI()).
		SetMaxPoolSize(conf.MaxPoolSize).
		SetMinPoolSize(conf.MinPoolSize).
		SetMaxConnIdleTime(conf.MaxConnIdleTime).
		SetServerSelectionTimeout(conf.ServerSelectTimeout).
		SetMonitor(otelmongo.NewMonitor())

	c, err := mongo.Connect(opts)
	if err != nil {
		return nil, fmt.Errorf("client: create mongo client: %w", err)
	}

	return &Client{
		conf:     conf,
		client:   c,
		database: c.Database(conf.Database),
		log:      log,
	}, nil
}

// Connect pings the server to validate connectivity.
func (c *Client) Connect(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.conf.ConnectTimeout)
	defer cancel()

	if err := c.client.Ping(ctx, nil); err != nil {
		return fmt.Errorf("client: ping mongo: %w", err)
	}
	c.log.Info("connected to mongo",
		zap.String("database", c.conf.Database),
		zap.Uint64("max-pool-size", c.conf.MaxPoolSize),
	)
	return nil
}

// Disconnect closes the underlying client.
func (c *Client) Disconnect(ctx context.Context) error {
	if err := c.client.Disconnect(ctx); err != nil {
		return fmt.Errorf("client: disconnect mongo: %w", err)
	}
	c.log.Info("disconnected from mongo")
	return nil
}

// Raw returns the underlying *mongo.Client for wire.NewDriver/NewConnection.
func (c *Client) Raw() *mongo.Client { return c.client }

// Database returns the configured database name.
func (c *Client) Database() string { return c.conf.Database }

// HelloWireVersion reports the server's maxWireVersion by running the hello
// command, used to decide whether bind_session's command decoration
// applies.
func (c *Client) HelloWireVersion(ctx context.Context) (uint32, error) {
	var reply struct {
		MaxWireVersion uint32 `bson:"maxWireVersion"`
	}
	if err := c.database.RunCommand(ctx, map[string]any{"hello": 1}).Decode(&reply); err != nil {
		return 0, fmt.Errorf("client: run hello: %w", err)
	}
	return reply.MaxWireVersion, nil
}

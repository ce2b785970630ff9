// shared/mongodb/client.go
package mongodb

import (
	"context"
	"fmt"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// Options configures the connection.
type Options struct {
	ConnStr        string
	Database       string
	AppName        string
	ConnectTimeout time.Duration
	MaxPoolSize    uint64
}

// Client wraps *mongo.Client bound to one database.
type Client struct {
	mongoClient *mongo.Client
	database    string
}

// NewClient connects and pings the primary.
func NewClient(ctx context.Context, opts Options) (*Client, error) {
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, opts.ConnectTimeout)
	defer cancel()

	clientOpts := options.Client().ApplyURI(opts.ConnStr)
	if opts.AppName != "" {
		clientOpts.SetAppName(opts.AppName)
	}
	if opts.MaxPoolSize > 0 {
		clientOpts.SetMaxPoolSize(opts.MaxPoolSize)
	}

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		if disconnectErr := client.Disconnect(context.Background()); disconnectErr != nil {
			log.Printf("WARNING: Failed to disconnect MongoDB client after ping failure: %v", disconnectErr)
		}
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	log.Printf("INFO: Connected to MongoDB database %s", opts.Database)
	return &Client{mongoClient: client, database: opts.Database}, nil
}

// Collection returns a handle to name in the bound database.
func (mc *Client) Collection(name string) *mongo.Collection {
	return mc.mongoClient.Database(mc.database).Collection(name)
}

// Disconnect closes the connection pool.
func (mc *Client) Disconnect(ctx context.Context) error {
	log.Println("INFO: Disconnecting from MongoDB...")
	return mc.mongoClient.Disconnect(ctx)
}

// Package configdb keeps VLAN configuration in Redis using the switch
// database layout: configuration rows in CONFIG_DB (DB 4), derived rows
// in STATE_DB (DB 6).
package configdb

import (
	"context"
	"fmt"
	"net"

	"github.com/go-redis/redis/v8"
)

// Redis database indexes.
const (
	ApplDB   = 0
	ConfigDB = 4
	StateDB  = 6
)

// TableChange is one row write for PipelineSet.
type TableChange struct {
	Table  string
	Key    string
	Fields map[string]string // nil means delete
}

// Client wraps a Redis client bound to one database. CONFIG_DB and
// STATE_DB keys are "TABLE|key"; APPL_DB keys are "TABLE:key".
type Client struct {
	client *redis.Client
	db     int
	sep    string
}

// NewClient creates a client for database db at addr.
func NewClient(addr string, db int) *Client {
	return newClient(&redis.Options{Addr: addr, DB: db})
}

// NewClientWithDialer creates a client whose connections are opened by
// dial, e.g. through an SSH tunnel.
func NewClientWithDialer(addr string, db int, dial func(ctx context.Context, network, addr string) (net.Conn, error)) *Client {
	return newClient(&redis.Options{Addr: addr, DB: db, Dialer: dial})
}

func newClient(opts *redis.Options) *Client {
	sep := "|"
	if opts.DB == ApplDB {
		sep = ":"
	}
	return &Client{client: redis.NewClient(opts), db: opts.DB, sep: sep}
}

// Connect tests the connection
func (c *Client) Connect(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close closes the connection
func (c *Client) Close() error {
	return c.client.Close()
}

// DB returns the database index.
func (c *Client) DB() int {
	return c.db
}

// Key builds the Redis key of a row.
func (c *Client) Key(table, key string) string {
	return table + c.sep + key
}

// Get reads a row. A missing row reads as an empty map.
func (c *Client) Get(ctx context.Context, table, key string) (map[string]string, error) {
	return c.client.HGetAll(ctx, c.Key(table, key)).Result()
}

// Set writes a row in one HSET so subscribers see a single notification.
// An empty row is written as the "NULL":"NULL" sentinel so the key exists.
func (c *Client) Set(ctx context.Context, table, key string, fields map[string]string) error {
	return c.client.HSet(ctx, c.Key(table, key), hsetArgs(fields)...).Err()
}

// Delete removes a row
func (c *Client) Delete(ctx context.Context, table, key string) error {
	return c.client.Del(ctx, c.Key(table, key)).Err()
}

// Exists checks if a row exists
func (c *Client) Exists(ctx context.Context, table, key string) (bool, error) {
	n, err := c.client.Exists(ctx, c.Key(table, key)).Result()
	return n > 0, err
}

// TableKeys returns the row keys (without the table prefix) of table.
func (c *Client) TableKeys(ctx context.Context, table string) ([]string, error) {
	prefix := c.Key(table, "")
	keys, err := scanKeys(ctx, c.client, prefix+"*", 100)
	if err != nil {
		return nil, err
	}
	for i, k := range keys {
		keys[i] = k[len(prefix):]
	}
	return keys, nil
}

// GetTable reads every row of table with one pipelined round trip.
func (c *Client) GetTable(ctx context.Context, table string) (map[string]map[string]string, error) {
	keys, err := c.TableKeys(ctx, table)
	if err != nil {
		return nil, fmt.Errorf("scanning %s: %w", table, err)
	}
	rows := make(map[string]map[string]string, len(keys))
	if len(keys) == 0 {
		return rows, nil
	}

	pipe := c.client.Pipeline()
	cmds := make(map[string]*redis.StringStringMapCmd, len(keys))
	for _, k := range keys {
		cmds[k] = pipe.HGetAll(ctx, c.Key(table, k))
	}
	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return nil, fmt.Errorf("reading %s: %w", table, err)
	}
	for k, cmd := range cmds {
		vals, err := cmd.Result()
		if err != nil || len(vals) == 0 {
			// deleted between SCAN and HGETALL
			continue
		}
		rows[k] = vals
	}
	return rows, nil
}

// PipelineSet applies changes atomically via MULTI/EXEC, in order.
func (c *Client) PipelineSet(ctx context.Context, changes []TableChange) error {
	if len(changes) == 0 {
		return nil
	}

	pipe := c.client.TxPipeline()
	for _, change := range changes {
		redisKey := c.Key(change.Table, change.Key)
		if change.Fields == nil {
			pipe.Del(ctx, redisKey)
		} else {
			pipe.HSet(ctx, redisKey, hsetArgs(change.Fields)...)
		}
	}

	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return fmt.Errorf("pipeline exec: %w", err)
	}
	return nil
}

func hsetArgs(fields map[string]string) []interface{} {
	if len(fields) == 0 {
		return []interface{}{"NULL", "NULL"}
	}
	args := make([]interface{}, 0, len(fields)*2)
	for k, v := range fields {
		args = append(args, k, v)
	}
	return args
}

// scanKeys iterates keys matching pattern with cursor-based SCAN rather
// than the blocking KEYS command.
func scanKeys(ctx context.Context, client *redis.Client, pattern string, countHint int64) ([]string, error) {
	var cursor uint64
	var keys []string
	for {
		batch, nextCursor, err := client.Scan(ctx, cursor, pattern, countHint).Result()
		if err != nil {
			return nil, err
		}
		keys = append(keys, batch...)
		cursor = nextCursor
		if cursor == 0 {
			break
		}
	}
	return keys, nil
}

package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Client is the Redis-backed Store. All keys and channels are namespaced with
// the instance name. The client is safe for concurrent use.
type Client struct {
	rdb          *redis.Client
	instanceName string
	now          func() time.Time
}

var _ Store = (*Client)(nil)

// NewClient creates a store client for the specified instance.
//
// Returns an error if instanceName is empty.
func NewClient(redisOpts *redis.Options, instanceName string) (*Client, error) {
	if instanceName == "" {
		return nil, fmt.Errorf("instance name cannot be empty")
	}

	return &Client{
		rdb:          redis.NewClient(redisOpts),
		instanceName: instanceName,
		now:          time.Now,
	}, nil
}

// InstanceName returns the namespace the client writes under.
func (c *Client) InstanceName() string {
	return c.instanceName
}

// Close closes the Redis connection. After calling Close(), the client should not be used.
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Ping verifies Redis connectivity. Used by the health check.
func (c *Client) Ping(ctx context.Context) error {
	return storeErr("ping", c.rdb.Ping(ctx).Err())
}

// GetConfig returns the raw JSON stored for key, or ErrNotFound.
func (c *Client) GetConfig(ctx context.Context, key ConfigKey) (json.RawMessage, error) {
	raw, err := c.rdb.HGet(ctx, ConfigKeyHash(c.instanceName), string(key)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, storeErr("get config", err)
	}
	return json.RawMessage(raw), nil
}

// SetConfig stores the JSON encoding of value under key.
func (c *Client) SetConfig(ctx context.Context, key ConfigKey, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal config %s: %w", key, err)
	}
	return storeErr("set config", c.rdb.HSet(ctx, ConfigKeyHash(c.instanceName), string(key), data).Err())
}

// RegisterOwner upserts the owner. Stocks are only initialised on first registration.
func (c *Client) RegisterOwner(ctx context.Context, ownerID, channelID, displayName string) error {
	if ownerID == "" {
		return fmt.Errorf("owner id cannot be empty")
	}
	key := OwnerKey(c.instanceName, ownerID)

	_, err := c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, map[string]interface{}{
			"owner_id":     ownerID,
			"channel_id":   channelID,
			"display_name": displayName,
		})
		pipe.HSetNX(ctx, key, "farm_stock", "{}")
		pipe.HSetNX(ctx, key, "production_stock", "{}")
		pipe.SAdd(ctx, OwnersKey(c.instanceName), ownerID)
		return nil
	})
	return storeErr("register owner", err)
}

// GetOwner retrieves an owner by id. Returns ErrNotFound if the owner was never registered.
func (c *Client) GetOwner(ctx context.Context, ownerID string) (*Owner, error) {
	hashData, err := c.rdb.HGetAll(ctx, OwnerKey(c.instanceName, ownerID)).Result()
	if err != nil {
		return nil, storeErr("get owner", err)
	}
	if len(hashData) == 0 {
		return nil, ErrNotFound
	}

	owner, err := HashToOwner(hashData)
	if err != nil {
		return nil, storeErr("get owner", err)
	}
	return owner, nil
}

// ListOwners returns every registered owner ordered by id.
func (c *Client) ListOwners(ctx context.Context) ([]*Owner, error) {
	ids, err := c.rdb.SMembers(ctx, OwnersKey(c.instanceName)).Result()
	if err != nil {
		return nil, storeErr("list owners", err)
	}
	sort.Strings(ids)

	owners := make([]*Owner, 0, len(ids))
	for _, id := range ids {
		owner, err := c.GetOwner(ctx, id)
		if IsNotFound(err) {
			continue
		}
		if err != nil {
			return nil, err
		}
		owners = append(owners, owner)
	}
	return owners, nil
}

// UpdateStock overwrites both stocks of an existing owner.
func (c *Client) UpdateStock(ctx context.Context, ownerID string, farm, production Stock) error {
	key := OwnerKey(c.instanceName, ownerID)
	if err := c.mustExist(ctx, "update stock", key); err != nil {
		return err
	}

	fields, err := stockFields(farm, production)
	if err != nil {
		return err
	}
	return storeErr("update stock", c.rdb.HSet(ctx, key, fields).Err())
}

// AddTransaction persists a new transaction and returns its id.
func (c *Client) AddTransaction(ctx context.Context, tx *Transaction) (int64, error) {
	if err := tx.Validate(); err != nil {
		return 0, fmt.Errorf("invalid transaction: %w", err)
	}
	if tx.ProofStatus == "" {
		tx.ProofStatus = ProofStatusNone
	}

	id, err := c.nextID(ctx, tx)
	if err != nil {
		return 0, err
	}
	hash, err := TransactionToHash(tx)
	if err != nil {
		return 0, fmt.Errorf("failed to serialize transaction: %w", err)
	}

	_, err = c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		c.queueTransaction(ctx, pipe, tx, hash)
		return nil
	})
	if err != nil {
		return 0, storeErr("add transaction", err)
	}
	return id, nil
}

// UpdateTransactionStatus sets the proof status (and optional proof URL) of a transaction.
func (c *Client) UpdateTransactionStatus(ctx context.Context, id int64, status ProofStatus, proofURL *string) error {
	if err := status.Validate(); err != nil {
		return err
	}
	key := TransactionKey(c.instanceName, id)
	if err := c.mustExist(ctx, "update transaction status", key); err != nil {
		return err
	}
	if err := c.rdb.HSet(ctx, key, statusFields(status, proofURL)).Err(); err != nil {
		return storeErr("update transaction status", err)
	}
	if status.IsTerminal() {
		c.publishSettled(ctx, id)
	}
	return nil
}

// GetTransaction retrieves a transaction by id, or ErrNotFound.
func (c *Client) GetTransaction(ctx context.Context, id int64) (*Transaction, error) {
	hashData, err := c.rdb.HGetAll(ctx, TransactionKey(c.instanceName, id)).Result()
	if err != nil {
		return nil, storeErr("get transaction", err)
	}
	if len(hashData) == 0 {
		return nil, ErrNotFound
	}
	t, err := HashToTransaction(hashData)
	if err != nil {
		return nil, storeErr("get transaction", err)
	}
	return t, nil
}

// listPageSize bounds how many index entries are read per round trip while filtering.
const listPageSize = 50

// ListTransactions walks the id index newest first and returns up to the
// filter's limit of matching records.
func (c *Client) ListTransactions(ctx context.Context, filter TransactionFilter) ([]*Transaction, error) {
	index := TransactionIndexKey(c.instanceName)
	if filter.TargetOwnerID != "" {
		index = OwnerTransactionIndexKey(c.instanceName, filter.TargetOwnerID)
	}
	limit := filter.EffectiveLimit()

	result := make([]*Transaction, 0, limit)
	for start := int64(0); ; start += listPageSize {
		ids, err := c.rdb.ZRevRange(ctx, index, start, start+listPageSize-1).Result()
		if err != nil {
			return nil, storeErr("list transactions", err)
		}
		for _, raw := range ids {
			id, err := strconv.ParseInt(raw, 10, 64)
			if err != nil {
				return nil, storeErr("list transactions", fmt.Errorf("corrupt index member %q", raw))
			}
			t, err := c.GetTransaction(ctx, id)
			if IsNotFound(err) {
				continue
			}
			if err != nil {
				return nil, err
			}
			if !filter.Matches(t) {
				continue
			}
			result = append(result, t)
			if len(result) == limit {
				return result, nil
			}
		}
		if len(ids) < listPageSize {
			return result, nil
		}
	}
}

// CommitTransaction writes the final status and the owner's stocks inside one MULTI/EXEC.
func (c *Client) CommitTransaction(ctx context.Context, commit Commit) error {
	if err := commit.Status.Validate(); err != nil {
		return err
	}
	txKey := TransactionKey(c.instanceName, commit.TransactionID)
	ownerKey := OwnerKey(c.instanceName, commit.OwnerID)
	if err := c.mustExist(ctx, "commit transaction", txKey); err != nil {
		return err
	}
	if err := c.mustExist(ctx, "commit transaction", ownerKey); err != nil {
		return err
	}

	stocks, err := stockFields(commit.FarmStock, commit.ProductionStock)
	if err != nil {
		return err
	}

	_, err = c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, txKey, statusFields(commit.Status, commit.ProofURL))
		pipe.HSet(ctx, ownerKey, stocks)
		return nil
	})
	if err != nil {
		return storeErr("commit transaction", err)
	}

	c.publishSettled(ctx, commit.TransactionID)
	return nil
}

// RecordAdjustment stores an ADJUSTMENT transaction together with the owner's new stocks.
func (c *Client) RecordAdjustment(ctx context.Context, tx *Transaction, farm, production Stock) (int64, error) {
	tx.ProofStatus = ProofStatusAdjustment
	if err := tx.Validate(); err != nil {
		return 0, fmt.Errorf("invalid transaction: %w", err)
	}
	ownerKey := OwnerKey(c.instanceName, tx.TargetOwnerID)
	if err := c.mustExist(ctx, "record adjustment", ownerKey); err != nil {
		return 0, err
	}

	stocks, err := stockFields(farm, production)
	if err != nil {
		return 0, err
	}
	id, err := c.nextID(ctx, tx)
	if err != nil {
		return 0, err
	}
	hash, err := TransactionToHash(tx)
	if err != nil {
		return 0, fmt.Errorf("failed to serialize transaction: %w", err)
	}

	_, err = c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		c.queueTransaction(ctx, pipe, tx, hash)
		pipe.HSet(ctx, ownerKey, stocks)
		return nil
	})
	if err != nil {
		return 0, storeErr("record adjustment", err)
	}

	c.publishSettled(ctx, id)
	return id, nil
}

func (c *Client) nextID(ctx context.Context, tx *Transaction) (int64, error) {
	id, err := c.rdb.Incr(ctx, TransactionSeqKey(c.instanceName)).Result()
	if err != nil {
		return 0, storeErr("allocate transaction id", err)
	}
	tx.ID = id
	tx.CreatedAt = c.now().UTC().Truncate(time.Millisecond)
	return id, nil
}

func (c *Client) queueTransaction(ctx context.Context, pipe redis.Pipeliner, tx *Transaction, hash map[string]interface{}) {
	member := redis.Z{Score: float64(tx.ID), Member: strconv.FormatInt(tx.ID, 10)}
	pipe.HSet(ctx, TransactionKey(c.instanceName, tx.ID), hash)
	pipe.ZAdd(ctx, TransactionIndexKey(c.instanceName), member)
	pipe.ZAdd(ctx, OwnerTransactionIndexKey(c.instanceName, tx.TargetOwnerID), member)
}

func (c *Client) mustExist(ctx context.Context, op, key string) error {
	n, err := c.rdb.Exists(ctx, key).Result()
	if err != nil {
		return storeErr(op, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// publishSettled announces a settled transaction. Publishing is best effort:
// the write has already succeeded and subscribers are optional.
func (c *Client) publishSettled(ctx context.Context, id int64) {
	t, err := c.GetTransaction(ctx, id)
	if err != nil {
		return
	}
	payload, err := json.Marshal(t)
	if err != nil {
		return
	}
	c.rdb.Publish(ctx, TransactionEventsChannel(c.instanceName), payload)
}

func stockFields(farm, production Stock) (map[string]interface{}, error) {
	farmJSON, err := EncodeStock(farm)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal farm stock: %w", err)
	}
	productionJSON, err := EncodeStock(production)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal production stock: %w", err)
	}
	return map[string]interface{}{
		"farm_stock":       farmJSON,
		"production_stock": productionJSON,
	}, nil
}

func statusFields(status ProofStatus, proofURL *string) map[string]interface{} {
	url := ""
	if proofURL != nil {
		url = *proofURL
	}
	return map[string]interface{}{
		"proof_status": string(status),
		"proof_url":    url,
	}
}

// Subscription represents an active Pub/Sub subscription to settled transactions.
// Caller must call Close() to clean up resources.
type Subscription struct {
	events <-chan *Transaction
	errors <-chan error
	cancel context.CancelFunc
}

// Events returns a read-only channel that delivers settled transactions.
// The channel is closed when the subscription is closed or the context is cancelled.
func (s *Subscription) Events() <-chan *Transaction {
	return s.events
}

// Errors returns a read-only channel that delivers decode errors.
func (s *Subscription) Errors() <-chan error {
	return s.errors
}

// Close stops the subscription and releases resources.
func (s *Subscription) Close() error {
	s.cancel()
	return nil
}

// SubscribeTransactionEvents subscribes to settled transactions for this instance.
// Context cancellation also stops the subscription.
//
// Events are delivered on a buffered channel (size 10). Redis Pub/Sub is at-most-once:
// a slow subscriber can miss events.
func (c *Client) SubscribeTransactionEvents(ctx context.Context) (*Subscription, error) {
	pubsub := c.rdb.Subscribe(ctx, TransactionEventsChannel(c.instanceName))
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, storeErr("subscribe transaction events", err)
	}

	eventsChan := make(chan *Transaction, 10)
	errorsChan := make(chan error, 10)
	subCtx, cancelFunc := context.WithCancel(ctx)

	go func() {
		defer close(eventsChan)
		defer close(errorsChan)
		defer pubsub.Close()

		ch := pubsub.Channel()
		for {
			select {
			case <-subCtx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}

				var t Transaction
				if err := json.Unmarshal([]byte(msg.Payload), &t); err != nil {
					select {
					case errorsChan <- fmt.Errorf("failed to unmarshal transaction event: %w", err):
					case <-subCtx.Done():
						return
					}
					continue
				}

				select {
				case eventsChan <- &t:
				case <-subCtx.Done():
					return
				}
			}
		}
	}()

	return &Subscription{
		events: eventsChan,
		errors: errorsChan,
		cancel: cancelFunc,
	}, nil
}


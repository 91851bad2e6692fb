package ledger

import "fmt"

// Redis key pattern helpers
//
// All Redis keys and Pub/Sub channels are namespaced by instance name.
//
// Key pattern: stockpanel:{instance_name}:{entity}[:{id}]
// Channel pattern: stockpanel:{instance_name}:{event_type}_events

// ConfigKeyHash returns the Redis key of the configuration hash (field = config key, value = JSON).
func ConfigKeyHash(instanceName string) string {
	return fmt.Sprintf("stockpanel:%s:config", instanceName)
}

// OwnerKey returns the Redis key for an owner hash.
// Pattern: stockpanel:{instance_name}:owner:{owner_id}
func OwnerKey(instanceName, ownerID string) string {
	return fmt.Sprintf("stockpanel:%s:owner:%s", instanceName, ownerID)
}

// OwnersKey returns the Redis key of the set of registered owner ids.
func OwnersKey(instanceName string) string {
	return fmt.Sprintf("stockpanel:%s:owners", instanceName)
}

// TransactionSeqKey returns the counter used to assign transaction ids.
func TransactionSeqKey(instanceName string) string {
	return fmt.Sprintf("stockpanel:%s:tx_seq", instanceName)
}

// TransactionKey returns the Redis key for a transaction hash.
// Pattern: stockpanel:{instance_name}:tx:{transaction_id}
func TransactionKey(instanceName string, id int64) string {
	return fmt.Sprintf("stockpanel:%s:tx:%d", instanceName, id)
}

// TransactionIndexKey returns the ZSET indexing every transaction by id.
func TransactionIndexKey(instanceName string) string {
	return fmt.Sprintf("stockpanel:%s:tx_index", instanceName)
}

// OwnerTransactionIndexKey returns the ZSET indexing one owner's transactions by id.
// Pattern: stockpanel:{instance_name}:tx_index:{owner_id}
func OwnerTransactionIndexKey(instanceName, ownerID string) string {
	return fmt.Sprintf("stockpanel:%s:tx_index:%s", instanceName, ownerID)
}

// TransactionEventsChannel returns the Pub/Sub channel carrying settled transactions.
// Pattern: stockpanel:{instance_name}:transaction_events
func TransactionEventsChannel(instanceName string) string {
	return fmt.Sprintf("stockpanel:%s:transaction_events", instanceName)
}

// InboundEventsChannel returns the channel the chat gateway publishes user events on.
func InboundEventsChannel(instanceName string) string {
	return fmt.Sprintf("stockpanel:%s:inbound_events", instanceName)
}

// OutboundEventsChannel returns the channel render commands are published on for the chat gateway.
func OutboundEventsChannel(instanceName string) string {
	return fmt.Sprintf("stockpanel:%s:outbound_events", instanceName)
}

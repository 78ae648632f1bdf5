package orders

// All order lifecycle events share one topic so a single relay consumer
// sees them in order.
const TopicOrderEvents = "pos.order.events"

// Partition key = order id, so every event of one order lands on the same partition.
func PartitionKey(orderID string) []byte { return []byte(orderID) }

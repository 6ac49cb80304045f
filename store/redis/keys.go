package redis

// Redis key naming conventions for instance history. Every key starts with
// the store prefix, "jobrun:" unless WithPrefix overrides it.

// DefaultPrefix namespaces keys written by the store.
const DefaultPrefix = "jobrun:"

// instanceKey returns the Hash key for an instance: {prefix}instance:{id}
func (s *Store) instanceKey(id string) string { return s.prefix + "instance:" + id }

// indexKey is the Sorted Set of instance IDs scored by ScheduledAt.
func (s *Store) indexKey() string { return s.prefix + "instances" }

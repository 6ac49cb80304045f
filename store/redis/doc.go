// Package redis implements job.Store on Redis for instance history.
//
// Each instance is a Hash keyed by its ID. A Sorted Set scored by
// ScheduledAt indexes every stored instance for listing and pruning.
//
// Usage:
//
//	client := goredis.NewClient(&goredis.Options{Addr: "localhost:6379"})
//	s := redisstore.New(client)
//	if err := s.Ping(ctx); err != nil { ... }
package redis

// Package lock defines the distributed mutual-exclusion contract used to keep
// non-concurrent jobs to one running instance across the cluster.
//
// A [Provider] makes a single acquisition attempt per call and never waits:
// a nil [Token] with a nil error means another holder owns the key. Every
// lock carries a TTL so a crashed holder cannot block the job forever.
//
// [Token.Release] is idempotent. Only the owner that acquired the lock can
// delete it; releasing after the TTL expired and someone else took the key
// returns [jobrun.ErrLockNotHeld] and leaves the new holder alone.
//
// # Backends
//
//   - [Memory]: in-process, for single-node deployments and tests
//   - lock/redis: SET NX PX with a compare-and-delete release script
//   - lock/postgres: lease rows with an expiry column
package lock

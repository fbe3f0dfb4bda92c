// Package runner executes a load run.
//
// A run is planned once by [New]: the requested total is split into
// per-connection quotas and the connections are partitioned across workers.
// [Runner.Run] then builds one [Connection] per quota, each with its own
// engine instance and its own HTTP session, and starts one [Worker] per
// thread.
//
// # Stopping
//
// Every connection watches a shared [Token]. It is set exactly once, by
// whichever comes first:
//   - the configured duration elapsing ([TriggerDuration])
//   - the caller's context being cancelled ([TriggerSignal])
//   - every connection using up its quota ([TriggerQuota])
//
// A connection never starts a request after the token is set. Requests
// already in flight finish and are counted.
//
// # Pacing and retries
//
// A rate limit is divided evenly over the connections. Each connection paces
// itself with either a uniform limiter or a seeded Poisson arrival process.
// Transport failures are retried with exponential backoff; a connection that
// exhausts its retries is marked failed and its unfinished quota is dropped.
//
// # Errors
//
// Problems found before any traffic is sent are returned as [*SetupError].
package runner

// Package config provides configuration management for objpool pools and
// the tooling built around them.
//
// # Key Features
//
// - Config: one structure with Pool, Logging, Metrics, Tracing and Bench sections
// - PoolConfig: everything pool.FromConfig needs to build an allocator
// - Environment variable substitution with ${VAR_NAME} and ${VAR_NAME:-default}
// - Defaults and validation returning poolerrors config errors
//
// # Usage
//
// ## Loading a Configuration File
//
//	cfg, err := config.LoadFile("objpool.yaml")
//	if err != nil {
//		log.Fatal(err)
//	}
//
// LoadFile starts from Default, so a file only needs the values it changes:
//
//	pool:
//	  name: sessions
//	  object_size: 48
//	  chunk_size: 65536
//	  max_chunks: ${OBJPOOL_MAX_CHUNKS:-0}
//	logging:
//	  level: ${LOG_LEVEL}
//
// ## Building a Pool
//
//	alloc, err := pool.FromConfig(cfg.Pool, pool.WithLogger(logger))
//
// # Section Reference
//
// Pool:
//   - object_size: Requested object size in bytes
//   - chunk_size: Requested chunk size in bytes (clamped to min_chunk_size)
//   - min_chunk_size: Lower bound for chunk sizes (default 4096)
//   - alignment: Slot alignment, a power of two (default 8)
//   - max_chunks: Live chunk cap, 0 for none
//   - statistics, zeroing: Counter maintenance and slot clearing
//   - locking: mutex or none
//   - source: os (anonymous mappings) or heap
//
// Bench:
//   - objects, rounds, workers: Workload size
//   - pattern: lifo, fifo, random or handoff
//   - sample_interval: RSS sampling period
//
// The command line tool layers viper over this package, so every key can
// also be set through OBJPOOL_* environment variables (for example
// OBJPOOL_POOL_OBJECT_SIZE) or flags.
package config

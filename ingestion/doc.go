// Package ingestion streams a line-delimited JSON dump through a pool of
// workers into a batched, idempotent sink.
//
// A run has four kinds of goroutines:
//   - one dispatcher reading the Source and queueing chunks of lines
//   - N workers (in an ants pool) parsing lines and calling the Handler
//   - one accumulator owning the batch buffer and flushing it to the sink
//   - an optional reporter logging progress and memory usage
//
// The dispatch queue is bounded, so a slow sink stalls the workers, which in
// turn stall the dispatcher. Buffered output is only dropped after the sink
// confirms a write; failed flushes are retried on the next append and the
// final drain retries with a fixed backoff.
//
// Resumption is at-least-once. With WithCheckpoints, the accumulator stores
// the raw line count before the oldest chunk whose output is not yet durable.
// Restarting with WithResume(true) skips that many lines, so some lines may
// be handled twice. Sinks must therefore be idempotent.
//
// Usage:
//
//	p, err := ingestion.NewPipeline(
//		ingestion.WithSource("latest-all.json.gz"),
//		ingestion.WithPoolSize(8),
//	)
//	if err != nil { ... }
//	defer p.Release()
//	stats, err := ingestion.Run(ctx, p, handler, sink, ingestion.RunOptions{})
package ingestion

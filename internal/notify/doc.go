// Package notify delivers routed notifications.
//
// A Sink receives a Notification whose Destination is a logical channel
// name chosen by the router. Sinks map logical names to concrete channels;
// an unmapped destination falls back to DestDefault.
//
// Implementations:
//   - Discord posts embeds through the Discord REST API, rate limited and
//     retried on 429 and 5xx responses.
//   - LogSink writes each notification to the structured log (dry runs).
//   - MemorySink keeps notifications in memory (tests).
package notify

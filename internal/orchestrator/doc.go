// Package orchestrator implements the shared pipeline between the two
// ingestion paths and the platform: dedup ledger, mention resolution,
// responder selection, rate limiting, and response dispatch.
package orchestrator

// Package services contains the core pipeline logic: one service per stage
// (discover, parse, enrich, vectorize, ingest) plus the runner that
// sequences them. Services depend only on the port interfaces, never on
// concrete adapters.
package services

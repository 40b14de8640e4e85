// Package session provides the bounded, TTL-expiring conversation log
// backing multi-turn chat.
//
// Each session is a Redis list of JSON-encoded messages. Every append is a
// single pipelined transaction: push, trim to the configured bound, refresh
// the expiry window. Absent sessions are not errors; reads return empty
// results.
package session

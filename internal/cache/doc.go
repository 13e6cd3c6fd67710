// Package cache provides an in-memory LRU of fixed-size byte blocks read
// from remote table sources.
//
// Blocks are keyed by source path and block index. Cached slices are
// shared and must be treated as read-only.
package cache

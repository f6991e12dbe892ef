// Package events fans job progress out to interested readers.
//
// A [Hub] keeps the last event of every job and delivers new ones to
// subscriber channels without ever blocking the publisher; a slow reader
// misses intermediate progress but always receives the terminal result.
// [RedisPublisher] and [Bridge] carry the same events between a queue
// worker and the API process over Redis pub/sub.
package events

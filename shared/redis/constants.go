// shared/redis/constants.go
package redis

import "errors"

const (
	// OnlineKeyPrefix marks a player as present on a game node: online:{uuid}:
	OnlineKeyPrefix = "online:{%s}:"
	// MessageChannelFormat is the pub/sub channel carrying player-facing text: <prefix>:{uuid}
	MessageChannelFormat = "%s:{%s}"
	// DefaultMessageChannelPrefix is the prefix used unless configured otherwise.
	DefaultMessageChannelPrefix = "messages"
)

// ErrRedisKeyNotFound is returned when a lookup misses.
var ErrRedisKeyNotFound = errors.New("redis key not found")

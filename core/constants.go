package core

const (
	// DefaultSyncLimit is the batch size used when a sync request does
	// not specify one.
	DefaultSyncLimit = 500

	// MaxFetchSize is the remote index page-size ceiling. Elasticsearch
	// rejects larger result windows, so the adapter clamps to it.
	MaxFetchSize = 10000

	// DefaultMinLevel is the severity floor applied when no explicit
	// level filter is requested from the remote source.
	DefaultMinLevel = 5

	// DefaultQueryLimit and MaxQueryLimit bound local page requests.
	DefaultQueryLimit = 50
	MaxQueryLimit     = 1000

	// MaxErrorMessageLength caps diagnostic detail sent to clients.
	MaxErrorMessageLength = 200
)

package constants

import "time"

// Connection lifecycle timings
const (
	// DefaultReconnectInterval is the fixed backoff between client-mode reconnects
	DefaultReconnectInterval = 3 * time.Second
	// DefaultHandshakeTimeout bounds the websocket upgrade and the first handshake frame
	DefaultHandshakeTimeout = 10 * time.Second
	// DefaultAPITimeout is the per-call wait for a correlated response
	DefaultAPITimeout = 30 * time.Second
	// DefaultShutdownTimeout bounds the HTTP listener shutdown
	DefaultShutdownTimeout = 5 * time.Second
	// CloseWriteTimeout bounds writing the close frame when tearing a socket down
	CloseWriteTimeout = time.Second
)

// Wire protocol values
const (
	// AdapterName is used for the reverse websocket path and metric labels
	AdapterName = "mirai2"
	// MaxFrameSize caps a single inbound frame (mirai forwards can be large)
	MaxFrameSize = 16 << 20
)

// Secret masking
const (
	// MinSecretLengthForMasking is the minimum secret length to show a prefix/suffix
	MinSecretLengthForMasking = 8
	// SecretMaskPrefixLength is the length of prefix to show before masking
	SecretMaskPrefixLength = 2
	// SecretMaskSuffixLength is the length of suffix to show after masking
	SecretMaskSuffixLength = 2
)

// Logging defaults
const (
	// DefaultLogMaxSize is the default maximum log file size in MB
	DefaultLogMaxSize = 100
	// DefaultLogMaxAge is the default maximum number of days to retain old logs
	DefaultLogMaxAge = 30
)

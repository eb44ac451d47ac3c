package constants

import (
	"time"
)

// Admission defaults
const (
	// DefaultConcurrency - number of units fetched at once in fixed mode (3)
	DefaultConcurrency = 3

	// MinConcurrency / MaxConcurrency bound the --concurrency flag
	MinConcurrency = 1
	MaxConcurrency = 32

	// DefaultByteBudget - ceiling on the declared size of in-flight units in budget mode (20 MiB)
	// A single unit larger than this is admitted on its own once nothing else is in flight.
	DefaultByteBudget = 20 * 1024 * 1024

	// DefaultUnknownSizeWeight - budget weight charged for a unit whose size is unknown (1 MiB)
	DefaultUnknownSizeWeight = 1 * 1024 * 1024

	// BudgetMemoryFraction - share of available memory the byte budget may occupy.
	// Every fetched body is held in memory until the session ends.
	BudgetMemoryFraction = 0.25
)

// Streaming
const (
	// ReadChunkSize - size of each body read from the network (64 KiB)
	// Smaller reads give finer progress, larger reads mean fewer syscalls.
	ReadChunkSize = 64 * 1024

	// ProgressMinInterval - minimum time between two emitted progress values for one unit
	ProgressMinInterval = 100 * time.Millisecond

	// ProgressMinStep - minimum percentage advance between two emitted progress values
	ProgressMinStep = 10
)

// Preview
const (
	// PreviewMaxChars - characters kept in a text preview before the ellipsis
	PreviewMaxChars = 500

	// PreviewEllipsis - marker appended to truncated previews
	PreviewEllipsis = "..."

	// PreviewSniffBytes - bytes handed to content sniffing for untyped bodies
	PreviewSniffBytes = 3072
)

// Bundles and handles
const (
	// ArchiveCompressionLevel - DEFLATE level for bundle archives (6)
	ArchiveCompressionLevel = 6

	// DefaultBundleName - folder/archive name used when the first file yields none
	DefaultBundleName = "download"

	// HandleReleaseDelay - how long a download handle stays valid after the save is triggered (5 seconds)
	// Releasing earlier can cut off a save that is still reading the blob.
	HandleReleaseDelay = 5 * time.Second

	// SaveAllWorkers - files written concurrently by SaveAll
	SaveAllWorkers = 4

	// OutputDirPerm / OutputFilePerm - permissions for saved downloads
	OutputDirPerm  = 0o755
	OutputFilePerm = 0o644
)

// Share
const (
	// DefaultShareTitle / DefaultShareText - title and message attached to shared images
	DefaultShareTitle = "Share my images"
	DefaultShareText  = "Here are all my camera images!"

	// DefaultShareTTL - lifetime of presigned share links (24 hours)
	DefaultShareTTL = 24 * time.Hour
)

// Retry configuration
const (
	// MaxRetries - maximum attempts when opening a storage object
	MaxRetries = 5

	// RetryInitialDelay - initial delay before first retry (200ms)
	RetryInitialDelay = 200 * time.Millisecond

	// RetryMaxDelay - maximum delay between retries (15s)
	// Exponential backoff with jitter caps at this value
	RetryMaxDelay = 15 * time.Second

	// APIRetryMax - retries performed by the metadata client
	APIRetryMax = 4

	// APIRetryWaitMin / APIRetryWaitMax - backoff bounds for the metadata client
	APIRetryWaitMin = 500 * time.Millisecond
	APIRetryWaitMax = 10 * time.Second
)

// Event System
const (
	// EventBusDefaultBuffer - default buffer size for event channels (1000)
	// Progress events are coalesced upstream, so 1000 covers a few hundred units.
	EventBusDefaultBuffer = 1000

	// EventBusMaxBuffer - maximum buffer size for high-throughput scenarios (5000)
	EventBusMaxBuffer = 5000
)

// API and Context Timeouts
const (
	// APIContextTimeout - default timeout for a metadata lookup (30 seconds)
	APIContextTimeout = 30 * time.Second

	// DefaultAPIRatePerSec / DefaultAPIBurst - token bucket for metadata calls
	DefaultAPIRatePerSec = 2.0
	DefaultAPIBurst      = 10.0
)

// HTTP Client Timeouts
const (
	// HTTPIdleConnTimeout - how long to keep idle connections open (90 seconds)
	HTTPIdleConnTimeout = 90 * time.Second

	// HTTPTLSHandshakeTimeout - timeout for TLS handshake (60 seconds)
	HTTPTLSHandshakeTimeout = 60 * time.Second

	// HTTPExpectContinueTimeout - timeout for 100-continue response (1 second)
	HTTPExpectContinueTimeout = 1 * time.Second

	// HTTPDialTimeout - timeout for establishing connection (30 seconds)
	HTTPDialTimeout = 30 * time.Second

	// HTTPDialKeepAlive - keep-alive period for dialer (30 seconds)
	HTTPDialKeepAlive = 30 * time.Second

	// HTTPResponseHeaderTimeout - time allowed for a file server to start answering (60 seconds)
	// Body reads have no deadline, large files simply take longer.
	HTTPResponseHeaderTimeout = 60 * time.Second
)

// Rate Limiter Timeouts
const (
	// RateLimitWarningThreshold - delay threshold to show warning (2 seconds)
	RateLimitWarningThreshold = 2 * time.Second

	// RateLimitWarningInterval - minimum interval between warnings (10 seconds)
	RateLimitWarningInterval = 10 * time.Second
)

// System Memory Limits
const (
	// MinSystemMemory - floor used when available memory cannot be read (512 MB)
	MinSystemMemory = 512 * 1024 * 1024
)

package config

// Constants defining default values for application configuration
const (
	DefaultFeedsCSVPath = "./feeds.csv"
	DefaultDBPath       = "./syndicator.db"
	DefaultBlobDir      = "./blobs"

	DefaultServerPort = 8080
	DefaultServerHost = "" // Empty string means all interfaces

	DefaultWorkerCount = 0  // 0 means use runtime.NumCPU()
	DefaultInterval    = 30 // Minutes between update checks, 0 for one-shot
	DefaultAutoRefresh = true

	DefaultStaleAfter   = "6h"  // Feeds checked more recently than this are skipped
	DefaultCacheTTL     = "1h"  // Lifetime of a derived customer document
	DefaultFetchTimeout = "30s" // Bound on a single origin request
	DefaultPublicMaxAge = 3600  // Seconds, Cache-Control on the public endpoint

	DefaultOriginUserAgent = "XmlCustomizer/1.0"

	DefaultLogLevel = "info"
)

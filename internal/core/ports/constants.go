package ports

import "time"

const (
	DefaultLockRetryDelay    = 2 * time.Second // Delay between AcquireWithRetry attempts
	DefaultRiskCacheTTL      = time.Hour       // Staleness bound of the risk reference cache
	RecentTransactionsWindow = 10              // Transactions considered by address analysis
	ExternalRequestTimeout   = 10 * time.Second
)

package offchain

const (
	// DefaultCacheSize matches the block cache of the chain client.
	DefaultCacheSize = 64

	// maxBlockSize caps what is read from the gateway for a single block.
	maxBlockSize = 1 << 20
)

type Config struct {
	// GatewayURL serves raw blocks at GET <GatewayURL>/blocks/<0x-address>.
	// Empty means resolve from the local store only.
	GatewayURL string

	// CacheSize is the number of decoded records kept in memory.
	CacheSize int
}

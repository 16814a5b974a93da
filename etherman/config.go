package etherman

import "github.com/ethereum/go-ethereum/common"

const defaultLogBufferSize = 128

type Config struct {
	// URL is the websocket URL of the node, log subscriptions need ws/ipc.
	URL string

	// BountyContractAddress is the deployed bounty contract.
	BountyContractAddress common.Address

	// RetroScanBlock makes the first subscription of every kind replay logs
	// from this block. -1 means live events only.
	RetroScanBlock int64

	// LogBufferSize is the channel size between the node and a subscription.
	LogBufferSize int
}

package etherman

import (
	"context"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	logger "github.com/sirupsen/logrus"

	"github.com/sunshine-protocol/bounty-bot/agreement"
)

// logClient is the part of the node API the bot needs.
type logClient interface {
	ethereum.LogFilterer
	ChainID(ctx context.Context) (*big.Int, error)
	Close()
}

// Etherman opens bounty event subscriptions against a node.
// It keeps, per kind and in memory only, the last block it delivered so
// that a fresh subscription can backfill what happened while the previous
// one was down.
type Etherman struct {
	cfg    *Config
	client logClient

	mu     sync.Mutex
	cursor map[agreement.EventKind]uint64

	closeOnce sync.Once
}

func NewEtherman(cfg *Config) (*Etherman, error) {
	client, err := ethclient.Dial(cfg.URL)
	if err != nil {
		return nil, err
	}

	chainID, err := client.ChainID(context.Background())
	if err != nil {
		logger.Error("failed to get chain ID")
		client.Close()
		return nil, err
	}
	logger.WithFields(logger.Fields{
		"chainId":  chainID,
		"contract": cfg.BountyContractAddress.Hex(),
	}).Info("connected to chain")

	return newEtherman(cfg, client), nil
}

func newEtherman(cfg *Config, client logClient) *Etherman {
	etherman := &Etherman{
		cfg:    cfg,
		client: client,
		cursor: make(map[agreement.EventKind]uint64),
	}
	if cfg.RetroScanBlock >= 0 {
		for _, kind := range agreement.AllEventKinds() {
			etherman.cursor[kind] = uint64(cfg.RetroScanBlock)
		}
	}
	return etherman
}

// Close disconnects from the node. Open subscriptions end with it.
func (etherman *Etherman) Close() {
	etherman.closeOnce.Do(func() {
		etherman.client.Close()
		logger.Info("disconnected from chain")
	})
}

// Subscribe implements agreement.EventSource.
func (etherman *Etherman) Subscribe(ctx context.Context, kind agreement.EventKind) (agreement.Subscription, error) {
	sig, ok := SignatureHash(kind)
	if !ok {
		return nil, ErrUnknownEventKind(kind)
	}

	query := ethereum.FilterQuery{
		Addresses: []ethcommon.Address{etherman.cfg.BountyContractAddress},
		Topics:    [][]ethcommon.Hash{{sig}},
	}

	bufSize := etherman.cfg.LogBufferSize
	if bufSize <= 0 {
		bufSize = defaultLogBufferSize
	}
	logs := make(chan types.Log, bufSize)

	// Go live first and backfill afterwards so nothing falls in between.
	sub, err := etherman.client.SubscribeFilterLogs(ctx, query, logs)
	if err != nil {
		return nil, ErrSubscribe(kind, err)
	}

	var backlog []types.Log
	if from, ok := etherman.lastDelivered(kind); ok {
		query.FromBlock = new(big.Int).SetUint64(from)
		backlog, err = etherman.client.FilterLogs(ctx, query)
		if err != nil {
			sub.Unsubscribe()
			return nil, ErrBackfill(kind, from, err)
		}
		logger.WithFields(logger.Fields{
			"kind":      kind,
			"fromBlock": from,
			"backlog":   len(backlog),
		}).Info("backfilling bounty events")
	}

	return newLogSubscription(kind, sub, logs, backlog, etherman.markDelivered), nil
}

func (etherman *Etherman) lastDelivered(kind agreement.EventKind) (uint64, bool) {
	etherman.mu.Lock()
	defer etherman.mu.Unlock()

	n, ok := etherman.cursor[kind]
	return n, ok
}

func (etherman *Etherman) markDelivered(kind agreement.EventKind, blockNumber uint64) {
	etherman.mu.Lock()
	defer etherman.mu.Unlock()

	if n, ok := etherman.cursor[kind]; !ok || blockNumber > n {
		etherman.cursor[kind] = blockNumber
	}
}

package offchain

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/ethereum/go-ethereum/common/lru"
	logger "github.com/sirupsen/logrus"

	"github.com/sunshine-protocol/bounty-bot/agreement"
)

// HTTPClient is the part of *http.Client the gateway fetch needs.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client resolves content addresses to bounty records. Lookups go through
// an in-memory cache, then the block store, then the gateway. Blocks from
// the gateway are verified before they are stored.
type Client struct {
	gatewayURL string
	httpClient HTTPClient
	store      BlockStore
	cache      *lru.Cache[agreement.ContentAddress, agreement.BountyRecord]
}

func NewClient(cfg *Config, store BlockStore, httpClient HTTPClient) *Client {
	size := cfg.CacheSize
	if size <= 0 {
		size = DefaultCacheSize
	}
	if store == nil {
		store = NewMemStore()
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		gatewayURL: strings.TrimRight(cfg.GatewayURL, "/"),
		httpClient: httpClient,
		store:      store,
		cache:      lru.NewCache[agreement.ContentAddress, agreement.BountyRecord](size),
	}
}

// Resolve implements agreement.Resolver.
func (c *Client) Resolve(ctx context.Context, addr agreement.ContentAddress) (agreement.BountyRecord, error) {
	if rec, ok := c.cache.Get(addr); ok {
		return rec, nil
	}

	block, err := c.store.Get(ctx, addr)
	switch {
	case err == nil:
		rec, err := verifyAndDecode(addr, block)
		if err != nil {
			return agreement.BountyRecord{}, agreement.ErrMalformed(addr, err)
		}
		c.cache.Add(addr, rec)
		return rec, nil
	case !errors.Is(err, ErrBlockNotFound):
		logger.WithFields(logger.Fields{
			"address": addr.Hex(),
			"error":   err,
		}).Warn("block store lookup failed, trying gateway")
	}

	block, err = c.fetch(ctx, addr)
	if err != nil {
		return agreement.BountyRecord{}, agreement.ErrNotYetAvailable(addr, err)
	}
	rec, err := verifyAndDecode(addr, block)
	if err != nil {
		return agreement.BountyRecord{}, agreement.ErrMalformed(addr, err)
	}

	if err := c.store.Put(ctx, addr, block); err != nil {
		logger.WithFields(logger.Fields{
			"address": addr.Hex(),
			"error":   err,
		}).Warn("failed to store fetched block")
	}
	c.cache.Add(addr, rec)

	logger.WithFields(logger.Fields{
		"address": addr.Hex(),
		"record":  rec.String(),
	}).Debug("block fetched from gateway")
	return rec, nil
}

// Put stores rec locally and returns its address.
func (c *Client) Put(ctx context.Context, rec agreement.BountyRecord) (agreement.ContentAddress, error) {
	if err := ValidateRecord(rec); err != nil {
		return agreement.ContentAddress{}, err
	}
	return PutRecord(ctx, c.store, rec)
}

func (c *Client) fetch(ctx context.Context, addr agreement.ContentAddress) ([]byte, error) {
	if c.gatewayURL == "" {
		return nil, ErrNoGateway
	}

	url := fmt.Sprintf("%s/blocks/%s", c.gatewayURL, addr.Hex())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/cbor")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gateway request failed: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrBlockNotFound
	case resp.StatusCode != http.StatusOK:
		return nil, ErrGatewayStatus(resp.StatusCode)
	}

	block, err := io.ReadAll(io.LimitReader(resp.Body, maxBlockSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read gateway response: %w", err)
	}
	return block, nil
}

func verifyAndDecode(addr agreement.ContentAddress, block []byte) (agreement.BountyRecord, error) {
	if got := Address(block); got != addr {
		return agreement.BountyRecord{}, ErrDigestMismatch(addr, got)
	}
	return DecodeRecord(block)
}

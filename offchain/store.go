package offchain

import (
	"context"
	"sync"

	"github.com/sunshine-protocol/bounty-bot/agreement"
)

// BlockStore keeps raw blocks by address. Get returns ErrBlockNotFound for
// unknown addresses. Put of an existing address is a no-op.
type BlockStore interface {
	Get(ctx context.Context, addr agreement.ContentAddress) ([]byte, error)
	Put(ctx context.Context, addr agreement.ContentAddress, block []byte) error
}

type MemStore struct {
	mu     sync.RWMutex
	blocks map[agreement.ContentAddress][]byte
}

func NewMemStore() *MemStore {
	return &MemStore{blocks: make(map[agreement.ContentAddress][]byte)}
}

func (s *MemStore) Get(ctx context.Context, addr agreement.ContentAddress) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	block, ok := s.blocks[addr]
	if !ok {
		return nil, ErrBlockNotFound
	}
	return append([]byte(nil), block...), nil
}

func (s *MemStore) Put(ctx context.Context, addr agreement.ContentAddress, block []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.blocks[addr]; !ok {
		s.blocks[addr] = append([]byte(nil), block...)
	}
	return nil
}

// PutRecord encodes rec into s and returns its address.
func PutRecord(ctx context.Context, s BlockStore, rec agreement.BountyRecord) (agreement.ContentAddress, error) {
	block, addr, err := EncodeRecord(rec)
	if err != nil {
		return agreement.ContentAddress{}, err
	}
	return addr, s.Put(ctx, addr, block)
}

package etherman

import (
	"context"
	"errors"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/sunshine-protocol/bounty-bot/agreement"
)

var (
	simulatedChainID = big.NewInt(1337)
	errSimClosed     = errors.New("client is closed")
)

// SimLogBackend is an in-memory node that serves log filters and log
// subscriptions. Logs are pushed in with Emit.
type SimLogBackend struct {
	mu           sync.Mutex
	history      []types.Log
	subs         map[*simSubscription]struct{}
	subscribeErr error
	subscribed   int
	closed       bool
}

func NewSimLogBackend() *SimLogBackend {
	return &SimLogBackend{subs: make(map[*simSubscription]struct{})}
}

// SimEtherman couples an Etherman with the simulated node it talks to.
type SimEtherman struct {
	Etherman *Etherman
	Backend  *SimLogBackend
}

func NewSimEtherman(cfg *Config) *SimEtherman {
	backend := NewSimLogBackend()
	return &SimEtherman{
		Etherman: newEtherman(cfg, backend),
		Backend:  backend,
	}
}

func (b *SimLogBackend) ChainID(ctx context.Context) (*big.Int, error) {
	return new(big.Int).Set(simulatedChainID), nil
}

func (b *SimLogBackend) FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	var out []types.Log
	for _, vlog := range b.history {
		if q.FromBlock != nil && vlog.BlockNumber < q.FromBlock.Uint64() {
			continue
		}
		if matchQuery(q, vlog) {
			out = append(out, vlog)
		}
	}
	return out, nil
}

func (b *SimLogBackend) SubscribeFilterLogs(ctx context.Context, q ethereum.FilterQuery, ch chan<- types.Log) (ethereum.Subscription, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, errSimClosed
	}
	if b.subscribeErr != nil {
		return nil, b.subscribeErr
	}

	sub := &simSubscription{
		backend: b,
		query:   q,
		ch:      ch,
		errCh:   make(chan error, 1),
		quit:    make(chan struct{}),
	}
	b.subs[sub] = struct{}{}
	b.subscribed++
	return sub, nil
}

// Emit records vlog and pushes it to every live subscription matching it.
func (b *SimLogBackend) Emit(vlog types.Log) {
	b.mu.Lock()
	b.history = append(b.history, vlog)
	var targets []*simSubscription
	for sub := range b.subs {
		if matchQuery(sub.query, vlog) {
			targets = append(targets, sub)
		}
	}
	b.mu.Unlock()

	for _, sub := range targets {
		select {
		case sub.ch <- vlog:
		case <-sub.quit:
		}
	}
}

// DropSubscriptions fails every live subscription of the given kind, the
// way a node drops a websocket.
func (b *SimLogBackend) DropSubscriptions(kind agreement.EventKind) int {
	sig, _ := SignatureHash(kind)

	b.mu.Lock()
	var dropped []*simSubscription
	for sub := range b.subs {
		if len(sub.query.Topics) > 0 && len(sub.query.Topics[0]) > 0 && sub.query.Topics[0][0] == sig {
			dropped = append(dropped, sub)
			delete(b.subs, sub)
		}
	}
	b.mu.Unlock()

	for _, sub := range dropped {
		sub.errCh <- errors.New("websocket: close 1006 (abnormal closure)")
	}
	return len(dropped)
}

// Close shuts the node down: live subscriptions fail and new ones are
// refused.
func (b *SimLogBackend) Close() {
	b.mu.Lock()
	b.closed = true
	dropped := make([]*simSubscription, 0, len(b.subs))
	for sub := range b.subs {
		dropped = append(dropped, sub)
		delete(b.subs, sub)
	}
	b.mu.Unlock()

	for _, sub := range dropped {
		sub.errCh <- errSimClosed
	}
}

// Closed reports whether Close was called.
func (b *SimLogBackend) Closed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}

// SetSubscribeError makes every following SubscribeFilterLogs fail with err.
// Pass nil to recover.
func (b *SimLogBackend) SetSubscribeError(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribeErr = err
}

// Subscribed returns how many subscriptions were opened so far.
func (b *SimLogBackend) Subscribed() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.subscribed
}

// Live returns the number of subscriptions not yet closed or dropped.
func (b *SimLogBackend) Live() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

func matchQuery(q ethereum.FilterQuery, vlog types.Log) bool {
	if len(q.Addresses) > 0 {
		found := false
		for _, addr := range q.Addresses {
			if addr == vlog.Address {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	for i, alternatives := range q.Topics {
		if len(alternatives) == 0 {
			continue
		}
		if i >= len(vlog.Topics) {
			return false
		}
		found := false
		for _, topic := range alternatives {
			if topic == vlog.Topics[i] {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

type simSubscription struct {
	backend  *SimLogBackend
	query    ethereum.FilterQuery
	ch       chan<- types.Log
	errCh    chan error
	quit     chan struct{}
	quitOnce sync.Once
}

func (s *simSubscription) Unsubscribe() {
	s.quitOnce.Do(func() {
		s.backend.mu.Lock()
		delete(s.backend.subs, s)
		s.backend.mu.Unlock()
		close(s.quit)
	})
}

func (s *simSubscription) Err() <-chan error {
	return s.errCh
}

// LogBuilder packs bounty events into node logs, as the contract would.
type LogBuilder struct {
	Contract ethcommon.Address

	bountyABI abi.ABI
	block     uint64
	index     uint
}

func NewLogBuilder(contract ethcommon.Address) *LogBuilder {
	parsed, err := abi.JSON(strings.NewReader(BountyABI))
	if err != nil {
		panic(err)
	}
	return &LogBuilder{Contract: contract, bountyABI: parsed, block: 1}
}

// NextBlock moves following logs to a new block.
func (lb *LogBuilder) NextBlock() {
	lb.block++
	lb.index = 0
}

func (lb *LogBuilder) BountyPosted(id uint64, amount *big.Int, description ethcommon.Hash) types.Log {
	return lb.build("BountyPosted", []uint64{id}, amount, description)
}

func (lb *LogBuilder) BountyRaiseContribution(bountyID uint64, amount, total *big.Int, bountyRef ethcommon.Hash) types.Log {
	return lb.build("BountyRaiseContribution", []uint64{bountyID}, amount, total, bountyRef)
}

func (lb *LogBuilder) BountySubmissionPosted(id, bountyID uint64, amount *big.Int, bountyRef, submissionRef ethcommon.Hash) types.Log {
	return lb.build("BountySubmissionPosted", []uint64{id, bountyID}, amount, bountyRef, submissionRef)
}

func (lb *LogBuilder) BountyPaymentExecuted(submissionID, bountyID uint64, amount, newTotal *big.Int, bountyRef, submissionRef ethcommon.Hash) types.Log {
	return lb.build("BountyPaymentExecuted", []uint64{submissionID, bountyID}, amount, newTotal, bountyRef, submissionRef)
}

func (lb *LogBuilder) build(name string, indexed []uint64, values ...interface{}) types.Log {
	event := lb.bountyABI.Events[name]

	args := make([]interface{}, len(values))
	for i, v := range values {
		if h, ok := v.(ethcommon.Hash); ok {
			args[i] = [32]byte(h)
		} else {
			args[i] = v
		}
	}
	data, err := event.Inputs.NonIndexed().Pack(args...)
	if err != nil {
		panic(err)
	}

	topics := []ethcommon.Hash{event.ID}
	for _, n := range indexed {
		topics = append(topics, ethcommon.BigToHash(new(big.Int).SetUint64(n)))
	}

	vlog := types.Log{
		Address:     lb.Contract,
		Topics:      topics,
		Data:        data,
		BlockNumber: lb.block,
		TxHash:      ethcommon.BigToHash(new(big.Int).SetUint64(lb.block<<16 | uint64(lb.index))),
		Index:       lb.index,
	}
	lb.index++
	return vlog
}

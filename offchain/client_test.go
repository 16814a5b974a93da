package offchain

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sunshine-protocol/bounty-bot/agreement"
)

// gateway is a fake block gateway backed by a MemStore.
type gateway struct {
	blocks *MemStore
	hits   atomic.Int32
	status int
}

func newGateway() (*gateway, *httptest.Server) {
	gw := &gateway{blocks: NewMemStore()}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gw.hits.Add(1)
		if gw.status != 0 {
			w.WriteHeader(gw.status)
			return
		}
		hex := strings.TrimPrefix(r.URL.Path, "/blocks/")
		if b, err := hexutil.Decode("0x" + hex); err != nil || len(b) != ethcommon.HashLength {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		block, err := gw.blocks.Get(r.Context(), ethcommon.HexToHash(hex))
		if err != nil {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/cbor")
		_, _ = w.Write(block)
	}))
	return gw, srv
}

func TestResolveFromGateway(t *testing.T) {
	gw, srv := newGateway()
	defer srv.Close()
	ctx := context.Background()

	addr, err := PutRecord(ctx, gw.blocks, sunshine8)
	require.NoError(t, err)

	store := NewMemStore()
	client := NewClient(&Config{GatewayURL: srv.URL + "/"}, store, srv.Client())

	rec, err := client.Resolve(ctx, addr)
	require.NoError(t, err)
	assert.Equal(t, sunshine8, rec)
	assert.Equal(t, int32(1), gw.hits.Load())

	// written back to the store
	_, err = store.Get(ctx, addr)
	assert.NoError(t, err)

	// served from cache afterwards
	rec, err = client.Resolve(ctx, addr)
	require.NoError(t, err)
	assert.Equal(t, sunshine8, rec)
	assert.Equal(t, int32(1), gw.hits.Load())
}

func TestResolveFromStore(t *testing.T) {
	gw, srv := newGateway()
	defer srv.Close()
	ctx := context.Background()

	store := NewMemStore()
	addr, err := PutRecord(ctx, store, sunshine8)
	require.NoError(t, err)

	client := NewClient(&Config{GatewayURL: srv.URL}, store, srv.Client())
	rec, err := client.Resolve(ctx, addr)
	require.NoError(t, err)
	assert.Equal(t, sunshine8, rec)
	assert.Equal(t, int32(0), gw.hits.Load())
}

func TestResolveNotYetAvailable(t *testing.T) {
	gw, srv := newGateway()
	defer srv.Close()
	ctx := context.Background()

	_, addr, err := EncodeRecord(sunshine8)
	require.NoError(t, err)
	client := NewClient(&Config{GatewayURL: srv.URL}, nil, srv.Client())

	_, err = client.Resolve(ctx, addr)
	assert.True(t, agreement.IsNotYetAvailable(err))
	assert.ErrorIs(t, err, ErrBlockNotFound)

	// the block shows up later
	_, err = PutRecord(ctx, gw.blocks, sunshine8)
	require.NoError(t, err)
	rec, err := client.Resolve(ctx, addr)
	require.NoError(t, err)
	assert.Equal(t, sunshine8, rec)
}

func TestResolveGatewayDown(t *testing.T) {
	gw, srv := newGateway()
	defer srv.Close()
	gw.status = http.StatusBadGateway

	_, addr, err := EncodeRecord(sunshine8)
	require.NoError(t, err)
	client := NewClient(&Config{GatewayURL: srv.URL}, nil, srv.Client())

	_, err = client.Resolve(context.Background(), addr)
	assert.True(t, agreement.IsNotYetAvailable(err))
	assert.False(t, agreement.IsMalformed(err))
}

func TestResolveTransportError(t *testing.T) {
	_, srv := newGateway()
	url := srv.URL
	srv.Close()

	_, addr, err := EncodeRecord(sunshine8)
	require.NoError(t, err)
	client := NewClient(&Config{GatewayURL: url}, nil, nil)

	_, err = client.Resolve(context.Background(), addr)
	assert.True(t, agreement.IsNotYetAvailable(err))
}

func TestResolveNoGateway(t *testing.T) {
	_, addr, err := EncodeRecord(sunshine8)
	require.NoError(t, err)
	client := NewClient(&Config{}, nil, nil)

	_, err = client.Resolve(context.Background(), addr)
	assert.True(t, agreement.IsNotYetAvailable(err))
	assert.ErrorIs(t, err, ErrNoGateway)
}

func TestResolveDigestMismatch(t *testing.T) {
	gw, srv := newGateway()
	defer srv.Close()
	ctx := context.Background()

	block, addr, err := EncodeRecord(sunshine8)
	require.NoError(t, err)
	other := sunshine8
	other.RepoName = "other"
	otherBlock, _, err := EncodeRecord(other)
	require.NoError(t, err)

	// the gateway serves a different block under addr
	require.NoError(t, gw.blocks.Put(ctx, addr, otherBlock))
	store := NewMemStore()
	client := NewClient(&Config{GatewayURL: srv.URL}, store, srv.Client())

	_, err = client.Resolve(ctx, addr)
	assert.True(t, agreement.IsMalformed(err))
	_, err = store.Get(ctx, addr)
	assert.ErrorIs(t, err, ErrBlockNotFound)
	assert.NotEqual(t, block, otherBlock)
}

func TestResolveMalformedDocument(t *testing.T) {
	ctx := context.Background()
	store := NewMemStore()

	bad := agreement.BountyRecord{RepoOwner: "sunshine-protocol", RepoName: "sunshine"}
	block, addr, err := EncodeRecord(bad)
	require.NoError(t, err)
	require.NoError(t, store.Put(ctx, addr, block))

	client := NewClient(&Config{}, store, nil)
	_, err = client.Resolve(ctx, addr)
	assert.True(t, agreement.IsMalformed(err))

	var re *agreement.ResolveError
	require.True(t, errors.As(err, &re))
	assert.Equal(t, addr, re.Address)
}

func TestClientPut(t *testing.T) {
	ctx := context.Background()
	client := NewClient(&Config{}, nil, nil)

	addr, err := client.Put(ctx, sunshine8)
	require.NoError(t, err)
	rec, err := client.Resolve(ctx, addr)
	require.NoError(t, err)
	assert.Equal(t, sunshine8, rec)

	_, err = client.Put(ctx, agreement.BountyRecord{})
	assert.Error(t, err)
}

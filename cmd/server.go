// Server = chain event source + off-chain resolver + comment api
// + failure journal + http reporter, driven by the bounty supervisor.
// All components are configured via environment variables (strings!).

package cmd

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	ethcommon "github.com/ethereum/go-ethereum/common"
	logger "github.com/sirupsen/logrus"

	"github.com/sunshine-protocol/bounty-bot/agreement"
	"github.com/sunshine-protocol/bounty-bot/bountysync"
	"github.com/sunshine-protocol/bounty-bot/database"
	"github.com/sunshine-protocol/bounty-bot/etherman"
	"github.com/sunshine-protocol/bounty-bot/gbot"
	"github.com/sunshine-protocol/bounty-bot/journal"
	"github.com/sunshine-protocol/bounty-bot/offchain"
	"github.com/sunshine-protocol/bounty-bot/reporter"
)

// Default params for server.
// More often we don't recommend users to tweak those.
const (
	DefaultResubscribeBackoff = 2 * time.Second
	DefaultGithubRatePerSec   = 1.0
	DefaultGithubBurst        = 5
	DefaultApplyTimeout       = 30 * time.Second

	applyQueueSize = 16
)

// Keep the configuration's fields as "text" as possible.
// Its easier to load it from env vars or a config file.
type BotServerConfig struct {
	// chain side
	ChainRpcUrl        string                // websocket rpc url, log subscriptions need ws/ipc
	BountyContractAddr string                // deployed bounty contract
	ChainRetroScanBlk  int64                 // replay events from this block on start, -1 for live only
	EventSource        agreement.EventSource // optional, replaces the node at ChainRpcUrl

	// off-chain side
	OffchainGatewayUrl string // block gateway, empty to resolve from the local store only
	DbFilePath         string // sqlite file for blocks and the failure journal, empty for in-memory
	RedisAddr          string // optional shared block cache, replaces the sqlite block store
	RedisPassword      string
	RedisDb            int

	// github side
	GithubApiUrl     string  // eg. https://api.github.com
	GithubToken      string  // personal access token
	GithubDryRun     bool    // log comments instead of posting them
	GithubRatePerSec float64 // outgoing requests per second, negative for unlimited
	GithubBurst      int

	// Http side
	HttpIp   string // eg. 0.0.0.0
	HttpPort string // eg. 8080, empty disables the reporter

	ResubscribeBackoff time.Duration
	ApplyTimeout       time.Duration // bounds one comment write, also the github http timeout
}

// BotServer holds the objects that consists of the bot server.
type BotServer struct {
	MyEventSource agreement.EventSource
	MyDecoder     *etherman.Decoder
	MyBlockStore  offchain.BlockStore
	MyResolver    *offchain.Client
	MyCommentAPI  agreement.CommentAPI
	MyJournal     *journal.Journal
	MySupervisor  *bountysync.Supervisor
	MyReporter    *reporter.HttpReporter

	db     *sql.DB
	closer func()
	chain  *etherman.Etherman // only when dialled here, an injected source is the caller's

	mu  sync.Mutex
	err error
}

// NewBotServer creates and starts a new bot server.
// ctx is used for parental context to cancel the operation of bot server.
// wg is used to wait for all the goroutines inside the server (supervisor, reporter) to finish.
func NewBotServer(bsc *BotServerConfig, ctx context.Context, wg *sync.WaitGroup) (*BotServer, error) {
	server := &BotServer{MyEventSource: bsc.EventSource}
	ok := false
	defer func() {
		if !ok {
			server.Close()
		}
	}()

	// 1) chain side
	if server.MyEventSource == nil {
		if !ethcommon.IsHexAddress(bsc.BountyContractAddr) {
			return nil, fmt.Errorf("invalid bounty contract address: %q", bsc.BountyContractAddr)
		}
		myEtherman, err := etherman.NewEtherman(&etherman.Config{
			URL:                   bsc.ChainRpcUrl,
			BountyContractAddress: ethcommon.HexToAddress(bsc.BountyContractAddr),
			RetroScanBlock:        bsc.ChainRetroScanBlk,
		})
		if err != nil {
			logger.Errorf("failed to create etherman: %v", err)
			return nil, err
		}
		server.chain = myEtherman
		server.MyEventSource = myEtherman
	}

	myDecoder, err := etherman.NewDecoder()
	if err != nil {
		return nil, err
	}
	server.MyDecoder = myDecoder

	// 2) db, shared by the block store and the journal
	dbPath := bsc.DbFilePath
	if dbPath == "" {
		dbPath = database.MemoryPath
	}
	db, err := database.OpenSQLite(dbPath)
	if err != nil {
		logger.Errorf("failed to open db file: %v", err)
		return nil, err
	}
	server.db = db

	myJournal, err := journal.NewJournal(db)
	if err != nil {
		logger.Errorf("failed to create failure journal: %v", err)
		return nil, err
	}
	server.MyJournal = myJournal

	// 3) off-chain side
	if bsc.RedisAddr != "" {
		redisStore, err := offchain.NewRedisStore(ctx, &offchain.RedisConfig{
			Addr:     bsc.RedisAddr,
			Password: bsc.RedisPassword,
			DB:       bsc.RedisDb,
		})
		if err != nil {
			logger.Errorf("failed to connect to redis at %s: %v", bsc.RedisAddr, err)
			return nil, err
		}
		server.MyBlockStore = redisStore
		server.closer = func() { redisStore.Close() }
	} else {
		sqliteStore, err := offchain.NewSQLiteStore(db)
		if err != nil {
			logger.Errorf("failed to create block store: %v", err)
			return nil, err
		}
		server.MyBlockStore = sqliteStore
		server.closer = sqliteStore.Close
	}
	server.MyResolver = offchain.NewClient(&offchain.Config{GatewayURL: bsc.OffchainGatewayUrl}, server.MyBlockStore, nil)

	// 4) github side
	applyTimeout := bsc.ApplyTimeout
	if applyTimeout <= 0 {
		applyTimeout = DefaultApplyTimeout
	}
	if bsc.GithubDryRun {
		logger.Warn("dry run: comments are logged, not posted")
		server.MyCommentAPI = gbot.NewSimCommentAPI()
	} else {
		client, err := gbot.NewClient(ctx, &gbot.Config{
			BaseURL:           bsc.GithubApiUrl,
			Token:             bsc.GithubToken,
			RequestsPerSecond: bsc.GithubRatePerSec,
			Burst:             bsc.GithubBurst,
		}, &http.Client{Timeout: applyTimeout})
		if err != nil {
			logger.Errorf("failed to create github client: %v", err)
			return nil, err
		}
		server.MyCommentAPI = client
	}

	// 5) the pipeline
	server.MySupervisor = bountysync.NewSupervisor(
		&bountysync.Config{
			ResubscribeBackoff: bsc.ResubscribeBackoff,
			ApplyQueueSize:     applyQueueSize,
			ApplyTimeout:       applyTimeout,
		},
		server.MyEventSource,
		myDecoder,
		server.MyResolver,
		server.MyCommentAPI,
		myJournal,
	)

	ctx, cancel := context.WithCancel(ctx)

	// Important: Turn on the components!
	wg.Add(1)
	go func() {
		defer wg.Done()
		// the reporter goes down with the supervisor
		defer cancel()
		err := server.MySupervisor.Run(ctx)
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Errorf("bounty sync failed: %v", err)
			server.setErr(err)
		}
	}()

	if bsc.HttpPort != "" {
		server.MyReporter = reporter.NewHttpReporter(bsc.HttpIp, bsc.HttpPort, server.MySupervisor, myJournal)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := server.MyReporter.Run(ctx); err != nil {
				logger.Errorf("http reporter failed: %v", err)
				server.setErr(err)
				cancel()
			}
		}()
	}
	// Don't forget to call wg.Wait() in the main routine.

	ok = true
	return server, nil
}

func (s *BotServer) setErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err == nil {
		s.err = err
	}
}

// Err returns the error that brought the server down, if any.
func (s *BotServer) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Close releases the stores and the node connection. Call it once the
// goroutines are done.
func (s *BotServer) Close() {
	if s.chain != nil {
		s.chain.Close()
	}
	if s.MyJournal != nil {
		s.MyJournal.Close()
	}
	if s.closer != nil {
		s.closer()
	}
	if s.db != nil {
		s.db.Close()
	}
}

// Create, then start the bot server and wait.
// Press Ctrl-C to kill the server.
func StartBotServerAndWait(bsc *BotServerConfig) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Set up a signal channel to listen for Ctrl-C (SIGINT) or SIGTERM
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	go func() {
		select {
		case sig := <-sigCh:
			logger.Infof("received signal: %v, cancelling context...", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	var wg sync.WaitGroup

	server, err := NewBotServer(bsc, ctx, &wg)
	if err != nil {
		return err
	}

	// wait for all routines to finish (which is forever)
	wg.Wait()
	server.Close()
	return server.Err()
}

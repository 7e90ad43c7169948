package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/ardanlabs/conf/v3"
	"github.com/ethereum/go-ethereum/common"
	"github.com/rainblock/verifier/app/services/verifier/handlers"
	"github.com/rainblock/verifier/foundation/blockchain/block"
	"github.com/rainblock/verifier/foundation/blockchain/execution"
	"github.com/rainblock/verifier/foundation/blockchain/generator"
	"github.com/rainblock/verifier/foundation/blockchain/genesis"
	"github.com/rainblock/verifier/foundation/blockchain/learner"
	"github.com/rainblock/verifier/foundation/blockchain/peer"
	"github.com/rainblock/verifier/foundation/blockchain/shard"
	"github.com/rainblock/verifier/foundation/blockchain/telemetry"
	"github.com/rainblock/verifier/foundation/blockchain/txqueue"
	"github.com/rainblock/verifier/foundation/events"
	"github.com/rainblock/verifier/foundation/logger"
	"go.uber.org/zap"
)

// build is the git version of this program. It is set using build
// flags in the makefile.
var build = "develop"

func main() {
	log, err := logger.New("VERIFIER")
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := run(log); err != nil {
		log.Errorw("startup", "ERROR", err)
		log.Sync()
		os.Exit(1)
	}
}

func run(log *zap.SugaredLogger) error {

	// =========================================================================
	// Configuration

	cfg := struct {
		conf.Version
		Web struct {
			ReadTimeout     time.Duration `conf:"default:5s"`
			WriteTimeout    time.Duration `conf:"default:10s"`
			IdleTimeout     time.Duration `conf:"default:120s"`
			ShutdownTimeout time.Duration `conf:"default:20s"`
			DebugHost       string        `conf:"default:0.0.0.0:7080"`
			PublicHost      string        `conf:"default:0.0.0.0:8080"`
			PrivateHost     string        `conf:"default:0.0.0.0:9080"`
		}
		Verifier struct {
			Beneficiary          string        `conf:"default:0x0000000000000000000000000000000000000000"`
			ConfigDir            string        `conf:"default:zblock/"`
			GenesisBlock         string        `conf:"default:genesis_block.rlp"`
			GenesisData          string        `conf:"default:genesis_data.json"`
			PowMin               time.Duration `conf:"default:5s"`
			PowMax               time.Duration `conf:"default:12s"`
			MaxTxPerBlock        int           `conf:"default:0"`
			PruneDepth           int           `conf:"default:128"`
			ShareBag             bool          `conf:"default:false"`
			GenerateFromAccounts bool          `conf:"default:false"`
			DisableNonceCheck    bool          `conf:"default:false"`
			KnownPeers           []string      `conf:"default:"`
			CheckpointPath       string        `conf:"default:checkpoint.txt"`
			CheckpointInterval   uint64        `conf:"default:100"`
		}
		RPC struct {
			StorageTimeout time.Duration `conf:"default:2s"`
		}
		Storage struct {
			Shards []string `conf:"default:"`
		}
	}{
		Version: conf.Version{
			Build: build,
			Desc:  "copyright information here",
		},
	}

	const prefix = "VERIFIER"
	help, err := conf.Parse(prefix, &cfg)
	if err != nil {
		if errors.Is(err, conf.ErrHelpWanted) {
			fmt.Println(help)
			return nil
		}
		return fmt.Errorf("parsing config: %w", err)
	}

	// =========================================================================
	// App Starting

	log.Infow("starting service", "version", build)
	defer log.Infow("shutdown complete")

	out, err := conf.String(&cfg)
	if err != nil {
		return fmt.Errorf("generating config for output: %w", err)
	}
	log.Infow("startup", "config", out)

	if !common.IsHexAddress(cfg.Verifier.Beneficiary) {
		return fmt.Errorf("startup: beneficiary %q is not a valid hex address", cfg.Verifier.Beneficiary)
	}
	beneficiary := common.HexToAddress(cfg.Verifier.Beneficiary)

	// =========================================================================
	// Event Support

	evts := events.New()
	ev := func(v string, args ...any) {
		s := fmt.Sprintf(v, args...)
		log.Infow(s, "traceid", "00000000-0000-0000-0000-000000000000")
		evts.Send(s)
	}

	// =========================================================================
	// Genesis: seed the state trie and the chain's starting point

	dataPath := filepath.Join(cfg.Verifier.ConfigDir, cfg.Verifier.GenesisData)
	dataFile, err := os.Open(dataPath)
	if err != nil {
		return fmt.Errorf("startup: open genesis data %s: %w", dataPath, err)
	}
	tree, _, err := genesis.Load(dataFile, cfg.Verifier.PruneDepth)
	dataFile.Close()
	if err != nil {
		return fmt.Errorf("startup: load genesis data: %w", err)
	}

	blockPath := filepath.Join(cfg.Verifier.ConfigDir, cfg.Verifier.GenesisBlock)
	blockBytes, err := os.ReadFile(blockPath)
	if err != nil {
		return fmt.Errorf("startup: read genesis block %s: %w", blockPath, err)
	}
	genesisBlock, err := block.Decode(blockBytes)
	if err != nil {
		return fmt.Errorf("startup: decode genesis block: %w", err)
	}

	parentHash, err := genesisBlock.Header.Hash()
	if err != nil {
		return fmt.Errorf("startup: hash genesis block header: %w", err)
	}
	blockNumber := genesisBlock.Header.Number + 1

	log.Infow("startup", "status", "genesis loaded", "stateRoot", tree.RootHash(), "startHeight", blockNumber)

	// =========================================================================
	// Core Blockchain Support

	queue := txqueue.New()
	lrn := learner.New(ev)
	peers := peer.NewSet()
	for _, host := range cfg.Verifier.KnownPeers {
		peers.Add(peer.New(host))
	}

	var shards [shard.Count]shard.Client
	for i, host := range cfg.Storage.Shards {
		if i >= shard.Count {
			log.Infow("startup", "status", "ignoring extra configured shard host beyond 16", "host", host)
			break
		}
		if host == "" {
			continue
		}
		shards[i] = shard.NewHTTPClient(host, nil)
	}

	engine := execution.New(execution.Config{
		GenerateFromAccounts: cfg.Verifier.GenerateFromAccounts,
		DisableNonceCheck:    cfg.Verifier.DisableNonceCheck,
		ShareBag:             cfg.Verifier.ShareBag,
	}, ev)

	checkpointFile, err := os.OpenFile(cfg.Verifier.CheckpointPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("startup: open checkpoint file: %w", err)
	}
	defer checkpointFile.Close()
	checkpoint := telemetry.New(checkpointFile, cfg.Verifier.CheckpointInterval)

	gen := generator.New(
		generator.Config{
			Beneficiary:    beneficiary,
			Difficulty:     genesisBlock.Header.Difficulty,
			GasLimit:       genesisBlock.Header.GasLimit,
			PowMin:         cfg.Verifier.PowMin,
			PowMax:         cfg.Verifier.PowMax,
			MaxTxPerBlock:  cfg.Verifier.MaxTxPerBlock,
			PruneDepth:     cfg.Verifier.PruneDepth,
			StorageTimeout: cfg.RPC.StorageTimeout,
		},
		tree, blockNumber, parentHash,
		engine, lrn, queue, shards,
		neighborAdapter{peers: peers, client: peer.NewClient(nil)},
		replyAdapter(evts),
		ev,
		checkpoint,
	)

	go func() {
		if err := gen.Run(context.Background()); err != nil && !errors.Is(err, generator.ErrShutdown) {
			log.Errorw("generator", "ERROR", err)
		}
	}()
	defer gen.Shutdown()

	// =========================================================================
	// Peer Discovery

	syncer := peer.NewSyncer(cfg.Web.PrivateHost, peers, peer.NewClient(nil), ev)
	syncTicker := time.NewTicker(time.Minute)
	defer syncTicker.Stop()

	syncCtx, cancelSync := context.WithCancel(context.Background())
	defer cancelSync()
	go func() {
		syncer.Sync(syncCtx)
		for {
			select {
			case <-syncTicker.C:
				syncer.Sync(syncCtx)
			case <-syncCtx.Done():
				return
			}
		}
	}()

	// =========================================================================
	// Start Debug Service

	log.Infow("startup", "status", "debug v1 router started", "host", cfg.Web.DebugHost)

	debugMux := handlers.DebugMux(build, log)
	go func() {
		if err := http.ListenAndServe(cfg.Web.DebugHost, debugMux); err != nil {
			log.Errorw("shutdown", "status", "debug v1 router closed", "host", cfg.Web.DebugHost, "ERROR", err)
		}
	}()

	// =========================================================================
	// Service Start/Stop Support

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)

	// =========================================================================
	// Start Public Service

	log.Infow("startup", "status", "initializing V1 public API support")

	publicMux := handlers.PublicMux(handlers.MuxConfig{
		Shutdown:    shutdown,
		Log:         log,
		Queue:       queue,
		Beneficiary: beneficiary,
		Evts:        evts,
		Learner:     lrn,
		Peers:       peers,
		Self:        cfg.Web.PrivateHost,
	})

	public := http.Server{
		Addr:         cfg.Web.PublicHost,
		Handler:      publicMux,
		ReadTimeout:  cfg.Web.ReadTimeout,
		WriteTimeout: cfg.Web.WriteTimeout,
		IdleTimeout:  cfg.Web.IdleTimeout,
		ErrorLog:     zap.NewStdLog(log.Desugar()),
	}

	go func() {
		log.Infow("startup", "status", "public api router started", "host", public.Addr)
		serverErrors <- public.ListenAndServe()
	}()

	// =========================================================================
	// Start Private Service

	log.Infow("startup", "status", "initializing V1 private API support")

	privateMux := handlers.PrivateMux(handlers.MuxConfig{
		Shutdown: shutdown,
		Log:      log,
		Learner:  lrn,
		Peers:    peers,
		Self:     cfg.Web.PrivateHost,
	})

	private := http.Server{
		Addr:         cfg.Web.PrivateHost,
		Handler:      privateMux,
		ReadTimeout:  cfg.Web.ReadTimeout,
		WriteTimeout: cfg.Web.WriteTimeout,
		IdleTimeout:  cfg.Web.IdleTimeout,
		ErrorLog:     zap.NewStdLog(log.Desugar()),
	}

	go func() {
		log.Infow("startup", "status", "private api router started", "host", private.Addr)
		serverErrors <- private.ListenAndServe()
	}()

	// =========================================================================
	// Shutdown

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)

	case sig := <-shutdown:
		log.Infow("shutdown", "status", "shutdown started", "signal", sig)
		defer log.Infow("shutdown", "status", "shutdown complete", "signal", sig)

		log.Infow("shutdown", "status", "shutdown web socket channels")
		evts.Shutdown()

		ctx, cancelPub := context.WithTimeout(context.Background(), cfg.Web.ShutdownTimeout)
		defer cancelPub()

		log.Infow("shutdown", "status", "shutdown private API started")
		if err := private.Shutdown(ctx); err != nil {
			private.Close()
			return fmt.Errorf("could not stop private service gracefully: %w", err)
		}

		ctx, cancelPri := context.WithTimeout(context.Background(), cfg.Web.ShutdownTimeout)
		defer cancelPri()

		log.Infow("shutdown", "status", "shutdown public API started")
		if err := public.Shutdown(ctx); err != nil {
			public.Close()
			return fmt.Errorf("could not stop public service gracefully: %w", err)
		}
	}

	return nil
}

// neighborAdapter implements generator.Neighbors over the peer set and
// an HTTP client: advertising a node or a block means POSTing it to
// every currently known peer's private advertise endpoint.
type neighborAdapter struct {
	peers  *peer.Set
	client *peer.Client
}

func (n neighborAdapter) AdvertiseBlock(blk block.Block) {
	rlpBlock, err := block.Encode(blk)
	if err != nil {
		return
	}
	for _, p := range n.peers.Copy("") {
		go postAdvertiseBlock(n.client, p.Host, rlpBlock)
	}
}

func (n neighborAdapter) AdvertiseNodes(nodes map[common.Hash][]byte) {
	if len(nodes) == 0 {
		return
	}
	list := make([][]byte, 0, len(nodes))
	for _, raw := range nodes {
		list = append(list, raw)
	}
	for _, p := range n.peers.Copy("") {
		go postAdvertiseNodes(n.client, p.Host, list)
	}
}

func postAdvertiseBlock(client *peer.Client, host string, rlpBlock []byte) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = client.AdvertiseBlock(ctx, host, rlpBlock)
}

func postAdvertiseNodes(client *peer.Client, host string, nodes [][]byte) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = client.AdvertiseNodes(ctx, host, nodes)
}

// replyAdapter turns a generator reply (replyHandle, errorCode) into a
// broadcast line on the live event feed — this reference build has no
// durable per-client reply channel, so a submitting client instead
// watches its own replyHandle go by on the websocket feed it already
// holds open.
func replyAdapter(evts *events.Events) generator.ReplyFunc {
	return func(replyHandle string, code txqueue.ErrorCode) {
		if replyHandle == "" {
			return
		}
		evts.Send(fmt.Sprintf("tx reply: handle[%s] code[%d]", replyHandle, code))
	}
}

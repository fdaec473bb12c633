package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/defistate/defistate-router-go/chains/ethereum"
	"github.com/defistate/defistate-router-go/cmd/routerd/config"
	"github.com/defistate/defistate-router-go/differ"
	"github.com/defistate/defistate-router-go/engine"
	"github.com/defistate/defistate-router-go/protocols/balancerv2"
	"github.com/defistate/defistate-router-go/protocols/uniswapv2"
	"github.com/defistate/defistate-router-go/protocols/uniswapv3"
	"github.com/defistate/defistate-router-go/router"
	"github.com/defistate/defistate-router-go/routing"
	"github.com/defistate/defistate-router-go/streams/jsonrpc/client"
	"github.com/defistate/defistate-router-go/streams/jsonrpc/stateops"
	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	_ "go.uber.org/automaxprocs"
)

const (
	DefaultClientStateBufferSize = 100
	DefaultUpdateBufferSize      = 256
)

type RoutingStateOps interface {
	Diff(old *engine.RouteState, new *engine.RouteState) (*differ.RouteStateDiff, error)
	Patch(oldState *engine.RouteState, diff *differ.RouteStateDiff) (*engine.RouteState, error)
	DecodeStateJSON(schema engine.TableSchema, data json.RawMessage) (any, error)
	DecodeStateDiffJSON(schema engine.TableSchema, data json.RawMessage) (any, error)
}

func main() {
	// create the log handler
	rootLogHandler := slog.NewJSONHandler(os.Stdout, nil)
	close := func() {
		os.Exit(1)
	}

	rootLogger := slog.New(rootLogHandler)
	prometheusRegistry := prometheus.DefaultRegisterer
	cfg, routes, err := loadConfig()
	if err != nil {
		rootLogger.Error("Failed to load configuration", "error", err)
		close()
	}

	// Create a context that cancels when the OS sends an interrupt (Ctrl+C) or termination signal.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go serveMetrics(rootLogger, cfg.MetricsListenAddr)

	codec := routing.NewCodec()
	for backend, decode := range map[engine.Backend]routing.DecodeFunc{
		engine.BackendConstantProduct:       uniswapv2.DecodeRoute,
		engine.BackendConcentratedLiquidity: uniswapv3.DecodeRoute,
		engine.BackendWeightedVaultBatch:    balancerv2.DecodeRoute,
	} {
		if err := codec.Register(backend, decode); err != nil {
			rootLogger.Error("Failed to register payload decoder", "backend", backend, "error", err)
			close()
		}
	}

	var routingOps RoutingStateOps
	routingOps, err = stateops.NewStateOps(rootLogger, prometheusRegistry, codec)
	if err != nil {
		rootLogger.Error("Failed to initialize Routing State Ops", "error", err)
		close()
	}

	system := routing.NewSystem(rootLogger.With("component", "routing-system"), DefaultUpdateBufferSize)

	// Log every committed route change, local or streamed.
	go func() {
		for change := range system.Updates() {
			rootLogger.Info("Route changed",
				"pairKey", change.Key.Hex(),
				"tokenA", change.TokenA.Hex(),
				"tokenB", change.TokenB.Hex(),
				"backend", change.Backend,
			)
		}
	}()

	if routes != nil {
		if err := applyRoutes(ctx, rootLogger, prometheusRegistry, cfg, routes, system); err != nil {
			rootLogger.Error("Failed to apply declarative routes", "error", err)
			close()
		}
	}

	streamClient, err := client.NewClient(
		ctx,
		client.Config{
			URL:              cfg.StateStreamURL,
			Logger:           rootLogger.With("component", "jsonrpc-client"),
			BufferSize:       DefaultClientStateBufferSize,
			StatePatcher:     routingOps.Patch,
			StateDecoder:     routingOps.DecodeStateJSON,
			StateDiffDecoder: routingOps.DecodeStateDiffJSON,
		},
	)
	if err != nil {
		rootLogger.Error("Failed to initialize Client", "chain_id", cfg.ChainID, "error", err)
		close()
	}

	follower := newTableFollower(rootLogger, system, engine.TableID(cfg.StreamTable), cfg.ChainID)

	for {
		select {
		case state := <-streamClient.State():
			follower.Apply(state)
		case err := <-streamClient.Err():
			rootLogger.Error("Fatal client error", "error", err)
			return
		case <-ctx.Done():
			return
		}
	}
}

func loadConfig() (*config.RouterConfig, *config.RoutesConfig, error) {
	configPath := flag.String("config", "config.yaml", "Path to the configuration file.")
	routesPath := flag.String("routes", "", "Path to a declarative route list applied on startup.")
	flag.Parse()
	log.Printf("Loading configuration from: %s", *configPath)
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		return nil, nil, err
	}
	if *routesPath == "" {
		return cfg, nil, nil
	}
	log.Printf("Loading route list from: %s", *routesPath)
	routes, err := config.LoadRoutes(*routesPath)
	if err != nil {
		return nil, nil, err
	}
	return cfg, routes, nil
}

func serveMetrics(logger *slog.Logger, addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	logger.Info("Starting metrics listener", "addr", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Error("Metrics listener failed", "error", err)
	}
}

// applyRoutes dials the venue and pushes the declarative route list through
// the router, so every entry is live-validated before it is committed.
func applyRoutes(
	ctx context.Context,
	logger *slog.Logger,
	registry prometheus.Registerer,
	cfg *config.RouterConfig,
	routes *config.RoutesConfig,
	system *routing.System,
) error {
	venueCfg, err := cfg.Venue.ClientConfig()
	if err != nil {
		return err
	}
	venue, err := ethereum.Dial(ctx, cfg.Venue.RPCURL, venueCfg, logger.With("component", "venue"))
	if err != nil {
		return err
	}

	v2, err := uniswapv2.NewAdapter(uniswapv2.Config{
		Pairs:    venue,
		Executor: venue,
		Tokens:   venue,
		Router:   venueCfg.V2Router,
	})
	if err != nil {
		return err
	}

	routerCfg := router.Config{
		Registry:           system,
		ConstantProduct:    v2,
		Logger:             logger.With("component", "router"),
		PrometheusRegistry: registry,
	}

	if venueCfg.V3Router != (common.Address{}) {
		v3, err := uniswapv3.NewAdapter(uniswapv3.Config{
			Pools:    venue,
			Executor: venue,
			Tokens:   venue,
			Router:   venueCfg.V3Router,
		})
		if err != nil {
			return err
		}
		routerCfg.ConcentratedLiquidity = v3
	}

	if venueCfg.Vault != (common.Address{}) {
		vault, err := balancerv2.NewAdapter(balancerv2.Config{
			Directory:    venue,
			Vault:        venue,
			Tokens:       venue,
			VaultAddress: venueCfg.Vault,
			Sender:       venueCfg.Sender,
		})
		if err != nil {
			return err
		}
		routerCfg.WeightedVaultBatch = vault
	}

	rtr, err := router.New(routerCfg)
	if err != nil {
		return err
	}

	for i, spec := range routes.Routes {
		tokens, err := spec.TokenSequence()
		if err != nil {
			return fmt.Errorf("route %d: %w", i, err)
		}
		params, err := spec.Params()
		if err != nil {
			return fmt.Errorf("route %d: %w", i, err)
		}
		key, err := rtr.SetRoute(ctx, tokens, params, spec.Bidirectional)
		if err != nil {
			return fmt.Errorf("route %d: %w", i, err)
		}
		logger.Info("Applied route",
			"pairKey", key.Hex(),
			"backend", spec.Backend,
			"bidirectional", spec.Bidirectional,
		)
	}
	return nil
}

// tableFollower syncs one streamed routing table into the local system. It
// diffs consecutive stream snapshots against each other (not against the
// system), so locally applied routes stay put unless the stream explicitly
// rewrites their pair.
type tableFollower struct {
	logger   *slog.Logger
	system   *routing.System
	table    engine.TableID
	chainID  uint64
	lastView *routing.TableView
}

func newTableFollower(logger *slog.Logger, system *routing.System, table engine.TableID, chainID uint64) *tableFollower {
	return &tableFollower{
		logger:   logger,
		system:   system,
		table:    table,
		chainID:  chainID,
		lastView: &routing.TableView{Entries: map[routing.PairKey]routing.RouteEntry{}},
	}
}

func (f *tableFollower) Apply(state *engine.RouteState) {
	if state.ChainID != f.chainID {
		f.logger.Warn("Discarding state for foreign chain", "got", state.ChainID, "want", f.chainID)
		return
	}
	tbl, ok := state.Tables[f.table]
	if !ok {
		f.logger.Warn("Streamed state is missing the followed table", "table", string(f.table), "sequence", state.Sequence)
		return
	}
	if tbl.Error != "" {
		f.logger.Warn("Followed table reported an upstream error; skipping", "table", string(f.table), "error", tbl.Error)
		return
	}
	view, ok := tbl.Data.(*routing.TableView)
	if !ok {
		f.logger.Error("Followed table carries unexpected data", "table", string(f.table), "type", fmt.Sprintf("%T", tbl.Data))
		return
	}

	diff := routing.Differ(f.lastView, view)
	if !diff.IsEmpty() {
		f.system.ApplyDiff(diff)
	}
	f.lastView = view

	f.logger.Debug("Synced routing table",
		"sequence", state.Sequence,
		"entries", len(view.Entries),
		"additions", len(diff.Additions),
		"updates", len(diff.Updates),
		"deletions", len(diff.Deletions),
	)
}

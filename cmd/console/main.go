package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/defistate/defistate-router-go/cmd/routerd/config"
	"github.com/defistate/defistate-router-go/differ"
	"github.com/defistate/defistate-router-go/engine"
	"github.com/defistate/defistate-router-go/protocols/balancerv2"
	"github.com/defistate/defistate-router-go/protocols/uniswapv2"
	"github.com/defistate/defistate-router-go/protocols/uniswapv3"
	"github.com/defistate/defistate-router-go/routing"
	"github.com/defistate/defistate-router-go/streams/jsonrpc/client"
	"github.com/defistate/defistate-router-go/streams/jsonrpc/stateops"
	"github.com/ethereum/go-ethereum/common"

	"github.com/prometheus/client_golang/prometheus"
)

// --- VISUAL CONSTANTS ---
const (
	Reset  = "\033[0m"
	Bold   = "\033[1m"
	Red    = "\033[31m"
	Green  = "\033[32m"
	Yellow = "\033[33m"
	Blue   = "\033[34m"
	Cyan   = "\033[36m"
	Gray   = "\033[37m"

	DefaultClientStateBufferSize = 100
)

// header prints a styled section header
func header(title string) {
	fmt.Println("\n" + Bold + Cyan + ":: " + title + " ::" + Reset)
}

// SafeState is a thread-safe container for the latest routing state.
type SafeState struct {
	mu    sync.RWMutex
	state *engine.RouteState
}

func (s *SafeState) Update(newState *engine.RouteState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = newState
}

func (s *SafeState) Get() *engine.RouteState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

type RoutingStateOps interface {
	Diff(old *engine.RouteState, new *engine.RouteState) (*differ.RouteStateDiff, error)
	Patch(oldState *engine.RouteState, diff *differ.RouteStateDiff) (*engine.RouteState, error)
	DecodeStateJSON(schema engine.TableSchema, data json.RawMessage) (any, error)
	DecodeStateDiffJSON(schema engine.TableSchema, data json.RawMessage) (any, error)
}

func main() {
	// --- 1. SETUP LOGGING (To File) ---
	logFile, err := os.OpenFile("console.log", os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
	if err != nil {
		panic(fmt.Sprintf("Failed to open log file: %v", err))
	}
	defer logFile.Close()

	rootLogHandler := slog.NewJSONHandler(logFile, nil)
	rootLogger := slog.New(rootLogHandler)

	closeApp := func() {
		fmt.Println("\n" + Red + "Fatal error occurred. Check console.log for details." + Reset)
		os.Exit(1)
	}

	// --- 2. CONFIG & CONTEXT ---
	prometheusRegistry := prometheus.DefaultRegisterer
	cfg, err := loadConfig()
	if err != nil {
		rootLogger.Error("Failed to load configuration", "error", err)
		closeApp()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- 3. INITIALIZE OPS ---
	codec := routing.NewCodec()
	for backend, decode := range map[engine.Backend]routing.DecodeFunc{
		engine.BackendConstantProduct:       uniswapv2.DecodeRoute,
		engine.BackendConcentratedLiquidity: uniswapv3.DecodeRoute,
		engine.BackendWeightedVaultBatch:    balancerv2.DecodeRoute,
	} {
		if err := codec.Register(backend, decode); err != nil {
			rootLogger.Error("Failed to register payload decoder", "backend", backend, "error", err)
			closeApp()
		}
	}

	var routingOps RoutingStateOps
	routingOps, err = stateops.NewStateOps(rootLogger, prometheusRegistry, codec)
	if err != nil {
		rootLogger.Error("Failed to initialize Routing State Ops", "error", err)
		closeApp()
	}

	// --- 4. INITIALIZE CLIENT ---
	client, err := client.NewClient(
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
		closeApp()
	}

	// --- 5. START CONSOLE & STATE LOOP ---
	safeState := &SafeState{}

	fmt.Println(Green + "Starting Route State Console..." + Reset)
	fmt.Println("Logs are being written to 'console.log'")
	go runConsole(ctx, safeState)

	for {
		select {
		case n := <-client.State():
			safeState.Update(n)

		case err := <-client.Err():
			rootLogger.Error("Fatal client error", "error", err)
			closeApp()

		case <-ctx.Done():
			fmt.Println("\n" + Yellow + "Shutting down..." + Reset)
			return
		}
	}
}

// runConsole handles user input and display.
func runConsole(ctx context.Context, safeState *SafeState) {
	reader := bufio.NewReader(os.Stdin)
	time.Sleep(500 * time.Millisecond)

	for {
		if ctx.Err() != nil {
			return
		}

		printMenu()

		fmt.Print(Bold + "Enter selection: " + Reset)
		input, err := reader.ReadString('\n')
		if err != nil {
			fmt.Println("Error reading input:", err)
			continue
		}
		input = strings.TrimSpace(input)

		handleCommand(input, safeState, reader)

		fmt.Println("\n" + Gray + "[Press Enter to continue]" + Reset)
		reader.ReadString('\n')
	}
}

func printMenu() {
	fmt.Print("\033[H\033[2J") // Clear screen
	fmt.Println(Bold + "ROUTE STATE CONSOLE" + Reset + Gray + " | v0.1.0" + Reset)
	fmt.Println(Gray + "-----------------------------------" + Reset)
	fmt.Printf(" %s1.%s Stream Status\n", Cyan, Reset)
	fmt.Printf(" %s2.%s Table Summary\n", Cyan, Reset)
	fmt.Printf(" %s3.%s Backend Summary\n", Cyan, Reset)
	fmt.Printf(" %s4.%s Find Pair  %s(by Pair Key)%s\n", Cyan, Reset, Gray, Reset)
	fmt.Printf(" %s5.%s Find Pair  %s(by Token Addresses)%s\n", Cyan, Reset, Gray, Reset)
	fmt.Printf(" %s6.%s Pairs for Token\n", Cyan, Reset)
	fmt.Printf(" %s7.%s Watch Pair %s(Live Monitor)%s\n", Cyan, Reset, Gray, Reset)
	fmt.Println(Gray + "-----------------------------------" + Reset)
	fmt.Printf(" %sh.%s Help / Architecture\n", Yellow, Reset)
	fmt.Printf(" %sq.%s Quit\n", Red, Reset)
	fmt.Println("")
}

func handleCommand(input string, safeState *SafeState, reader *bufio.Reader) {
	state := safeState.Get()

	// Allow help and quit even if state isn't ready
	if state == nil && input != "q" && input != "h" {
		fmt.Println("\n" + Yellow + "[INFO] Waiting for first state update... (Check connection/logs)" + Reset)
		return
	}

	switch input {
	case "1":
		printStreamStatus(state)
	case "2":
		printTableSummary(state)
	case "3":
		printBackendSummary(state)
	case "4":
		findPair(state, reader)
	case "5":
		findPairByTokens(state, reader)
	case "6":
		findPairsByToken(state, reader)
	case "7":
		watchPair(safeState, reader)
	case "h":
		printHelp()
	case "q":
		exitConsole()
	default:
		fmt.Println(Red + "Unknown command." + Reset)
	}
}

// --- COMMAND HANDLERS ---

func printHelp() {
	// Clear screen to make reading the architecture easy
	fmt.Print("\033[H\033[2J")

	header("ROUTE STATE STREAM ARCHITECTURE")
	fmt.Println(Bold + "Concept: Sequenced Replication" + Reset)
	fmt.Println("The hub publishes a sequenced stream of routing state: a full snapshot on")
	fmt.Println("subscribe, then diffs patched onto the last known state.")
	fmt.Println("")

	fmt.Println(Bold + "1. THE DATA STRUCTURE" + Reset)
	fmt.Println("   The root object is " + Cyan + "RouteState" + Reset + ", which contains:")
	fmt.Println("   - " + Yellow + "Sequence" + Reset + ": Monotonic version, bumped on every committed change.")
	fmt.Println("   - " + Yellow + "Tables" + Reset + ": A map of Table IDs to their routing table snapshot.")
	fmt.Println("")

	fmt.Println(Bold + "2. THE PRIMITIVES" + Reset)
	fmt.Printf("   A. %sPair Key%s\n", Cyan, Reset)
	fmt.Println("      - A " + Green + "32-byte Keccak-256" + Reset + " hash of the sorted token pair.")
	fmt.Println("      - Direction-free: (A,B) and (B,A) derive the same key.")
	fmt.Println("")
	fmt.Printf("   B. %sRoute Entry%s\n", Cyan, Reset)
	fmt.Println("      - Binds a pair to a " + Green + "backend payload" + Reset + " for its registered direction.")
	fmt.Println("      - An optional reverse payload makes the pair swappable both ways.")
	fmt.Println("")
	fmt.Printf("   C. %sBackends%s\n", Cyan, Reset)
	fmt.Println("      - constant-product, concentrated-liquidity, weighted-vault-batch.")
	fmt.Println("      - The backend tag tells the codec how to decode the payload.")
	fmt.Println("")

	fmt.Println(Bold + "3. DIFF / PATCH" + Reset)
	fmt.Println("   Diffs carry additions, updates and deletions per table. The client")
	fmt.Println("   patches them onto its last state; a sequence gap forces a resubscribe")
	fmt.Println("   so the hub re-sends a full snapshot.")
	fmt.Println("")

	fmt.Println(Gray + "---------------------------------------------------------------" + Reset)
	fmt.Println(Bold + "PURPOSE OF THIS CONSOLE" + Reset)
	fmt.Println("This tool is designed to help you understand and utilize the stream.")
	fmt.Println("Run the available commands to explore the routing tables.")
	fmt.Println(Green + "Goal: " + Reset + "Use these functions as examples to build your own")
	fmt.Println("route-aware services on top of the stream.")
	fmt.Println(Gray + "---------------------------------------------------------------" + Reset)
}

func printStreamStatus(state *engine.RouteState) {
	ts := time.Unix(0, int64(state.Timestamp)).Format("15:04:05")

	fmt.Printf("\n%sSTATUS  ::%s Seq %s#%d%s | Chain %s%d%s | Time %s%s%s | Tables %s%d%s\n",
		Green, Reset,
		Bold, state.Sequence, Reset,
		Bold, state.ChainID, Reset,
		Bold, ts, Reset,
		Bold, len(state.Tables), Reset,
	)
}

func printTableSummary(state *engine.RouteState) {
	header("TABLE SUMMARY")

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 4, ' ', 0)
	fmt.Fprintln(w, "TABLE ID\tNAME\tSCHEMA\tENTRIES\tSTATUS\t")
	fmt.Fprintln(w, "--------\t----\t------\t-------\t------\t")

	errCount := 0
	for id, tbl := range state.Tables {
		status := Green + "OK" + Reset
		if tbl.Error != "" {
			status = Red + "ERROR" + Reset
			errCount++
		}

		entries := "-"
		if view, ok := tbl.Data.(*routing.TableView); ok {
			entries = fmt.Sprintf("%d", len(view.Entries))
		}

		// Truncate long IDs for display
		tID := string(id)
		if len(tID) > 25 {
			tID = tID[:22] + "..."
		}

		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t\n", tID, tbl.Meta.Name, tbl.Schema, entries, status)
	}
	w.Flush()

	fmt.Printf("\n%sTables with Errors: %d%s\n", Bold, errCount, Reset)
}

func printBackendSummary(state *engine.RouteState) {
	header("BACKEND SUMMARY")

	counts := make(map[engine.Backend]int)
	total := 0
	oneWay := 0

	for _, tbl := range state.Tables {
		view, ok := tbl.Data.(*routing.TableView)
		if !ok {
			continue
		}
		for _, entry := range view.Entries {
			counts[entry.Backend()]++
			total++
			if entry.Reverse == nil {
				oneWay++
			}
		}
	}

	if total == 0 {
		fmt.Println(Yellow + "[INFO] No routes in any table yet." + Reset)
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 4, ' ', 0)
	fmt.Fprintln(w, "BACKEND\tROUTES\t")
	fmt.Fprintln(w, "-------\t------\t")
	for backend, n := range counts {
		fmt.Fprintf(w, "%s\t%d\t\n", backend, n)
	}
	w.Flush()

	fmt.Printf("\n%sTotal: %d routes (%d one-way)%s\n", Bold, total, oneWay, Reset)
}

func findPair(state *engine.RouteState, reader *bufio.Reader) {
	fmt.Print("\n" + Bold + "[Find Pair] Enter Pair Key (32-byte hex): " + Reset)
	key := readAndParseKey(reader)
	if key == nil {
		return
	}

	printPairByKey(state, *key)
}

func findPairByTokens(state *engine.RouteState, reader *bufio.Reader) {
	fmt.Print("\n" + Bold + "1. Enter Token A Address: " + Reset)
	tokenA, err := readTokenAddress(reader)
	if err != nil {
		fmt.Println(Red + err.Error() + Reset)
		return
	}

	fmt.Print(Bold + "2. Enter Token B Address: " + Reset)
	tokenB, err := readTokenAddress(reader)
	if err != nil {
		fmt.Println(Red + err.Error() + Reset)
		return
	}

	key := routing.DerivePairKey(tokenA, tokenB)
	fmt.Printf(Gray+"Derived Pair Key: %s%s\n", key.Hex(), Reset)

	printPairByKey(state, key)
}

func findPairsByToken(state *engine.RouteState, reader *bufio.Reader) {
	fmt.Print("\n" + Bold + "[Pairs for Token] Enter Token Address (Hex): " + Reset)
	token, err := readTokenAddress(reader)
	if err != nil {
		fmt.Println(Red + err.Error() + Reset)
		return
	}

	type match struct {
		table  engine.TableID
		entry  routing.RouteEntry
		paired common.Address
	}
	var matches []match

	for id, tbl := range state.Tables {
		view, ok := tbl.Data.(*routing.TableView)
		if !ok {
			continue
		}
		for _, entry := range view.Entries {
			switch token {
			case entry.TokenA:
				matches = append(matches, match{table: id, entry: entry, paired: entry.TokenB})
			case entry.TokenB:
				matches = append(matches, match{table: id, entry: entry, paired: entry.TokenA})
			}
		}
	}

	if len(matches) == 0 {
		fmt.Println(Yellow + "[INFO] No routes registered for this token." + Reset)
		return
	}

	header(strings.ToUpper(fmt.Sprintf("ROUTES FOR %s", token.Hex())))

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 4, ' ', 0)
	fmt.Fprintln(w, "TABLE\tPAIRED TOKEN\tBACKEND\tDIRECTION\tPAIR KEY\t")
	fmt.Fprintln(w, "-----\t------------\t-------\t---------\t--------\t")

	for _, m := range matches {
		direction := "two-way"
		if m.entry.Reverse == nil {
			direction = "one-way"
		}

		tID := string(m.table)
		if len(tID) > 25 {
			tID = tID[:22] + "..."
		}

		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t\n", tID, m.paired.Hex(), m.entry.Backend(), direction, m.entry.Key.Hex())
	}
	w.Flush()

	fmt.Printf("\n%sRoutes found: %d%s\n", Bold, len(matches), Reset)
}

func watchPair(safeState *SafeState, reader *bufio.Reader) {
	fmt.Print("\n" + Bold + "[Watch Pair] Enter Pair Key (32-byte hex): " + Reset)
	key := readAndParseKey(reader)
	if key == nil {
		return
	}

	fmt.Println(Green + "Starting Live Watch... (Press 'Enter' to stop)" + Reset)
	time.Sleep(1 * time.Second)

	stopCh := make(chan struct{})
	go func() {
		reader.ReadString('\n')
		close(stopCh)
	}()

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	var lastSequence uint64

	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			state := safeState.Get()
			if state == nil {
				continue
			}

			if state.Sequence > lastSequence {
				lastSequence = state.Sequence

				fmt.Print("\033[H\033[2J")
				fmt.Printf(Bold+"\n--- LIVE MONITOR (Sequence: %d) ---\n"+Reset, state.Sequence)
				fmt.Println(Gray + "Press ENTER to return to menu." + Reset)

				printPairByKey(state, *key)
			}
		}
	}
}

// --- HELPERS ---

func readAndParseKey(reader *bufio.Reader) *routing.PairKey {
	input, _ := reader.ReadString('\n')
	input = strings.TrimSpace(input)
	if input == "" {
		return nil
	}

	var key routing.PairKey
	if err := key.UnmarshalText([]byte(input)); err != nil {
		fmt.Printf(Red+"[ERROR] %v%s\n", err, Reset)
		return nil
	}

	fmt.Printf(Gray+"Searching for Key: %s...%s\n", key.Hex(), Reset)
	return &key
}

func readTokenAddress(reader *bufio.Reader) (common.Address, error) {
	input, _ := reader.ReadString('\n')
	input = strings.TrimSpace(input)
	if input == "" {
		return common.Address{}, fmt.Errorf("empty input")
	}
	if !common.IsHexAddress(input) {
		return common.Address{}, fmt.Errorf("%q is not a hex address", input)
	}
	return common.HexToAddress(input), nil
}

func printPairByKey(state *engine.RouteState, key routing.PairKey) {
	found := false

	for id, tbl := range state.Tables {
		view, ok := tbl.Data.(*routing.TableView)
		if !ok {
			continue
		}
		entry, ok := view.Entries[key]
		if !ok {
			continue
		}
		found = true

		header(strings.ToUpper(string(id)) + " MATCH")
		fmt.Printf("Pair Key:        %s\n", entry.Key.Hex())
		fmt.Printf("Token A:         %s\n", entry.TokenA.Hex())
		fmt.Printf("Token B:         %s\n", entry.TokenB.Hex())
		fmt.Printf("Backend:         %s%s%s\n", Cyan, entry.Backend(), Reset)

		fmt.Println(Bold + "Forward (A -> B):" + Reset)
		describeConfig(entry.Config)

		if entry.Reverse != nil {
			fmt.Println(Bold + "Reverse (B -> A):" + Reset)
			describeConfig(entry.Reverse)
		} else {
			fmt.Println(Gray + "[INFO] One-way: no reverse payload registered." + Reset)
		}
	}

	if !found {
		fmt.Println(Red + "[NOT FOUND] Pair key not present in any routing table." + Reset)
	}
}

// describeConfig prints the backend-specific payload fields.
func describeConfig(cfg engine.RouteConfig) {
	printField := func(key string, value any) {
		fmt.Printf("  %s%-15s%s %v\n", Gray, key+":", Reset, value)
	}

	switch route := cfg.(type) {
	case uniswapv2.Route:
		if len(route.HopTokens) == 0 {
			printField("Path", "direct pool")
			return
		}
		printField("Hops", len(route.HopTokens))
		for i, hop := range route.HopTokens {
			printField(fmt.Sprintf("Hop %d", i+1), hop.Hex())
		}

	case uniswapv3.Route:
		if route.Path.IsDirect() {
			printField("Fee Tier", fmt.Sprintf("%s%d%s", Yellow, route.Fee, Reset))
			return
		}
		tokens, fees, err := uniswapv3.DecodePath(route.Path)
		if err != nil {
			printField("Path", fmt.Sprintf("%s<undecodable: %v>%s", Red, err, Reset))
			return
		}
		printField("Pools", route.Path.Pools())
		for i, fee := range fees {
			printField(fmt.Sprintf("Pool %d", i+1), fmt.Sprintf("%s -> %s @ %d", tokens[i].Hex(), tokens[i+1].Hex(), fee))
		}

	case balancerv2.Route:
		printField("Pools", len(route.Pools))
		for i, pool := range route.Pools {
			printField(fmt.Sprintf("Pool %d", i+1), pool.Hex())
		}
		for i, conn := range route.Connectors {
			printField(fmt.Sprintf("Connector %d", i+1), conn.Hex())
		}

	default:
		fmt.Printf(Gray+"[INFO] No inspector implemented for backend: %s%s\n", cfg.Backend(), Reset)
	}
}

func exitConsole() {
	fmt.Println(Yellow + "Exiting..." + Reset)
	os.Exit(0)
}

func loadConfig() (*config.RouterConfig, error) {
	configPath := flag.String("config", "config.yaml", "Path to the configuration file.")
	flag.Parse()
	log.Printf("Loading configuration from: %s", *configPath)
	return config.LoadConfig(*configPath)
}

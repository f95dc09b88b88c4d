// intcode: stored-program integer VM toolkit
//
// This is the main entry point for the intcode toolkit: run a program
// standalone, search amplifier phase configurations in chain or feedback
// wiring, persist run history and snapshots, or serve the JSON-RPC API.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/ednl/intcode/internal/types"
	"github.com/ednl/intcode/pkg/evalcache"
	"github.com/ednl/intcode/pkg/intcode"
	"github.com/ednl/intcode/pkg/pipeline"
	"github.com/ednl/intcode/pkg/program"
	"github.com/ednl/intcode/pkg/rpc"
	"github.com/ednl/intcode/pkg/runstore"
	"github.com/ednl/intcode/pkg/search"
	"github.com/ednl/intcode/pkg/snapshot"
)

// Process exit codes, one per failure class.
const (
	exitOK            = 0
	exitUsage         = 1
	exitNotFound      = 2
	exitStoreFailure  = 3
	exitInvalidFile   = 4
	exitCountMismatch = 5
	exitIPFault       = 6
	exitNegativeRead  = 7
	exitNegativeWrite = 8
)

// Configuration flags
var (
	mode        = flag.String("mode", "run", "Execution mode: run, chain, feedback")
	phases      = flag.String("phases", "", "Explicit phase setting, e.g. \"4,3,2,1,0\" (skips search)")
	phaseBase   = flag.Int64("phase-base", -1, "First phase value of the search range (-1 = mode default)")
	amps        = flag.Int("amps", 5, "Number of machine instances in the pipeline")
	dataDir     = flag.String("data-dir", "", "Data directory for run history and evaluation cache")
	serveAddr   = flag.String("serve", "", "Start the JSON-RPC server on this address instead of running")
	snapshotDir = flag.String("snapshot", "", "Directory to write a machine state snapshot after a standalone run")
	showVersion = flag.Bool("version", false, "Print version and exit")

	inputs inputFlags
)

// inputFlags collects repeatable -input values.
type inputFlags []types.Word

func (f *inputFlags) String() string {
	parts := make([]string, len(*f))
	for i, v := range *f {
		parts[i] = strconv.FormatInt(v, 10)
	}
	return strings.Join(parts, ",")
}

func (f *inputFlags) Set(s string) error {
	v, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return err
	}
	*f = append(*f, v)
	return nil
}

func main() {
	flag.Var(&inputs, "input", "Input value for the program (repeatable)")
	flag.Usage = usage
	flag.Parse()

	if *showVersion {
		fmt.Printf("intcode %s\n", rpc.Version)
		os.Exit(exitOK)
	}

	log.SetFlags(log.Ldate | log.Ltime | log.Lmicroseconds)

	runs, cache := openStores()
	if runs != nil {
		defer runs.Close()
	}
	if cache != nil {
		defer cache.Close()
	}

	if *serveAddr != "" {
		serve(runs, cache)
		return
	}

	if flag.NArg() != 1 {
		usage()
		os.Exit(exitUsage)
	}

	prog, err := program.Load(flag.Arg(0))
	if err != nil {
		fail(err)
	}

	switch *mode {
	case "run":
		runStandalone(prog, runs)
	case "chain", "feedback":
		runSearch(prog, runs, cache)
	default:
		fmt.Fprintf(os.Stderr, "unknown mode %q\n", *mode)
		os.Exit(exitUsage)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: intcode [flags] <program file>\n\n")
	fmt.Fprintf(os.Stderr, "Runs a comma-separated integer program standalone, or searches\n")
	fmt.Fprintf(os.Stderr, "phase configurations across a pipeline of machine instances.\n\n")
	flag.PrintDefaults()
}

// openStores opens the run store and evaluation cache under -data-dir.
// Both are optional; without a data dir nothing is persisted.
func openStores() (*runstore.Store, *evalcache.Cache) {
	if *dataDir == "" {
		return nil, nil
	}
	if err := os.MkdirAll(*dataDir, 0o755); err != nil {
		log.Printf("Failed to create data dir: %v", err)
		os.Exit(exitStoreFailure)
	}

	runs, err := runstore.Open(runstore.DefaultConfig(filepath.Join(*dataDir, "runs.db")))
	if err != nil {
		log.Printf("Failed to open run store: %v", err)
		os.Exit(exitStoreFailure)
	}
	cache, err := evalcache.Open(evalcache.DefaultConfig(filepath.Join(*dataDir, "evalcache")))
	if err != nil {
		runs.Close()
		log.Printf("Failed to open evaluation cache: %v", err)
		os.Exit(exitStoreFailure)
	}
	return runs, cache
}

// serve runs the JSON-RPC server until interrupted.
func serve(runs *runstore.Store, cache *evalcache.Cache) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		log.Printf("Received signal %v, shutting down...", sig)
		cancel()
	}()

	config := rpc.DefaultConfig()
	config.Addr = *serveAddr
	config.LogRequests = true

	server := rpc.New(config, runs, cache)
	log.Printf("Serving JSON-RPC on %s", *serveAddr)
	if err := server.Start(ctx); err != nil {
		log.Printf("RPC server failed: %v", err)
		os.Exit(exitStoreFailure)
	}
}

// runStandalone executes one machine to halt, feeding -input values first
// and falling back to stdin for further input requests.
func runStandalone(prog *program.Program, runs *runstore.Store) {
	source := stdinSource()
	sink := func(v types.Word) { fmt.Println(v) }

	outputs, err := pipeline.RunOne(prog.Cells(), inputs, source, sink)
	if err != nil {
		fail(err)
	}

	if *snapshotDir != "" {
		saveSnapshot(prog)
	}

	if runs != nil {
		var out types.Word
		if len(outputs) > 0 {
			out = outputs[len(outputs)-1]
		}
		rec := &runstore.RunRecord{
			Program: prog.ID,
			Mode:    runstore.ModeRun,
			Output:  out,
			Rounds:  1,
		}
		if err := runs.RecordRun(rec); err != nil {
			log.Printf("Failed to record run: %v", err)
			os.Exit(exitStoreFailure)
		}
	}
}

// saveSnapshot re-runs the program without boundary I/O and writes the
// halted machine state, so a grown, halted image can be inspected later.
func saveSnapshot(prog *program.Program) {
	m := intcode.New(prog.Cells())
	for _, v := range inputs {
		m.Input().Push(v)
	}
	if _, err := m.Run(); err != nil {
		fail(err)
	}
	st := &snapshot.State{ID: prog.ID, Machine: m.State()}
	path, err := snapshot.Save(*snapshotDir, st)
	if err != nil {
		log.Printf("Failed to save snapshot: %v", err)
		os.Exit(exitStoreFailure)
	}
	log.Printf("Snapshot written: %s", path)
}

// runSearch maximizes the pipeline output over all phase permutations,
// or evaluates a single explicit -phases setting.
func runSearch(prog *program.Program, runs *runstore.Store, cache *evalcache.Cache) {
	feedback := *mode == "feedback"

	base := types.Word(0)
	if feedback {
		base = 5
	}
	if *phaseBase >= 0 {
		base = *phaseBase
	}

	orch := pipeline.New(prog.Cells(), *amps)
	rounds := 1
	eval := func(ph []types.Word) (types.Word, error) {
		if feedback {
			out, r, err := orch.Feedback(ph)
			if r > rounds {
				rounds = r
			}
			return out, err
		}
		return orch.Chain(ph)
	}

	var (
		best       types.Word
		bestPhases []types.Word
	)
	if *phases != "" {
		ph, err := parsePhases(*phases)
		if err != nil {
			fmt.Fprintf(os.Stderr, "invalid -phases: %v\n", err)
			os.Exit(exitUsage)
		}
		out, err := eval(ph)
		if err != nil {
			fail(err)
		}
		best, bestPhases = out, ph
		fmt.Println(out)
	} else {
		opts := &search.Options{Key: prog.ID}
		if cache != nil {
			opts.Cache = cache
		}
		res, err := search.Maximize(search.PhaseRange(base, *amps), eval, opts)
		if err != nil {
			fail(err)
		}
		best, bestPhases = res.Max, res.Phases
		log.Printf("Best phases %v after %d trials", res.Phases, res.Trials)
		fmt.Println(res.Max)
	}

	if runs != nil {
		m := runstore.ModeChain
		if feedback {
			m = runstore.ModeFeedback
		}
		rec := &runstore.RunRecord{
			Program: prog.ID,
			Mode:    m,
			Phases:  bestPhases,
			Output:  best,
			Rounds:  rounds,
		}
		if err := runs.RecordRun(rec); err != nil {
			log.Printf("Failed to record run: %v", err)
			os.Exit(exitStoreFailure)
		}
	}
}

func parsePhases(s string) ([]types.Word, error) {
	fields := strings.Split(s, ",")
	ph := make([]types.Word, 0, len(fields))
	for _, f := range fields {
		v, err := strconv.ParseInt(strings.TrimSpace(f), 10, 64)
		if err != nil {
			return nil, err
		}
		ph = append(ph, v)
	}
	return ph, nil
}

// stdinSource reads one line per input request. Non-numeric or empty
// lines yield 0. A prompt is printed only when stdin is a terminal.
func stdinSource() intcode.SourceFunc {
	interactive := false
	if fi, err := os.Stdin.Stat(); err == nil {
		interactive = fi.Mode()&os.ModeCharDevice != 0
	}
	reader := bufio.NewReader(os.Stdin)
	return func() types.Word {
		if interactive {
			fmt.Print("? ")
		}
		line, err := reader.ReadString('\n')
		if err != nil && line == "" {
			return 0
		}
		v, err := strconv.ParseInt(strings.TrimSpace(line), 10, 64)
		if err != nil {
			return 0
		}
		return v
	}
}

// fail maps an error to its exit code and terminates.
func fail(err error) {
	log.Printf("Fatal: %v", err)
	switch {
	case errors.Is(err, program.ErrNotFound):
		os.Exit(exitNotFound)
	case errors.Is(err, program.ErrEmpty), errors.Is(err, program.ErrBadInteger):
		os.Exit(exitInvalidFile)
	case errors.Is(err, program.ErrCountMismatch):
		os.Exit(exitCountMismatch)
	case errors.Is(err, intcode.ErrPCOutOfRange):
		os.Exit(exitIPFault)
	case errors.Is(err, intcode.ErrNegativeRead):
		os.Exit(exitNegativeRead)
	case errors.Is(err, intcode.ErrNegativeWrite):
		os.Exit(exitNegativeWrite)
	default:
		os.Exit(exitIPFault)
	}
}

// rexpr CLI - evaluates expressions against a suspended debuggee
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"

	"github.com/chazu/rexpr/config"
	"github.com/chazu/rexpr/expr"
	"github.com/chazu/rexpr/journal"
	"github.com/chazu/rexpr/server"
	"github.com/chazu/rexpr/vm"
)

func main() {
	verbose := flag.Int("v", -1, "Log verbosity (overrides rexpr.toml)")
	configDir := flag.String("config", "", "Directory containing rexpr.toml (default: search upward from the working directory)")
	fixture := flag.String("fixture", "", "Debuggee fixture file (default: built-in demo)")
	thread := flag.String("thread", "", "Thread to evaluate on")
	exprFlag := flag.String("e", "", "Evaluate a JSON expression tree (\"-\" reads it from stdin)")
	journalPath := flag.String("journal", "", "Record evaluations in this SQLite database")
	serveMode := flag.Bool("serve", false, "Start the evaluation server (Connect JSON/CBOR over HTTP)")
	addr := flag.String("addr", "", "Server address (used with --serve)")
	lspMode := flag.Bool("lsp", false, "Start the language server on stdio")
	history := flag.Int("history", 0, "Print the most recent journal entries and exit")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: rexpr [options]\n\n")
		fmt.Fprintf(os.Stderr, "Evaluates expressions in the context of a suspended thread.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  rexpr -e '{\"kind\":\"name\",\"name\":\"i\"}'     # Evaluate on the demo's main thread\n")
		fmt.Fprintf(os.Stderr, "  rexpr --fixture app.toml --thread ui -e -     # Read the tree from stdin\n")
		fmt.Fprintf(os.Stderr, "  rexpr --serve --addr :8080                    # Serve on :8080\n")
		fmt.Fprintf(os.Stderr, "  rexpr --lsp                                   # Hover evaluation in an editor\n")
		fmt.Fprintf(os.Stderr, "  rexpr --journal evals.db -history 20          # Show the last 20 evaluations\n")
	}
	flag.Parse()

	cfg, err := loadConfig(*configDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	applyFlags(cfg, *verbose, *fixture, *thread, *journalPath, *addr)

	logFile := cfg.Resolve(cfg.Log.File)
	if logFile != "" {
		commonlog.Configure(cfg.Log.Verbosity, &logFile)
	} else if !*lspMode {
		commonlog.Configure(cfg.Log.Verbosity, nil)
	}

	v, err := loadTarget(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	var j *journal.Journal
	if p := cfg.Resolve(cfg.Journal.Path); p != "" {
		if j, err = journal.Open(p); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer j.Close()
	}

	switch {
	case *history > 0:
		if j == nil {
			fmt.Fprintf(os.Stderr, "Error: -history needs a journal\n")
			os.Exit(1)
		}
		if err := printHistory(j, *history); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case *exprFlag != "":
		code := runEvaluate(v, cfg.Target.Thread, *exprFlag, j)
		if j != nil {
			j.Close()
		}
		os.Exit(code)
	case *lspMode:
		lsp, err := server.NewLSP(v, cfg.Target.Thread, j)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if err := lsp.Run(); err != nil {
			fmt.Fprintf(os.Stderr, "LSP error: %v\n", err)
			os.Exit(1)
		}
	case *serveMode:
		if err := runServer(v, cfg, j); err != nil {
			fmt.Fprintf(os.Stderr, "Server error: %v\n", err)
			os.Exit(1)
		}
	default:
		flag.Usage()
		os.Exit(2)
	}
}

func loadConfig(dir string) (*config.Config, error) {
	if dir != "" {
		return config.Load(dir)
	}
	wd, err := os.Getwd()
	if err != nil {
		return nil, err
	}
	cfg, err := config.FindAndLoad(wd)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		cfg = config.Default()
	}
	return cfg, nil
}

// applyFlags lets command line flags override the configuration file.
// Paths given on the command line are relative to the working directory.
func applyFlags(cfg *config.Config, verbose int, fixture, thread, journalPath, addr string) {
	if verbose >= 0 {
		cfg.Log.Verbosity = verbose
	}
	if fixture != "" {
		cfg.Target.Fixture = absPath(fixture)
	}
	if thread != "" {
		cfg.Target.Thread = thread
	}
	if journalPath != "" {
		cfg.Journal.Path = absPath(journalPath)
	}
	if addr != "" {
		cfg.Server.Addr = addr
	}
}

func absPath(p string) string {
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return p
}

func loadTarget(cfg *config.Config) (*vm.VM, error) {
	if cfg.Target.Fixture == "" {
		return vm.NewDemo(), nil
	}
	return vm.LoadFixture(cfg.Resolve(cfg.Target.Fixture))
}

func runEvaluate(v *vm.VM, thread, src string, j *journal.Journal) int {
	data := []byte(src)
	if src == "-" {
		var err error
		if data, err = io.ReadAll(os.Stdin); err != nil {
			fmt.Fprintf(os.Stderr, "Error reading stdin: %v\n", err)
			return 1
		}
	}
	n, err := expr.ParseJSON(data)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	resp, err := server.EvaluateOnce(context.Background(), v, thread, n, j)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	if !resp.Success {
		fmt.Fprintf(os.Stderr, "%s: %s\n", resp.ErrorKind, resp.ErrorMessage)
		return 1
	}
	fmt.Printf("%s %s\n", resp.TypeName, resp.Result)
	return 0
}

func runServer(v *vm.VM, cfg *config.Config, j *journal.Journal) error {
	opts := []server.ServerOption{
		server.WithDefaultThread(cfg.Target.Thread),
		server.WithHandleTTL(cfg.Handles.TTL, cfg.Handles.SweepInterval),
		server.WithCodecs(cfg.Server.Codecs...),
	}
	if j != nil {
		opts = append(opts, server.WithJournal(j))
	}
	srv, err := server.New(v, opts...)
	if err != nil {
		return err
	}
	defer srv.Stop()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Printf("rexpr serving on %s\n", cfg.Server.Addr)
	return srv.ListenAndServe(ctx, cfg.Server.Addr)
}

func printHistory(j *journal.Journal, limit int) error {
	entries, err := j.Recent(context.Background(), limit)
	if err != nil {
		return err
	}
	for _, e := range entries {
		outcome := e.TypeName + " " + e.Result
		if !e.Success {
			outcome = e.ErrorKind + ": " + e.ErrorMessage
		}
		fmt.Printf("%s  %-9s %-6s %s => %s (%s)\n",
			e.At.Format("2006-01-02 15:04:05"), e.Op, e.Thread, e.Expression, outcome, e.Elapsed)
	}
	return nil
}

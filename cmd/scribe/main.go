// Command scribe runs writing-assistant tool scripts and serves them
// over MCP.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/deixis/scribe"
	"github.com/deixis/scribe/internal/config"
	"github.com/deixis/scribe/internal/history"
	scribemcp "github.com/deixis/scribe/internal/mcp"
	"github.com/deixis/scribe/internal/runner"
	"github.com/deixis/scribe/internal/settings"
	"github.com/deixis/scribe/internal/toolkit"
)

func main() {
	log.SetFlags(0)
	log.SetPrefix("scribe: ")

	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	var err error
	switch cmd {
	case "run":
		err = runMain(args)
	case "tools":
		err = toolsMain(args)
	case "settings":
		err = settingsMain(args)
	case "mcp":
		err = mcpMain(args)
	case "version":
		fmt.Println(scribe.Version)
	case "help", "-h", "--help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "scribe: unknown command %q\n", cmd)
		usage()
		os.Exit(2)
	}

	if err != nil {
		log.Fatal(err)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `Usage: scribe <command> [flags] [args]

Commands:
  run         Run a tool script and stream its output
  tools       List the runnable tool scripts
  settings    Get, set, delete, or list application settings
  mcp         Start the MCP server
  version     Print the version
  help        Show this help

Use "scribe <command> -h" for command-specific flags.`)
}

// newSupervisor wires the supervisor stack from the configuration found
// in (or above) dir.
func newSupervisor(dir string) (*runner.Supervisor, *toolkit.Toolkit, history.Store, error) {
	cfg, err := config.Load(dir)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("loading config: %w", err)
	}

	tk := toolkit.New(cfg.ToolsPath(dir), cfg.InterpreterTable())
	store := history.NewLRUStore(5, history.NewDiskStore())
	sup := runner.NewSupervisor(tk, cfg.MaxOutputBytes(), store)
	return sup, tk, store, nil
}

// --- run ---

func runMain(args []string) error {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	dirFlag := fs.String("C", "", "project directory (default: current directory)")
	timeoutFlag := fs.Duration("timeout", 0, "stop the tool after this duration (0 = no limit)")
	_ = fs.Parse(args)

	rest := fs.Args()
	if len(rest) == 0 {
		return fmt.Errorf("usage: scribe run [flags] <tool> [--option value ...]")
	}
	tool := rest[0]

	opts, err := parseOptions(rest[1:])
	if err != nil {
		return err
	}

	dir := *dirFlag
	if dir == "" {
		if dir, err = os.Getwd(); err != nil {
			return fmt.Errorf("determining project directory: %w", err)
		}
	}

	sup, _, _, err := newSupervisor(dir)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	sink := runner.SinkFunc(func(text string) {
		fmt.Print(text)
	})

	id, done, err := sup.Start(ctx, tool, opts, sink)
	if err != nil {
		return fmt.Errorf("run: %w", err)
	}

	// The supervisor has no internal timeout; the time bound is layered
	// here by stopping the run when the timer fires.
	if *timeoutFlag > 0 {
		timer := time.AfterFunc(*timeoutFlag, func() {
			log.Printf("timeout after %s, stopping run %s", *timeoutFlag, id)
			sup.Stop(id)
		})
		defer timer.Stop()
	}

	res := <-done
	if res.ExitCode != 0 {
		code := res.ExitCode
		if code < 0 {
			code = 1
		}
		os.Exit(code)
	}
	return nil
}

// parseOptions converts CLI tokens into an ordered option bag. Tokens in
// --name form consume the following token as their value unless it is
// another flag, in which case they become boolean true. A single bare
// leading token is treated as the tool's input file.
func parseOptions(tokens []string) (toolkit.Options, error) {
	var opts toolkit.Options
	for i := 0; i < len(tokens); i++ {
		tok := tokens[i]
		if !strings.HasPrefix(tok, "--") {
			if i == 0 {
				opts = append(opts, toolkit.Option{Name: toolkit.InputKey, Value: tok})
				continue
			}
			return nil, fmt.Errorf("unexpected argument %q", tok)
		}
		if i+1 < len(tokens) && !strings.HasPrefix(tokens[i+1], "--") {
			opts = append(opts, toolkit.Option{Name: tok, Value: tokens[i+1]})
			i++
		} else {
			opts = append(opts, toolkit.Option{Name: tok, Value: true})
		}
	}
	return opts, nil
}

// --- tools ---

func toolsMain(args []string) error {
	fs := flag.NewFlagSet("tools", flag.ExitOnError)
	dirFlag := fs.String("C", "", "project directory (default: current directory)")
	_ = fs.Parse(args)

	dir := *dirFlag
	if dir == "" {
		var err error
		if dir, err = os.Getwd(); err != nil {
			return fmt.Errorf("determining project directory: %w", err)
		}
	}

	_, tk, _, err := newSupervisor(dir)
	if err != nil {
		return err
	}

	names, err := tk.List()
	if err != nil {
		return err
	}
	if len(names) == 0 {
		fmt.Printf("no tools found in %s\n", tk.Dir())
		return nil
	}
	for _, n := range names {
		fmt.Println(n)
	}
	return nil
}

// --- settings ---

func settingsMain(args []string) error {
	fs := flag.NewFlagSet("settings", flag.ExitOnError)
	fileFlag := fs.String("f", "", "settings file (default: ~/.scribe-settings.json)")
	_ = fs.Parse(args)

	path := *fileFlag
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("determining home directory: %w", err)
		}
		path = filepath.Join(home, ".scribe-settings.json")
	}

	store, err := settings.Open(path)
	if err != nil {
		return err
	}

	rest := fs.Args()
	if len(rest) == 0 {
		return fmt.Errorf("usage: scribe settings <get|set|delete|list> [key] [value]")
	}

	switch rest[0] {
	case "get":
		if len(rest) != 2 {
			return fmt.Errorf("usage: scribe settings get <key>")
		}
		v, ok := store.Get(rest[1])
		if !ok {
			return fmt.Errorf("setting %q is not set", rest[1])
		}
		fmt.Println(v)
	case "set":
		if len(rest) != 3 {
			return fmt.Errorf("usage: scribe settings set <key> <value>")
		}
		return store.Set(rest[1], rest[2])
	case "delete":
		if len(rest) != 2 {
			return fmt.Errorf("usage: scribe settings delete <key>")
		}
		return store.Delete(rest[1])
	case "list":
		for k, v := range store.All() {
			fmt.Printf("%s=%s\n", k, v)
		}
	default:
		return fmt.Errorf("unknown settings action %q", rest[0])
	}
	return nil
}

// --- mcp ---

func mcpMain(args []string) error {
	fs := flag.NewFlagSet("mcp", flag.ExitOnError)
	instructions := fs.Bool("instructions", false, "print model instructions and exit")
	httpAddr := fs.String("http", "", "start HTTP server on address (e.g. :9090)")
	dirFlag := fs.String("C", "", "project directory (default: current directory)")
	_ = fs.Parse(args)

	if *instructions {
		fmt.Print(scribemcp.Instructions)
		return nil
	}

	dir := *dirFlag
	if dir == "" {
		var err error
		if dir, err = os.Getwd(); err != nil {
			return fmt.Errorf("determining project directory: %w", err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	sup, tk, store, err := newSupervisor(dir)
	if err != nil {
		return err
	}

	server := scribemcp.NewServer(sup, tk, store)

	if *httpAddr != "" {
		return serveHTTP(ctx, server, *httpAddr)
	}
	return server.Run(ctx, &mcpsdk.StdioTransport{})
}

func serveHTTP(ctx context.Context, server *mcpsdk.Server, addr string) error {
	handler := mcpsdk.NewStreamableHTTPHandler(
		func(_ *http.Request) *mcpsdk.Server { return server },
		nil,
	)

	httpServer := &http.Server{
		Addr:    addr,
		Handler: handler,
	}

	go func() {
		<-ctx.Done()
		_ = httpServer.Close()
	}()

	log.Printf("listening on %s", addr)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Command rspd is the entry point (C14): it assembles a Connection, a
// Target, and a TraceFlags registry, then drives the accept/reconnect loop
// in front of the Server.
package main

import (
	"fmt"
	"os"
	"plugin"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
	flag "github.com/spf13/pflag"

	"github.com/embdebug/rspd/internal/conn"
	"github.com/embdebug/rspd/internal/rsplog"
	"github.com/embdebug/rspd/internal/server"
	"github.com/embdebug/rspd/internal/target"
	"github.com/embdebug/rspd/internal/traceflags"
)

const version = "0.1.0"

var (
	silent   = flag.BoolP("silent", "q", false, "suppress informational logging")
	help     = flag.BoolP("help", "h", false, "show usage and exit")
	traceArg = flag.StringArrayP("trace", "t", nil, "enable a trace flag: name or name=value (repeatable)")
	stdinArg = flag.BoolP("stdin", "s", false, "serve one session over stdin/stdout instead of TCP")
	showVer  = flag.BoolP("version", "v", false, "print the version and exit")
	soname   = flag.String("soname", "", "shared object exporting a NewTarget() target.Target symbol; a built-in dummy target is used if omitted")
	onVKill  = flag.String("on-vkill", "reset", "behaviour once the last core is killed by vKill: reset|exit")
)

func main() {
	flag.Parse()

	if *help {
		fmt.Fprintf(os.Stderr, "usage: rspd [flags] <rsp-port>\n\n")
		flag.PrintDefaults()
		os.Exit(0)
	}
	if *showVer {
		fmt.Println("rspd", version)
		os.Exit(0)
	}

	trace := traceflags.New()
	for _, arg := range *traceArg {
		if err := trace.Parse(arg); err != nil {
			fmt.Fprintln(os.Stderr, "rspd:", err)
			os.Exit(1)
		}
	}

	level := logrus.InfoLevel
	if *silent {
		level = logrus.WarnLevel
	}
	log := rsplog.New(level)

	killBehaviour, err := parseKillBehaviour(*onVKill)
	if err != nil {
		log.Fatalf("rspd: %v", err)
	}

	tgt, err := loadTarget(*soname)
	if err != nil {
		log.Fatalf("rspd: %v", err)
	}

	c, err := buildConnection(*stdinArg, flag.Args(), log)
	if err != nil {
		log.Fatalf("rspd: %v", err)
	}

	cfg := server.Config{KillBehaviour: killBehaviour}
	srv := server.New(c, tgt, trace, cfg, log)

	os.Exit(runLoop(srv, c))
}

// runLoop implements §4.14's accept/reconnect pseudo-algorithm.
func runLoop(srv *server.Server, c conn.Connection) int {
	for !srv.ExitRequested() {
		for !c.IsConnected() {
			if !c.Connect() {
				return 1
			}
			srv.ResetCoreState()
		}
		if !srv.HandleOnePacket() {
			// HandleOnePacket already closed the connection; the outer
			// loop will re-accept (TCP) or exit (stdio, since Connect
			// never re-succeeds once stdin is spent).
			continue
		}
	}
	return 0
}

func parseKillBehaviour(s string) (server.KillBehaviour, error) {
	switch s {
	case "reset":
		return server.ResetOnKill, nil
	case "exit":
		return server.ExitOnKill, nil
	default:
		return 0, fmt.Errorf("--on-vkill must be reset or exit, got %q", s)
	}
}

// buildConnection picks stdio or TCP per the -s flag and the positional
// <rsp-port> argument, which may be ":N" or a bare port number; 0 means an
// ephemeral port.
func buildConnection(stdin bool, args []string, log *logrus.Entry) (conn.Connection, error) {
	if stdin {
		return conn.NewStdio(log), nil
	}
	if len(args) < 1 {
		return nil, fmt.Errorf("missing <rsp-port> argument")
	}
	portArg := strings.TrimPrefix(args[0], ":")
	port, err := strconv.Atoi(portArg)
	if err != nil {
		return nil, fmt.Errorf("invalid rsp-port %q: %w", args[0], err)
	}
	return conn.NewTCP(port, "simulation_ready.txt", log), nil
}

// loadTarget opens the --soname plugin (if given) and looks up its
// NewTarget symbol, falling back to the in-process dummy target used for
// development and the test suite.
func loadTarget(soname string) (target.Target, error) {
	if soname == "" {
		return target.NewDummy(1, 1<<20, 16, 4, true), nil
	}

	p, err := plugin.Open(soname)
	if err != nil {
		return nil, fmt.Errorf("loading target plugin %q: %w", soname, err)
	}
	sym, err := p.Lookup("NewTarget")
	if err != nil {
		return nil, fmt.Errorf("target plugin %q has no NewTarget symbol: %w", soname, err)
	}
	ctor, ok := sym.(func() target.Target)
	if !ok {
		return nil, fmt.Errorf("target plugin %q: NewTarget has the wrong signature", soname)
	}
	return ctor(), nil
}

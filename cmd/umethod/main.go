// Command umethod is the workbench for umethod projects: it validates
// umethod.yaml files, inspects recorded dispatch traces, generates
// backend bindings from Go packages, and prints the remote-dispatch
// wire contract.
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/mattn/go-isatty"

	"github.com/funvibe/umethod/internal/conf"
	"github.com/funvibe/umethod/internal/gen"
	"github.com/funvibe/umethod/internal/trace"
	"github.com/funvibe/umethod/pkg/backends/remote"
)

const usage = `umethod - multimethod dispatch workbench

Usage:
  umethod check [path]                    validate a umethod.yaml (found upward from . when omitted)
  umethod trace recent [-db file] [-method name] [-n limit]
  umethod trace summary [-db file] [-method name]
  umethod gen -pkg path [-backend name] [-out-pkg name] [-funcs a,b] [-o file]
  umethod proto                           print the remote dispatch wire contract
`

var useColor = isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())

func colorize(code, s string) string {
	if !useColor {
		return s
	}
	return "\033[" + code + "m" + s + "\033[0m"
}

func green(s string) string  { return colorize("32", s) }
func red(s string) string    { return colorize("31", s) }
func yellow(s string) string { return colorize("33", s) }

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	var err error
	switch os.Args[1] {
	case "check":
		err = runCheck(os.Args[2:])
	case "trace":
		err = runTrace(os.Args[2:])
	case "gen":
		err = runGen(os.Args[2:])
	case "proto":
		fmt.Print(remote.WireContract())
	case "help", "-h", "--help":
		fmt.Print(usage)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", os.Args[1], usage)
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s %v\n", red("error:"), err)
		os.Exit(1)
	}
}

func runCheck(args []string) error {
	path := ""
	if len(args) > 0 {
		path = args[0]
	} else {
		found, err := conf.FindConfig(".")
		if err != nil {
			return err
		}
		if found == "" {
			return fmt.Errorf("no umethod.yaml found in this directory or any parent")
		}
		path = found
	}

	cfg, err := conf.LoadConfig(path)
	if err != nil {
		return err
	}

	fmt.Printf("%s %s\n", green("ok:"), path)
	fmt.Printf("backends (consultation order by priority):\n")
	for _, b := range cfg.Backends {
		flags := ""
		if b.Coerce {
			flags = " " + yellow("[coerce]")
		}
		fmt.Printf("  %-20s priority=%d%s\n", b.Name, b.Priority, flags)
	}
	for _, p := range cfg.Profiles {
		mode := "prefer"
		if p.Only {
			mode = "only"
		}
		fmt.Printf("profile %-14s %s %v\n", p.Name, mode, p.Backends)
	}
	return nil
}

func runTrace(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("trace requires a subcommand: recent or summary")
	}
	sub, rest := args[0], args[1:]

	fs := flag.NewFlagSet("trace "+sub, flag.ExitOnError)
	db := fs.String("db", "umethod-trace.db", "trace database file")
	method := fs.String("method", "", "restrict to one method")
	limit := fs.Int("n", 20, "maximum rows (recent only)")
	if err := fs.Parse(rest); err != nil {
		return err
	}

	rec, err := trace.Open(*db)
	if err != nil {
		return err
	}
	defer rec.Close()

	switch sub {
	case "recent":
		rows, err := rec.Recent(*method, *limit)
		if err != nil {
			return err
		}
		for _, row := range rows {
			outcome := row.Outcome
			switch outcome {
			case "handled":
				outcome = green(outcome)
			case "error":
				outcome = red(outcome)
			default:
				outcome = yellow(outcome)
			}
			backend := row.Backend
			if backend == "" {
				backend = "-"
			}
			fmt.Printf("%s  %-20s %-16s %-18s %v\n",
				row.At.Format("15:04:05.000"), row.Method, backend, outcome, row.Elapsed)
		}
	case "summary":
		sums, err := rec.Summarize(*method)
		if err != nil {
			return err
		}
		for _, s := range sums {
			backend := s.Backend
			if backend == "" {
				backend = "-"
			}
			fmt.Printf("%-16s %-16s %d\n", backend, s.Outcome, s.Count)
		}
	default:
		return fmt.Errorf("unknown trace subcommand %q", sub)
	}
	return nil
}

func runGen(args []string) error {
	fs := flag.NewFlagSet("gen", flag.ExitOnError)
	pkg := fs.String("pkg", "", "Go package to bind (import path or ./dir)")
	backend := fs.String("backend", "", "backend display name (defaults to the package name)")
	outPkg := fs.String("out-pkg", "backends", "generated package name")
	funcs := fs.String("funcs", "", "comma-separated whitelist of functions")
	out := fs.String("o", "", "output file (stdout when omitted)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *pkg == "" {
		return fmt.Errorf("gen requires -pkg")
	}

	opts := gen.Options{Package: *pkg, Backend: *backend, OutPkg: *outPkg}
	if *funcs != "" {
		opts.Funcs = splitComma(*funcs)
	}

	src, err := gen.Generate(opts)
	if err != nil {
		return err
	}
	if *out == "" {
		fmt.Print(src)
		return nil
	}
	if err := os.WriteFile(*out, []byte(src), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", *out, err)
	}
	fmt.Printf("%s %s\n", green("wrote:"), *out)
	return nil
}

func splitComma(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

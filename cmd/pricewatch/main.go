package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"pricewatch/internal/app"
)

const usage = `usage: pricewatch [flags] <command>

commands:
  run      fetch, snapshot, diff, render, write outputs and deliver
  publish  post chunk files written by an earlier run
  serve    run on the configured schedule with a status server
  history  list stored snapshot keys

flags:
`

func main() {
	var (
		cfgPath string
		envFile string
		dryRun  bool
		asJSON  bool
	)
	flag.StringVar(&cfgPath, "config", "./pricewatch.yaml", "path to config yaml/json (missing file means defaults)")
	flag.StringVar(&envFile, "env", ".env", "optional dotenv file with secrets")
	flag.BoolVar(&dryRun, "dry-run", false, "write outputs but do not deliver")
	flag.BoolVar(&asJSON, "json", false, "print the run report as JSON")
	flag.Usage = func() {
		fmt.Fprint(flag.CommandLine.Output(), usage)
		flag.PrintDefaults()
	}
	flag.Parse()

	cmd := flag.Arg(0)
	if cmd == "" {
		cmd = "run"
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a, err := app.New(app.Options{ConfigPath: cfgPath, DotEnv: []string{envFile}, DryRun: dryRun})
	if err != nil {
		fmt.Println("fatal:", err)
		os.Exit(1)
	}
	code := execute(ctx, a, cmd, asJSON)
	_ = a.Close()
	os.Exit(code)
}

func execute(ctx context.Context, a *app.App, cmd string, asJSON bool) int {
	switch cmd {
	case "run", "publish":
		run := a.Run
		if cmd == "publish" {
			run = a.Publish
		}
		rep, err := run(ctx)
		if asJSON && rep != nil {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			_ = enc.Encode(rep)
		}
		if err != nil {
			return 1
		}
		return 0
	case "serve":
		if err := a.Serve(ctx); err != nil {
			fmt.Println("fatal serve:", err)
			return 1
		}
		return 0
	case "history":
		keys, err := a.History(ctx)
		if err != nil {
			fmt.Println("fatal:", err)
			return 1
		}
		for _, k := range keys {
			fmt.Println(k)
		}
		return 0
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", cmd)
		flag.Usage()
		return 2
	}
}

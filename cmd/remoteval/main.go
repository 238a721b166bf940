// remoteval evaluates scripts in an embedded realm and prints the results as
// remote values, the way a debugging bridge would send them to a client.
//
// Every positional argument is evaluated in order in the same realm, so an
// object returned under root ownership keeps one handle across expressions.
// With --call, the first argument is a function declaration instead and
// --arg supplies its arguments as remote values.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/unkn0wn-root/remoteval"
	"github.com/unkn0wn-root/remoteval/codec"
	"github.com/unkn0wn-root/remoteval/jsrealm"
	"github.com/unkn0wn-root/remoteval/remote"
)

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(argv []string, stdout, stderr io.Writer) error {
	var (
		configPath string
		htmlPath   string
		callMode   bool
		await      bool
		trace      bool
		callArgs   []string
	)
	cfg := defaultConfig()

	fs := pflag.NewFlagSet("remoteval", pflag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&configPath, "config", "", "YAML config file")
	fs.StringVar(&cfg.Format, "format", cfg.Format, "output format: json, cbor, msgpack or protobuf")
	fs.IntVar(&cfg.Depth, "depth", cfg.Depth, "maxObjectDepth for results")
	fs.StringVar(&cfg.Ownership, "ownership", cfg.Ownership, "resultOwnership: root or none")
	fs.StringVar(&htmlPath, "html", "", "HTML file loaded as the document")
	fs.StringVar(&cfg.Leases.Store, "leases", cfg.Leases.Store, "lease store: none, ristretto, bigcache or redis")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "debug, info, warn or error")
	fs.BoolVar(&callMode, "call", false, "treat the first argument as a function declaration")
	fs.StringArrayVar(&callArgs, "arg", nil, "JSON remote value passed to --call (repeatable)")
	fs.BoolVar(&await, "await", false, "await promise results")
	fs.StringVar(&cfg.LogBackend, "log-backend", cfg.LogBackend, "codec logger: zap, logrus or slog")
	fs.BoolVar(&trace, "trace-hooks", false, "log handle mints and releases")

	if err := fs.Parse(argv); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	if configPath != "" {
		fileCfg, err := loadConfig(configPath)
		if err != nil {
			return err
		}
		cfg = merge(fileCfg, cfg, fs)
	}
	if htmlPath != "" {
		cfg.HTML = htmlPath
	}
	if fs.NArg() == 0 {
		return errors.New("nothing to evaluate")
	}

	enc, err := codec.ByName(cfg.Format)
	if err != nil {
		return err
	}
	stderr = &lockedWriter{w: stderr}
	logger, err := newZap(cfg.LogLevel, stderr)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()
	realmLog, err := realmLogger(cfg.LogBackend, cfg.LogLevel, logger, stderr)
	if err != nil {
		return err
	}
	var hooks remoteval.Hooks
	if trace || cfg.TraceHooks {
		var flush func()
		hooks, flush = traceHooks(stderr)
		defer flush()
	}

	leases, err := newLeases(cfg.Leases)
	if err != nil {
		return err
	}
	if leases != nil {
		defer func() { _ = leases.Close(context.Background()) }()
	}

	var page string
	if cfg.HTML != "" {
		b, err := os.ReadFile(cfg.HTML)
		if err != nil {
			return err
		}
		page = string(b)
	}

	realm, err := jsrealm.New(jsrealm.Options{
		Realm: remoteval.RealmOptions{
			NavigableID: cfg.Navigable,
			IdleTTL:     cfg.IdleTTL,
			Leases:      leases,
			LeaseTTL:    cfg.Leases.TTL,
			Logger:      realmLog,
			Hooks:       hooks,
		},
		HTML: page,
		OnConsole: func(level string, args []remote.RemoteValue) {
			logger.Info("console", zap.String("level", level), zap.Int("args", len(args)))
			for _, a := range args {
				b, _ := codec.JSON{}.Encode(a)
				fmt.Fprintf(stderr, "console.%s %s\n", level, b)
			}
		},
	})
	if err != nil {
		return err
	}
	defer func() { _ = realm.Close(context.Background()) }()

	depth := cfg.Depth
	p := remoteval.EvaluateParams{
		AwaitPromise:         await,
		ResultOwnership:      cfg.Ownership,
		SerializationOptions: &remoteval.SerializationOptions{MaxObjectDepth: &depth},
	}

	if callMode {
		cp := remoteval.CallParams{
			FunctionDeclaration:  fs.Arg(0),
			AwaitPromise:         await,
			ResultOwnership:      cfg.Ownership,
			SerializationOptions: p.SerializationOptions,
		}
		for i, a := range callArgs {
			rv, err := codec.JSON{}.Decode([]byte(a))
			if err != nil {
				return fmt.Errorf("--arg %d: %w", i, err)
			}
			cp.Arguments = append(cp.Arguments, rv)
		}
		res, err := realm.CallFunction(cp)
		if err != nil {
			return err
		}
		return emit(stdout, enc, cfg.Format, res)
	}

	for _, expr := range fs.Args() {
		p.Expression = expr
		res, err := realm.EvaluateCommand(p)
		if err != nil {
			return fmt.Errorf("evaluate %q: %w", expr, err)
		}
		if err := emit(stdout, enc, cfg.Format, res); err != nil {
			return err
		}
	}
	return nil
}

// merge lays explicitly set flags over the file config.
func merge(file, flags Config, fs *pflag.FlagSet) Config {
	out := file
	if fs.Changed("format") {
		out.Format = flags.Format
	}
	if fs.Changed("depth") {
		out.Depth = flags.Depth
	}
	if fs.Changed("ownership") {
		out.Ownership = flags.Ownership
	}
	if fs.Changed("leases") {
		out.Leases.Store = flags.Leases.Store
	}
	if fs.Changed("log-level") {
		out.LogLevel = flags.LogLevel
	}
	if fs.Changed("log-backend") {
		out.LogBackend = flags.LogBackend
	}
	return out
}

// emit prints one result. JSON prints the whole protocol result; binary
// formats print the result type and the encoded value in hex.
func emit(w io.Writer, enc codec.Codec, format string, res remoteval.EvaluateResult) error {
	if format == "json" || format == "" {
		b, err := res.Encode()
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(w, "%s\n", b)
		return err
	}

	rv := res.Result
	if res.ExceptionDetails != nil {
		rv = &res.ExceptionDetails.Exception
	}
	b, err := enc.Encode(*rv)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "%s %x\n", res.Type, b)
	return err
}

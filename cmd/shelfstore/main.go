// Package main is the shelfstore command-line client: bucket and object
// operations against any configured storage adapter.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/shelfstore/shelfstore/internal/adapter"
	"github.com/shelfstore/shelfstore/internal/config"
	"github.com/shelfstore/shelfstore/internal/logging"
	"github.com/shelfstore/shelfstore/internal/metrics"
	"github.com/shelfstore/shelfstore/internal/registry"
)

const usageText = `Usage: shelfstore [flags] <command> [args]

Bucket commands:
  buckets                                list buckets
  mb <bucket>                            create a bucket
  rb <bucket>                            delete an empty bucket
  stat <bucket>                          show bucket metadata

Object commands:
  ls <bucket> [prefix]                   list objects, optionally by prefix
  put <bucket> <key> <file>              store a file as an object
  get <bucket> <key> [file]              fetch an object (stdout by default)
  rm <bucket> <key>                      delete an object
  cp <bucket> <key> <to-bucket> <to-key> copy an object

Flags:
`

func main() {
	configPath := flag.String("config", "shelfstore.yaml", "path to configuration file")
	adapterName := flag.String("adapter", "default", "name of the configured adapter to use")
	logLevel := flag.String("log-level", "", "log level: debug, info, warn, error (default: from config)")
	logFormat := flag.String("log-format", "", "log format: text, json (default: from config)")
	flag.Usage = func() {
		fmt.Fprint(os.Stderr, usageText)
		flag.PrintDefaults()
	}
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Command-line flags override config file values.
	if *logLevel != "" {
		cfg.Logging.Level = *logLevel
	}
	if *logFormat != "" {
		cfg.Logging.Format = *logFormat
	}

	logging.Setup(cfg.Logging.Level, cfg.Logging.Format, os.Stderr)
	if cfg.Metrics.Enabled {
		metrics.Register()
	}

	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		os.Exit(2)
	}

	ctx := context.Background()

	reg, err := registry.Open(ctx, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open adapters: %v\n", err)
		os.Exit(1)
	}
	defer reg.Close()

	store, err := reg.Lookup(*adapterName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	if err := run(ctx, store, args); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", args[0], err)
		os.Exit(1)
	}
}

// run dispatches one subcommand against the chosen adapter.
func run(ctx context.Context, store adapter.Adapter, args []string) error {
	cmd, rest := args[0], args[1:]
	switch cmd {
	case "buckets":
		if len(rest) != 0 {
			return fmt.Errorf("usage: buckets")
		}
		buckets, err := store.ListBuckets(ctx)
		if err != nil {
			return err
		}
		for _, b := range buckets {
			fmt.Printf("%s\t%s\n", b.CreatedAt.Format("2006-01-02 15:04:05"), b.Name)
		}
		return nil

	case "mb":
		if len(rest) != 1 {
			return fmt.Errorf("usage: mb <bucket>")
		}
		return store.CreateBucket(ctx, rest[0])

	case "rb":
		if len(rest) != 1 {
			return fmt.Errorf("usage: rb <bucket>")
		}
		return store.DeleteBucket(ctx, rest[0])

	case "stat":
		if len(rest) != 1 {
			return fmt.Errorf("usage: stat <bucket>")
		}
		info, err := store.GetBucket(ctx, rest[0])
		if err != nil {
			return err
		}
		fmt.Printf("name\t%s\ncreated\t%s\n", info.Name, info.CreatedAt.Format("2006-01-02 15:04:05"))
		return nil

	case "ls":
		if len(rest) != 1 && len(rest) != 2 {
			return fmt.Errorf("usage: ls <bucket> [prefix]")
		}
		prefix := ""
		if len(rest) == 2 {
			prefix = rest[1]
		}
		objects, err := store.ListObjects(ctx, rest[0], prefix)
		if err != nil {
			return err
		}
		for _, o := range objects {
			fmt.Printf("%s\t%d\t%s\t%s\n", o.LastModified.Format("2006-01-02 15:04:05"), o.Size, o.ETag, o.Name)
		}
		return nil

	case "put":
		if len(rest) != 3 {
			return fmt.Errorf("usage: put <bucket> <key> <file>")
		}
		content, err := os.ReadFile(rest[2])
		if err != nil {
			return fmt.Errorf("reading %q: %w", rest[2], err)
		}
		info, err := store.CreateObject(ctx, rest[0], rest[1], content, nil)
		if err != nil {
			return err
		}
		fmt.Printf("%s\t%d\t%s\n", info.Name, info.Size, info.ETag)
		return nil

	case "get":
		if len(rest) != 2 && len(rest) != 3 {
			return fmt.Errorf("usage: get <bucket> <key> [file]")
		}
		data, err := store.GetObject(ctx, rest[0], rest[1])
		if err != nil {
			return err
		}
		if len(rest) == 3 {
			return os.WriteFile(rest[2], data, 0o644)
		}
		_, err = os.Stdout.Write(data)
		return err

	case "rm":
		if len(rest) != 2 {
			return fmt.Errorf("usage: rm <bucket> <key>")
		}
		return store.DeleteObject(ctx, rest[0], rest[1])

	case "cp":
		if len(rest) != 4 {
			return fmt.Errorf("usage: cp <bucket> <key> <to-bucket> <to-key>")
		}
		info, err := store.CopyObject(ctx, rest[0], rest[1], rest[2], rest[3])
		if err != nil {
			return err
		}
		fmt.Printf("%s\t%d\t%s\n", info.Name, info.Size, info.ETag)
		return nil

	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
}

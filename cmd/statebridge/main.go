// Copyright 2026 The Statebridge Authors
// SPDX-License-Identifier: Apache-2.0

// statebridge is the operator CLI for statebridge state files.
//
// It works directly on the flat store file, so it can be used while
// the daemon is stopped or against a copy taken from a live system:
//
//	statebridge inspect --file flat.json
//	statebridge seed --file flat.json entries.jsonc
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/spf13/pflag"
	"github.com/tidwall/jsonc"

	"github.com/statebridge-dev/statebridge/codec"
	"github.com/statebridge-dev/statebridge/flatstore"
	"github.com/statebridge-dev/statebridge/lib/version"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	if len(os.Args) < 2 {
		printUsage()
		return fmt.Errorf("a subcommand is required")
	}

	switch os.Args[1] {
	case "inspect":
		return runInspect(os.Args[2:])
	case "seed":
		return runSeed(os.Args[2:])
	case "--version":
		version.Print("statebridge")
		return nil
	case "--help", "-h", "help":
		printUsage()
		return nil
	default:
		printUsage()
		return fmt.Errorf("unknown subcommand: %s", os.Args[1])
	}
}

func printUsage() {
	fmt.Print(`statebridge - operate on statebridge state files

USAGE
    statebridge inspect --file <flat.json> [--namespace <prefix>]
    statebridge seed --file <flat.json> [--namespace <prefix>] <entries.jsonc>

SUBCOMMANDS
    inspect    Dump a flat store file with every entry decoded
    seed       Load a JSONC entries file into a flat store file

The seed entries file maps keys to plain JSON values; each value is
converted to its tagged string form before being written:

    {
        // progress counter
        "level": 3,
        "started": "2026-01-01",
    }
`)
}

func runInspect(args []string) error {
	var filePath string
	var namespace string

	flagSet := pflag.NewFlagSet("inspect", pflag.ContinueOnError)
	flagSet.StringVar(&filePath, "file", "", "flat store file to dump")
	flagSet.StringVar(&namespace, "namespace", "", "only show keys with this prefix")
	if err := flagSet.Parse(args); err != nil {
		return err
	}
	if filePath == "" {
		return fmt.Errorf("inspect: --file is required")
	}

	flat, err := flatstore.OpenFile(filePath)
	if err != nil {
		return err
	}
	entries, err := flat.All()
	if err != nil {
		return err
	}

	keys := make([]string, 0, len(entries))
	for key := range entries {
		if namespace != "" && !strings.HasPrefix(key, namespace) {
			continue
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		fmt.Printf("%s\t%s\n", key, render(codec.Decode(entries[key])))
	}
	return nil
}

// render produces a one-line human-readable form of a decoded value.
func render(v codec.Value) string {
	switch v.Kind() {
	case codec.KindNull:
		return "null"
	case codec.KindUndefined:
		return "undefined"
	case codec.KindBool:
		return fmt.Sprintf("bool %v", v.BoolValue())
	case codec.KindNumber:
		return fmt.Sprintf("number %v", v.NumberValue())
	case codec.KindString:
		return fmt.Sprintf("string %q", v.StringValue())
	case codec.KindDate:
		return fmt.Sprintf("date %s", v.DateValue().UTC().Format("2006-01-02T15:04:05.000Z"))
	case codec.KindBinary:
		return fmt.Sprintf("binary %d bytes", len(v.Bytes()))
	case codec.KindTypedView:
		kind, data := v.View()
		return fmt.Sprintf("view %s %d bytes", kind, len(data))
	case codec.KindBlob:
		data, err := v.BlobBytes(context.Background())
		if err != nil {
			return fmt.Sprintf("blob <unreadable: %v>", err)
		}
		return fmt.Sprintf("blob %d bytes", len(data))
	case codec.KindList:
		return fmt.Sprintf("list of %d", len(v.ListValue()))
	case codec.KindMap:
		return fmt.Sprintf("map of %d", len(v.MapValue()))
	}
	return "unknown"
}

func runSeed(args []string) error {
	var filePath string
	var namespace string

	flagSet := pflag.NewFlagSet("seed", pflag.ContinueOnError)
	flagSet.StringVar(&filePath, "file", "", "flat store file to write")
	flagSet.StringVar(&namespace, "namespace", "save:", "prefix applied to every seeded key")
	if err := flagSet.Parse(args); err != nil {
		return err
	}
	if filePath == "" {
		return fmt.Errorf("seed: --file is required")
	}
	positional := flagSet.Args()
	if len(positional) != 1 {
		return fmt.Errorf("seed: exactly one entries file is required")
	}

	raw, err := os.ReadFile(positional[0])
	if err != nil {
		return err
	}

	// JSONC so seed files can carry comments and trailing commas.
	var entries map[string]any
	if err := json.Unmarshal(jsonc.ToJSON(raw), &entries); err != nil {
		return fmt.Errorf("seed: parsing %s: %w", positional[0], err)
	}

	flat, err := flatstore.OpenFile(filePath)
	if err != nil {
		return err
	}

	encoder := codec.Encoder{}
	ctx := context.Background()
	for key, value := range entries {
		encoded, err := encoder.Encode(ctx, codec.FromJSON(value))
		if err != nil {
			return fmt.Errorf("seed: encoding %q: %w", key, err)
		}
		if err := flat.Set(namespace+key, encoded); err != nil {
			return fmt.Errorf("seed: writing %q: %w", key, err)
		}
	}

	fmt.Printf("seeded %d entries into %s\n", len(entries), filePath)
	return nil
}

// replica-inspect decodes an encoded command event and prints it.
//
// The event is read from a file or, when no file is given, from stdin. All
// wire formats are recognised; sealed events need the algorithm and key they
// were sealed with. Settings not given as flags come from REPLICA_* variables
// and the file named by --config.
package main

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/pflag"

	"github.com/zoobzio/replica"
	"github.com/zoobzio/replica/bson"
	"github.com/zoobzio/replica/json"
	"github.com/zoobzio/replica/msgpack"
)

func main() {
	if err := run(os.Args[1:], os.Stdin, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdin io.Reader, stdout io.Writer) error {
	var (
		configPath string
		codecName  string
		sealAlg    string
		sealKey    string
		mask       string
		hexInput   bool
		diag       bool
	)

	flagSet := pflag.NewFlagSet("replica-inspect", pflag.ContinueOnError)
	flagSet.SetOutput(stdout)
	flagSet.StringVar(&configPath, "config", "", "YAML configuration file")
	flagSet.StringVar(&codecName, "codec", "cbor", "codec of self-describing events: cbor, json, msgpack or bson")
	flagSet.StringVar(&sealAlg, "seal-alg", "", "seal algorithm: aes-gcm or xchacha20-poly1305")
	flagSet.StringVar(&sealKey, "seal-key", "", "seal key, hex or base64")
	flagSet.StringVar(&mask, "mask", "", "mask for parameter values: none, redact, tail, email or digest")
	flagSet.BoolVar(&hexInput, "hex", false, "input is hex text")
	flagSet.BoolVar(&diag, "diag", false, "also print the event as CBOR diagnostic notation")

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	if flagSet.NArg() > 1 {
		return fmt.Errorf("unexpected argument: %s", flagSet.Arg(1))
	}

	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	if sealAlg != "" {
		cfg.Codec.Seal.Algorithm = sealAlg
		cfg.Codec.Seal.Key = sealKey
	}
	if mask != "" {
		cfg.Describe.Mask = mask
	}

	var codecOpts []replica.CodecOption
	switch codecName {
	case "cbor":
	case "json":
		codecOpts = append(codecOpts, replica.WithDefaultCodec(json.New()))
	case "msgpack":
		codecOpts = append(codecOpts, replica.WithDefaultCodec(msgpack.New()))
	case "bson":
		codecOpts = append(codecOpts, replica.WithDefaultCodec(bson.New()))
	default:
		return fmt.Errorf("unknown codec %q", codecName)
	}

	engine, err := replica.New(cfg, replica.WithCodecOptions(codecOpts...))
	if err != nil {
		return err
	}

	data, err := readInput(flagSet.Arg(0), stdin)
	if err != nil {
		return err
	}
	if hexInput {
		data, err = hex.DecodeString(string(bytes.TrimSpace(data)))
		if err != nil {
			return fmt.Errorf("decode hex input: %w", err)
		}
	}

	e, err := engine.Codec().Decode(data)
	if err != nil {
		return fmt.Errorf("decode event: %w", err)
	}

	fmt.Fprintf(stdout, "format:      %s\n", formatOf(data))
	fmt.Fprintf(stdout, "event:       %s\n", engine.Describe(e))
	fmt.Fprintf(stdout, "fingerprint: %s\n", e.Fingerprint())
	if e.Application != "" {
		fmt.Fprintf(stdout, "application: %s\n", e.Application)
	}
	if e.Source != "" {
		fmt.Fprintf(stdout, "source:      %s\n", e.Source)
	}

	if diag {
		cborData, err := replica.NewEventCodec(replica.WithFormat(replica.FormatDefault)).Encode(e)
		if err != nil {
			return fmt.Errorf("encode cbor: %w", err)
		}
		notation, err := replica.Diagnose(cborData)
		if err != nil {
			return fmt.Errorf("diagnose: %w", err)
		}
		fmt.Fprintf(stdout, "cbor:        %s\n", notation)
	}
	return nil
}

func loadConfig(path string) (*replica.Config, error) {
	if path != "" {
		return replica.LoadFile(path)
	}
	return replica.Load()
}

func readInput(path string, stdin io.Reader) ([]byte, error) {
	if path == "" || path == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("read stdin: %w", err)
		}
		return data, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return data, nil
}

// formatOf names the outermost wire format of data.
func formatOf(data []byte) string {
	if len(data) == 0 {
		return "empty"
	}
	switch data[0] {
	case replica.VersionCompact:
		return "compact"
	case replica.VersionCompressed:
		if len(data) > 1 {
			return "compact+" + replica.CompressionTag(data[1]).String()
		}
		return "compact+?"
	case replica.VersionSealed:
		if len(data) > 1 {
			return "sealed+" + replica.SealAlgorithm(data[1]).String()
		}
		return "sealed+?"
	default:
		return "default"
	}
}

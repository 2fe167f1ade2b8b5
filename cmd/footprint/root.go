package main

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/fatih/color"
	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/TomTonic/footprint"
)

const (
	formatAuto = "auto"
	formatJSON = "json"
	formatYAML = "yaml"
)

type rootOptions struct {
	narrow       bool
	noEscalation bool
	detectCycles bool
	verbose      bool
	maxDepth     int
	format       string
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:   "footprint [file...]",
		Short: "Estimate the logical memory footprint of JSON or YAML documents",
		Long: `Decodes each document into generic values and prints the estimated
memory and header overhead in bits. Without arguments, or with "-", the
document is read from standard input.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, opts, args)
		},
	}

	flags := cmd.Flags()
	flags.BoolVar(&opts.narrow, "narrow", false, "measure as on a 32-bit architecture")
	flags.BoolVar(&opts.noEscalation, "no-escalation", false, "fail on unexported fields instead of overriding access")
	flags.BoolVar(&opts.detectCycles, "detect-cycles", false, "fail fast on cyclic values")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "log estimator activity to stderr")
	flags.IntVar(&opts.maxDepth, "max-depth", footprint.DefaultMaxDepth, "maximum nesting depth")
	flags.StringVarP(&opts.format, "format", "f", formatAuto, "input format: auto, json or yaml")
	return cmd
}

func run(cmd *cobra.Command, opts *rootOptions, args []string) error {
	logger := zap.NewNop()
	if opts.verbose {
		l, err := zap.NewDevelopment()
		if err != nil {
			return errors.Wrap(err, "cannot create logger")
		}
		logger = l
		defer func() { _ = logger.Sync() }()
	}

	estimatorOpts := []footprint.Option{
		footprint.WithLogger(logger),
		footprint.WithAutomaticEscalation(!opts.noEscalation),
		footprint.WithCycleDetection(opts.detectCycles),
		footprint.WithMaxDepth(opts.maxDepth),
	}
	if opts.narrow {
		estimatorOpts = append(estimatorOpts, footprint.WithArchitecture(footprint.Narrow))
	}
	estimator := footprint.New(estimatorOpts...)

	if len(args) == 0 {
		args = []string{"-"}
	}

	out := cmd.OutOrStdout()
	name := color.New(color.FgCyan, color.Bold)
	for _, arg := range args {
		doc, err := load(cmd.InOrStdin(), arg, opts.format)
		if err != nil {
			return err
		}
		est, err := estimator.Estimate(doc)
		if err != nil {
			return errors.Wrapf(err, "cannot estimate %s", arg)
		}
		logger.Debug("estimated document", zap.String("source", arg), zap.Int64("bits", est.Memory))
		name.Fprint(out, arg)
		if _, err := io.WriteString(out, ": "+est.String()+"\n"); err != nil {
			return err
		}
	}
	return nil
}

func load(stdin io.Reader, arg, format string) (any, error) {
	var data []byte
	var err error
	if arg == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(arg)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "cannot read %s", arg)
	}

	if format == formatAuto {
		format = detectFormat(arg)
	}

	var doc any
	switch format {
	case formatJSON:
		err = jsoniter.ConfigCompatibleWithStandardLibrary.Unmarshal(data, &doc)
	case formatYAML:
		err = yaml.Unmarshal(data, &doc)
	default:
		return nil, errors.Newf("unknown format %q", format)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "cannot decode %s as %s", arg, format)
	}
	return doc, nil
}

// detectFormat picks the decoder from the file extension. YAML accepts
// JSON documents too, so it is the fallback.
func detectFormat(path string) string {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return formatJSON
	}
	return formatYAML
}

package main

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/goliatone/go-enrich"
	"github.com/goliatone/go-enrich/config"
	"github.com/goliatone/go-enrich/library"
)

type scoreOptions struct {
	plugin      string
	optionsPath string
	storeDir    string
	timepoints  string
	labels      []string
	evaluator   string
}

func newScoreCmd(global *globalOptions) *cobra.Command {
	opts := &scoreOptions{}
	cmd := &cobra.Command{
		Use:   "score",
		Short: "Run a scoring plugin over the experiment store",
		Long: `Run a registered scoring plugin over the combined counts in the
experiment store. Plugin options are read from a YAML or JSON mapping of
varname to value; omitted options take their declared defaults.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runScore(cmd, global, opts)
		},
	}
	cmd.Flags().StringVarP(&opts.plugin, "plugin", "p", "", "scoring plugin name")
	cmd.Flags().StringVarP(&opts.optionsPath, "options", "o", "", "plugin options file (YAML or JSON)")
	cmd.Flags().StringVarP(&opts.storeDir, "store", "s", "", "root directory for badger stores")
	cmd.Flags().StringVar(&opts.timepoints, "timepoints", "", "comma separated timepoints; inferred from the counts when empty")
	cmd.Flags().StringSliceVar(&opts.labels, "labels", []string{library.IdentifiersLabel}, "labels to score")
	cmd.Flags().StringVar(&opts.evaluator, "evaluator", "expr", "where-expression engine: expr, cel or js")
	_ = cmd.MarkFlagRequired("plugin")
	_ = cmd.MarkFlagRequired("store")
	return cmd
}

func runScore(cmd *cobra.Command, global *globalOptions, opts *scoreOptions) error {
	tps, err := parseTimepoints(opts.timepoints)
	if err != nil {
		return err
	}
	var values any
	if opts.optionsPath != "" {
		raw, err := config.LoadFile(opts.optionsPath)
		if err != nil {
			return err
		}
		values = raw
	}
	evaluator, err := evaluatorFor(opts.evaluator)
	if err != nil {
		return err
	}
	reg, err := registry()
	if err != nil {
		return err
	}

	ts, err := openStore(experimentDir(opts.storeDir), global.logger)
	if err != nil {
		return err
	}
	defer ts.Close()

	manager := enrich.NewManager(ts,
		enrich.WithManagerName(experimentStore),
		enrich.WithLabels(opts.labels...),
		enrich.WithTimepoints(tps...),
	)
	plugin, err := reg.New(opts.plugin, manager, values,
		enrich.WithLogger(global.logger),
		enrich.WithEvaluator(evaluator),
	)
	if err != nil {
		return err
	}
	if err := plugin.ComputeScores(cmd.Context()); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "scored %s with %s\n", strings.Join(opts.labels, ","), plugin.Name())
	return nil
}

func experimentDir(root string) string {
	return filepath.Join(root, experimentStore)
}

func parseTimepoints(value string) ([]int, error) {
	if strings.TrimSpace(value) == "" {
		return nil, nil
	}
	parts := strings.Split(value, ",")
	out := make([]int, 0, len(parts))
	for _, part := range parts {
		tp, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil || tp < 0 {
			return nil, fmt.Errorf("invalid timepoint %q", part)
		}
		out = append(out, tp)
	}
	return out, nil
}

func evaluatorFor(name string) (enrich.Evaluator, error) {
	cache := enrich.NewProgramCache()
	functions := enrich.MathFunctions()
	switch strings.ToLower(name) {
	case "", "expr":
		return enrich.NewExprEvaluator(enrich.ExprWithFunctionRegistry(functions), enrich.ExprWithProgramCache(cache)), nil
	case "cel":
		return enrich.NewCELEvaluator(enrich.CELWithFunctionRegistry(functions), enrich.CELWithProgramCache(cache)), nil
	case "js":
		return enrich.NewJSEvaluator(enrich.JSWithFunctionRegistry(functions), enrich.JSWithProgramCache(cache)), nil
	default:
		return nil, fmt.Errorf("unknown evaluator %q", name)
	}
}

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"daops/internal/config"
	"daops/internal/datasource/file"
	"daops/internal/dsref"
	"daops/internal/fix"
	"daops/internal/ops"
	"daops/internal/registry"
	"daops/internal/timeparam"
)

// selection are the flags that pick datasets and a time window.
type selection struct {
	time           string
	timeComponents string
	fromFile       string
	fileMapper     bool
}

func (s *selection) bind(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVar(&s.time, "time", "", `time interval "start/end" or series "t1,t2"`)
	f.StringVar(&s.timeComponents, "time-components", "", `time components, e.g. "year:2000,2001|month:dec,jan"`)
	f.StringVar(&s.fromFile, "from-file", "", "read references from a file, one per line")
	f.BoolVar(&s.fileMapper, "file-mapper", false, "treat the file arguments as one dataset")
	cmd.MarkFlagsMutuallyExclusive("time", "time-components")
}

func (s *selection) filter() (timeparam.Filter, error) {
	if s.timeComponents != "" {
		return timeparam.ParseComponents(s.timeComponents)
	}
	return timeparam.Parse(s.time)
}

func (s *selection) refs(fs afero.Fs, args []string) ([]dsref.Reference, error) {
	items := append([]string(nil), args...)
	if s.fromFile != "" {
		more, err := file.ReadList(fs, s.fromFile)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", s.fromFile, err)
		}
		items = append(items, more...)
	}
	if len(items) == 0 {
		return nil, errors.New("no dataset references given")
	}
	if s.fileMapper {
		fm, err := dsref.NewFileMapper(items)
		if err != nil {
			return nil, err
		}
		return []dsref.Reference{fm}, nil
	}
	return dsref.ParseAll(fs, items)
}

func newRootCmd(fs afero.Fs, getenv func(string) string, out io.Writer) *cobra.Command {
	var o options
	root := &cobra.Command{
		Use:           "daops",
		Short:         "Resolve, fix and process climate datasets",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(out)
	pf := root.PersistentFlags()
	pf.StringVar(&o.configPath, "config", "", "config file (default $DAOPS_CONFIG)")
	pf.StringVar(&o.envFile, "env-file", "", "dotenv file with DAOPS_* settings")
	pf.BoolVarP(&o.verbose, "verbose", "v", false, "debug logging")

	withApp := func(run func(ctx context.Context, a *app, args []string) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) (err error) {
			a, err := newApp(cmd.Context(), fs, getenv, cmd.OutOrStdout(), o)
			if err != nil {
				return err
			}
			defer func() { err = errors.Join(err, a.Close()) }()
			return run(cmd.Context(), a, args)
		}
	}

	root.AddCommand(
		newConsolidateCmd(fs, withApp),
		newFixesCmd(withApp),
		newExportCmd(fs, withApp),
		newValidateCmd(fs, getenv, &o),
		newManifestCmd(),
	)
	return root
}

type appRunner func(run func(ctx context.Context, a *app, args []string) error) func(*cobra.Command, []string) error

func newConsolidateCmd(fs afero.Fs, withApp appRunner) *cobra.Command {
	var sel selection
	cmd := &cobra.Command{
		Use:   "consolidate REF...",
		Short: "List the files of each dataset within a time window",
		RunE: withApp(func(ctx context.Context, a *app, args []string) error {
			refs, err := sel.refs(fs, args)
			if err != nil {
				return err
			}
			tf, err := sel.filter()
			if err != nil {
				return err
			}
			entries, err := a.consolidator().Consolidate(ctx, refs, tf)
			if err != nil {
				return err
			}
			type row struct {
				ID    string   `yaml:"ds_id"`
				Files []string `yaml:"files"`
			}
			rows := make([]row, len(entries))
			for i, e := range entries {
				rows[i] = row{ID: e.ID, Files: e.Files}
			}
			enc := yaml.NewEncoder(a.out)
			enc.SetIndent(2)
			if err := enc.Encode(rows); err != nil {
				return err
			}
			return enc.Close()
		}),
	}
	sel.bind(cmd)
	return cmd
}

func newFixesCmd(withApp appRunner) *cobra.Command {
	return &cobra.Command{
		Use:   "fixes ID...",
		Short: "Show the fix records stored for each dataset",
		Args:  cobra.MinimumNArgs(1),
		RunE: withApp(func(ctx context.Context, a *app, args []string) error {
			type entry struct {
				ID    string       `json:"ds_id"`
				Key   string       `json:"key"`
				Fixes []fixSummary `json:"fixes"`
			}
			out := make([]entry, 0, len(args))
			for _, id := range args {
				canon, err := a.canon.CanonicalizeString(id)
				if err != nil {
					return err
				}
				recs, err := a.fixer.Lookup(ctx, canon)
				if err != nil {
					return err
				}
				// Resolving the names catches records that reference
				// unregistered functions.
				if _, err := fix.Build(canon, recs, a.fixer.Registry()); err != nil {
					return err
				}
				e := entry{ID: canon, Key: a.fixer.Key(canon), Fixes: []fixSummary{}}
				for _, r := range recs {
					e.Fixes = append(e.Fixes, fixSummary{Name: r.ReferenceImplementation, Type: r.ProcessType, Operands: r.Operands})
				}
				out = append(out, e)
			}
			enc := json.NewEncoder(a.out)
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		}),
	}
}

type fixSummary struct {
	Name     string         `json:"reference_implementation"`
	Type     string         `json:"process_type"`
	Operands config.Options `json:"operands"`
}

func newExportCmd(fs afero.Fs, withApp appRunner) *cobra.Command {
	var (
		sel        selection
		applyFixes bool
		outputDir  string
		mode       string
	)
	cmd := &cobra.Command{
		Use:   "export REF...",
		Short: "Assemble each dataset and write it to the output directory",
		RunE: withApp(func(ctx context.Context, a *app, args []string) error {
			refs, err := sel.refs(fs, args)
			if err != nil {
				return err
			}
			tf, err := sel.filter()
			if err != nil {
				return err
			}
			if mode == "" {
				mode = a.cfg.Execution.Mode
			}
			m, err := ops.ParseMode(mode)
			if err != nil {
				return err
			}
			rs, err := a.orchestrator(m).Run(ctx, ops.NewExport(fs, outputDir), ops.Request{
				Collection: refs,
				Time:       tf,
				ApplyFixes: applyFixes,
			})
			if err != nil {
				return err
			}
			for _, uri := range rs.FileURIs() {
				fmt.Fprintln(a.out, uri)
			}
			return nil
		}),
	}
	sel.bind(cmd)
	f := cmd.Flags()
	f.BoolVar(&applyFixes, "apply-fixes", true, "apply the fixes registered for each dataset")
	f.StringVar(&outputDir, "output-dir", ".", "directory for output files")
	f.StringVar(&mode, "mode", "", "dispatch mode: serial or parallel (default from config)")
	return cmd
}

func newValidateCmd(fs afero.Fs, getenv func(string) string, o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate the configuration and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, issues, err := loadConfig(fs, getenv, *o)
			for _, iss := range issues {
				fmt.Fprintln(cmd.OutOrStdout(), iss.Error())
			}
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "configuration is valid")
			return nil
		},
	}
}

func newManifestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "manifest",
		Short: "List the registered fix functions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			m := registry.Default.Manifest()
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			if err := enc.Encode(map[string][]string{
				"pre_processors":   m.Pre,
				"post_processors":  m.Post,
				"derive_functions": m.Derive,
			}); err != nil {
				return err
			}
			return enc.Close()
		},
	}
}

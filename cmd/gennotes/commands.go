package main

import (
	"encoding/json"
	"io"
	"strings"

	"gennotes/pkg/domain"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
)

type rootFlags struct {
	configPath string
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}
	root := &cobra.Command{
		Use:           "gennotes",
		Short:         "Versioned, tag-based annotations for genomic variants",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&flags.configPath, "config", "c", "", "path to a config file (yaml, json or toml)")
	root.AddCommand(newServeCmd(flags), newHistoryCmd(flags), newArchiveCmd(flags))
	return root
}

// recordFlags identifies one record by kind and id.
type recordFlags struct {
	kind string
	id   int64
}

func (f *recordFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.kind, "kind", string(domain.EntityRelation), "record kind: variant or relation")
	cmd.Flags().Int64Var(&f.id, "id", 0, "record id")
}

func (f *recordFlags) entity() (domain.EntityType, error) {
	kind := domain.EntityType(strings.ToLower(strings.TrimSpace(f.kind)))
	if _, ok := domain.PolicyFor(kind); !ok {
		return "", errors.Newf("unknown record kind %q", f.kind)
	}
	if f.id <= 0 {
		return "", errors.New("--id must be a positive integer")
	}
	return kind, nil
}

func newHistoryCmd(root *rootFlags) *cobra.Command {
	rec := &recordFlags{}
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Print the revision history of a record as JSON",
		RunE: func(cmd *cobra.Command, _ []string) error {
			kind, err := rec.entity()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			a, err := bootstrap(ctx, root.configPath)
			if err != nil {
				return err
			}
			defer a.Close()
			history, err := a.svc.History(ctx, kind, rec.id)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), history)
		},
	}
	rec.register(cmd)
	return cmd
}

func newArchiveCmd(root *rootFlags) *cobra.Command {
	rec := &recordFlags{}
	var list bool
	cmd := &cobra.Command{
		Use:   "archive",
		Short: "Export a record history to the configured blob store",
		RunE: func(cmd *cobra.Command, _ []string) error {
			var kind domain.EntityType
			if !list {
				var err error
				if kind, err = rec.entity(); err != nil {
					return err
				}
			}
			ctx := cmd.Context()
			a, err := bootstrap(ctx, root.configPath)
			if err != nil {
				return err
			}
			defer a.Close()
			exporter, err := a.exporter(ctx)
			if err != nil {
				return err
			}
			if list {
				artifacts, err := exporter.List(ctx, "")
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), artifacts)
			}
			artifact, err := exporter.Export(ctx, kind, rec.id)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), artifact)
		},
	}
	rec.register(cmd)
	cmd.Flags().BoolVar(&list, "list", false, "list archived histories instead of exporting")
	cmd.MarkFlagsMutuallyExclusive("list", "id")
	return cmd
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

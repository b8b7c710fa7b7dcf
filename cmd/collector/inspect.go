package main

import (
	"errors"
	"fmt"

	"github.com/aevon-lab/indexer-metrics-collector/internal/collector"
	"github.com/aevon-lab/indexer-metrics-collector/internal/core/metrics"
	"github.com/aevon-lab/indexer-metrics-collector/internal/core/storage"
	"github.com/prometheus/common/expfmt"
	"github.com/spf13/cobra"
)

var inspectRaw bool

var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Print the persisted histograms",
	Long: `Read the persisted histograms from the configured storage and print them in the
Prometheus text format, or as the stored blobs with --raw.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		store, err := openStore(cfg.Storage)
		if err != nil {
			return fmt.Errorf("failed to initialize storage: %w", err)
		}
		defer store.Close()

		return inspect(cmd, store, cfg.Metrics.DefaultLabels)
	},
}

func init() {
	inspectCmd.Flags().BoolVar(&inspectRaw, "raw", false, "Print stored blobs instead of the exposition")
}

func inspect(cmd *cobra.Command, store storage.KVStore, defaultLabels map[string]string) error {
	out := cmd.OutOrStdout()
	defs := metrics.IndexerDefinitions()

	if inspectRaw {
		for _, def := range defs {
			blob, err := store.Get(cmd.Context(), def.StorageKey)
			if errors.Is(err, storage.ErrNotFound) {
				fmt.Fprintf(out, "%s: <empty>\n", def.StorageKey)
				continue
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "%s: %s\n", def.StorageKey, blob)
		}
		return nil
	}

	coll, err := collector.New(cmd.Context(), store, defs, defaultLabels)
	if err != nil {
		return err
	}
	families, err := coll.Gatherer().Gather()
	if err != nil {
		return err
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(out, mf); err != nil {
			return err
		}
	}
	return nil
}

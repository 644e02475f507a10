package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/alberthupa/graphrag-again/internal/config"
	"github.com/alberthupa/graphrag-again/internal/metrics"
	"github.com/alberthupa/graphrag-again/internal/resolution"
)

// inputDocument is the on-disk shape this CLI reads: a snapshot of entities
// and relationships assembled by an upstream extraction process, plus the
// ids of the runs that produced them.
type inputDocument struct {
	Entities      []resolution.Entity      `json:"entities"`
	Relationships []resolution.Relationship `json:"relationships"`
	SourceRunIDs  []string                  `json:"source_run_ids,omitempty"`
}

// runResult is the envelope printed for --json, the same OK/Message shape
// used throughout this CLI's subcommands.
type runResult struct {
	OK      bool                        `json:"ok"`
	Message string                      `json:"message"`
	Result  *resolution.ResolutionResult `json:"result,omitempty"`
}

func newRunCommand() *cobra.Command {
	var (
		inputPath           string
		entityThreshold     float64
		connectionThreshold float64
		maxDiscoveries      int
		dryRun              bool
		metricsAddr         string
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Resolve a document of entities and relationships",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

			doc, err := loadInputDocument(inputPath)
			if err != nil {
				result := runResult{OK: false, Message: err.Error()}
				if jsonOutput {
					_ = printJSON(result)
				} else {
					fmt.Fprintln(os.Stderr, "failed to load input:", err)
				}
				os.Exit(1)
			}

			appCfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("loading configuration: %w", err)
			}
			cfg := appCfg.Resolution

			if cmd.Flags().Changed("entity-threshold") {
				cfg.EntitySimilarityThreshold = entityThreshold
			}
			if cmd.Flags().Changed("connection-threshold") {
				cfg.ConnectionSimilarityThreshold = connectionThreshold
			}
			if cmd.Flags().Changed("max-discoveries") {
				cfg.MaxDiscoveriesPerRun = maxDiscoveries
			}

			var collector *metrics.Collector
			if (appCfg.Metrics.Enabled || cmd.Flags().Changed("metrics-addr")) && !dryRun {
				collector = metrics.NewCollector()
			}
			if cmd.Flags().Changed("metrics-addr") {
				appCfg.Metrics.Addr = metricsAddr
			}

			var metricsServer *http.Server
			if collector != nil && cmd.Flags().Changed("metrics-addr") {
				mux := http.NewServeMux()
				mux.Handle("/metrics", promhttp.Handler())
				metricsServer = &http.Server{Addr: appCfg.Metrics.Addr, Handler: mux}
				go func() {
					logger.Info("metrics listener starting", "address", metricsServer.Addr)
					if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
						logger.Error("metrics listener failed", "error", err)
					}
				}()
				defer func() {
					ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					if err := metricsServer.Shutdown(ctx); err != nil {
						logger.Error("metrics listener shutdown failed", "error", err)
					}
				}()
			}

			timer := metrics.NewTimer()
			result, err := resolution.Resolve(doc.Entities, doc.Relationships, cfg, logger, doc.SourceRunIDs)
			if collector != nil {
				collector.RecordRun(timer.Duration(), err)
			}
			if err != nil {
				if jsonOutput {
					_ = printJSON(runResult{OK: false, Message: err.Error()})
				} else {
					fmt.Fprintln(os.Stderr, "resolution failed:", err)
				}
				os.Exit(1)
			}

			if collector != nil {
				collector.RecordStats(
					result.Stats.EntitiesProcessed,
					result.Stats.EntitiesMerged,
					result.Stats.RelationshipsProcessed,
					result.Stats.RelationshipsConsolidated,
					result.Stats.NewConnectionsDiscovered,
					result.Stats.EntityMergeRate(),
				)
				if cfg.MaxDiscoveriesPerRun > 0 && result.Stats.NewConnectionsDiscovered == cfg.MaxDiscoveriesPerRun {
					collector.RecordDiscoveryTruncated()
				}
				for _, d := range result.EntityDecisions {
					collector.RecordDecisionConfidence(d.Confidence)
				}
			}

			if dryRun {
				if jsonOutput {
					return printJSON(runResult{OK: true, Message: "dry run, result not persisted", Result: result})
				}
				fmt.Println("dry run: resolution computed, nothing persisted")
				printResolutionSummary(result)
				return nil
			}

			if jsonOutput {
				return printJSON(runResult{OK: true, Message: "resolution complete", Result: result})
			}
			printResolutionSummary(result)
			return nil
		},
	}

	cmd.Flags().StringVarP(&inputPath, "input", "i", "-", "path to the input document (JSON), or - for stdin")
	cmd.Flags().Float64Var(&entityThreshold, "entity-threshold", 0, "override entity similarity threshold")
	cmd.Flags().Float64Var(&connectionThreshold, "connection-threshold", 0, "override connection discovery threshold")
	cmd.Flags().IntVar(&maxDiscoveries, "max-discoveries", 0, "override maximum number of discoveries to return")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "compute the resolution but skip any persistence side effects")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "start a Prometheus /metrics listener on this address")

	return cmd
}

func loadInputDocument(path string) (*inputDocument, error) {
	var r io.Reader
	if path == "-" || path == "" {
		r = os.Stdin
	} else {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("opening input document: %w", err)
		}
		defer f.Close()
		r = f
	}

	var doc inputDocument
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decoding input document: %w", err)
	}
	return &doc, nil
}

func encodeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printResolutionSummary renders the human-readable report, the same shape
// and section order as this pipeline's original summary printout.
func printResolutionSummary(result *resolution.ResolutionResult) {
	stats := result.Stats

	fmt.Println()
	fmt.Println("================================================================================")
	fmt.Println("DATA RESOLUTION PIPELINE RESULTS")
	fmt.Println("================================================================================")

	fmt.Println()
	fmt.Println("Overall statistics:")
	fmt.Printf("  Run ID: %s\n", result.RunID)
	fmt.Printf("  Timestamp: %s\n", result.Timestamp.Format("2006-01-02 15:04:05"))
	fmt.Printf("  Total processing time: %.2f seconds\n", stats.ResolutionDurationSeconds)

	fmt.Println()
	fmt.Println("Entity resolution:")
	fmt.Printf("  Entities processed: %d\n", stats.EntitiesProcessed)
	fmt.Printf("  Entities merged: %d\n", stats.EntitiesMerged)
	fmt.Printf("  Duplicate entities removed: %d\n", stats.DuplicateEntitiesRemoved)
	fmt.Printf("  Entity merge rate: %.1f%%\n", stats.EntityMergeRate()*100)
	fmt.Printf("  Final canonical entities: %d\n", len(result.CanonicalEntities))

	fmt.Println()
	fmt.Println("Relationship resolution:")
	fmt.Printf("  Relationships processed: %d\n", stats.RelationshipsProcessed)
	fmt.Printf("  Relationships consolidated: %d\n", stats.RelationshipsConsolidated)
	fmt.Printf("  Relationship consolidation rate: %.1f%%\n", stats.RelationshipConsolidationRate()*100)
	fmt.Printf("  Final consolidated relationships: %d\n", len(result.ConsolidatedRelationships))

	fmt.Println()
	fmt.Println("Connection discovery:")
	fmt.Printf("  New connections discovered: %d\n", stats.NewConnectionsDiscovered)

	if len(result.Discoveries) > 0 {
		fmt.Println()
		fmt.Println("Top discoveries (by confidence):")
		top := result.Discoveries
		if len(top) > 5 {
			top = top[:5]
		}
		for i, d := range top {
			fmt.Printf("  %d. confidence: %.3f\n", i+1, d.Confidence)
			fmt.Printf("     method: %s\n", d.Method)
			fmt.Printf("     connection: %s --[%s]--> %s\n", d.SubjectEntityID, d.SuggestedPredicate, d.ObjectEntityID)
			if len(d.SupportingEvidence) > 0 {
				fmt.Printf("     evidence: %s\n", d.SupportingEvidence[0])
			}
		}
	}

	if len(result.EntityDecisions) > 0 {
		fmt.Println()
		fmt.Println("Entity resolution examples:")
		examples := result.EntityDecisions
		if len(examples) > 3 {
			examples = examples[:3]
		}
		for i, d := range examples {
			fmt.Printf("  %d. method: %s\n", i+1, d.Method)
			fmt.Printf("     canonical: %s\n", d.CanonicalID)
			fmt.Printf("     merged: %d duplicates\n", len(d.DuplicateIDs))
			fmt.Printf("     similarity: %.3f\n", d.ClusterSimilarity)
		}
	}

	fmt.Println()
	fmt.Println("Next steps:")
	fmt.Println("  - Review high-confidence discoveries for manual validation")
	fmt.Println("  - Consider adjusting similarity thresholds based on results")
	fmt.Println("  - Use resolved canonical entities for downstream processing")
}

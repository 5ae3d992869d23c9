package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/xhad/docqa/internal/models"
	"github.com/xhad/docqa/pkg/eval"
	"github.com/xhad/docqa/pkg/pipeline"
)

var (
	askTopK         int
	askMaxDistance  float64
	askSession      string
	askEvalRelevant []string
)

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Answer one question from the indexed documents",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), cfg, log)
		if err != nil {
			return err
		}
		defer a.Close()

		req := pipeline.QueryRequest{
			Question:  strings.Join(args, " "),
			SessionID: askSession,
		}
		if cmd.Flags().Changed("top-k") {
			req.TopK = &askTopK
		}
		if cmd.Flags().Changed("max-distance") {
			req.MinDistance = &askMaxDistance
		}

		res, err := a.answer(cmd.Context(), req)
		if err != nil {
			return err
		}

		if len(askEvalRelevant) > 0 {
			printEval(res.Plan, askEvalRelevant)
		}
		return nil
	},
}

func init() {
	askCmd.Flags().IntVarP(&askTopK, "top-k", "k", 5, "number of candidates to retrieve")
	askCmd.Flags().Float64Var(&askMaxDistance, "max-distance", 1.5, "largest cosine distance a candidate may have")
	askCmd.Flags().StringVar(&askSession, "session", "", "session id for conversation history")
	askCmd.Flags().StringSliceVar(&askEvalRelevant, "eval-relevant", nil,
		"relevant chunk ids (source#chunk_id) to score retrieval against")
}

// answer runs one query, streaming tokens when the UI asks for it.
func (a *app) answer(ctx context.Context, req pipeline.QueryRequest) (pipeline.QueryResult, error) {
	assistantPrompt := color.New(color.FgCyan).PrintfFunc()

	if !a.cfg.UI.Streaming {
		spinner := getSpinner(" Generating response...")
		res, err := a.querier.Query(ctx, req)
		spinner.Finish()
		fmt.Print("\r")
		if err != nil {
			return res, err
		}
		assistantPrompt("\nAssistant: %s\n", res.Answer)
		printSources(res.Sources)
		return res, nil
	}

	spinner := getSpinner(" Searching documentation...")
	first := true
	fmt.Print("\n")
	res, err := a.querier.Stream(ctx, req, func(token string) {
		if first {
			spinner.Finish()
			fmt.Print("\r")
			assistantPrompt("Assistant: ")
			first = false
		}
		fmt.Print(token)
	})
	if first {
		spinner.Finish()
	}
	fmt.Print("\n")
	if err != nil {
		return res, err
	}
	printSources(res.Sources)
	return res, nil
}

func chunkKey(m models.Metadata) string {
	return fmt.Sprintf("%s#%d", m.Source, m.ChunkID)
}

func printEval(plan pipeline.Plan, relevant []string) {
	retrieved := make([]string, len(plan.Ranked))
	distances := make([]float64, len(plan.Ranked))
	for i, c := range plan.Ranked {
		retrieved[i] = chunkKey(c.Metadata)
		distances[i] = c.Distance
	}

	color.Yellow("\nRetrieval evaluation (%d retrieved, %d relevant)", len(retrieved), len(relevant))
	fmt.Printf("  precision@k:      %.3f\n", eval.PrecisionAtK(retrieved, relevant))
	fmt.Printf("  recall:           %.3f\n", eval.Recall(retrieved, relevant))
	fmt.Printf("  average distance: %.3f\n", eval.AverageDistance(distances))
}

func newSessionID() string {
	return uuid.NewString()
}

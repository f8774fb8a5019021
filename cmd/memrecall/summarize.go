package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/oceanbase/powermem-recall/pkg/core"
	"github.com/oceanbase/powermem-recall/pkg/embedder/hash"
)

func newSummarizeCmd(a *app) *cobra.Command {
	var (
		memoriesPath  string
		bundle        bool
		maxLength     int
		maxPerType    int
		maxMemories   int
		minImportance float64
		scores        bool
		timestamps    bool
	)

	cmd := &cobra.Command{
		Use:   "summarize",
		Short: "Turn a memory file into agent context",
		Long: `summarize renders a JSON array of memories as grouped text. With
--bundle it selects the most useful memories and prints a JSON context
bundle with themes, emotional and temporal analysis and a confidence score.

No embedding provider or vector store is contacted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			memories, err := readMemories(memoriesPath)
			if err != nil {
				return err
			}

			// Synthesis never embeds, so the offline provider is enough.
			client, err := core.NewClientWithProviders(nil, hash.NewClient(nil), nil)
			if err != nil {
				return err
			}
			defer client.Close()

			opts := []core.ContextOption{
				core.WithMaxLength(maxLength),
				core.WithMaxPerType(maxPerType),
				core.WithScores(scores),
				core.WithTimestamps(timestamps),
				core.WithMaxMemories(maxMemories),
				core.WithMinImportance(minImportance),
			}

			if bundle {
				b := client.BuildContextBundle(memories, opts...)
				for _, m := range b.Memories {
					m.Embedding = nil
				}
				return a.printJSON(b)
			}
			_, err = fmt.Fprintln(a.out, client.SummarizeContext(memories, opts...))
			return err
		},
	}
	cmd.Flags().StringVarP(&memoriesPath, "memories", "m", "", `JSON file of memories ("-" reads stdin)`)
	cmd.Flags().BoolVar(&bundle, "bundle", false, "print a JSON context bundle")
	cmd.Flags().IntVar(&maxLength, "max-length", 2000, "maximum summary length in characters")
	cmd.Flags().IntVar(&maxPerType, "max-per-type", 5, "maximum memories listed per type")
	cmd.Flags().IntVar(&maxMemories, "max-memories", 10, "maximum memories kept in a bundle")
	cmd.Flags().Float64Var(&minImportance, "min-importance", 0, "drop bundle memories below this importance")
	cmd.Flags().BoolVar(&scores, "scores", false, "prefix lines with memory scores")
	cmd.Flags().BoolVar(&timestamps, "timestamps", false, "prefix lines with creation dates")
	_ = cmd.MarkFlagRequired("memories")
	return cmd
}

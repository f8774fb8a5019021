package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/oceanbase/powermem-recall/pkg/core"
)

// rankFlags are the ranking knobs shared by search and recall.
type rankFlags struct {
	query     string
	limit     int
	diversity float64
	fuzzy     bool
	expand    bool
	weights   string
	recent    []string
	session   []string
	timeCtx   bool
	summarize bool
}

func (f *rankFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.query, "query", "q", "", "query text")
	cmd.Flags().IntVarP(&f.limit, "limit", "n", 10, "maximum number of results")
	cmd.Flags().Float64Var(&f.diversity, "diversity", 0.3, "MMR diversity factor, 0 disables diversification")
	cmd.Flags().BoolVar(&f.fuzzy, "fuzzy", true, "enable fuzzy lexical matching")
	cmd.Flags().BoolVar(&f.expand, "expand", false, "blend synonym expansion into the query embedding")
	cmd.Flags().StringVar(&f.weights, "weights", "", "semantic,fuzzy,recency,frequency,importance")
	cmd.Flags().StringSliceVar(&f.recent, "recent", nil, "recent queries of the session")
	cmd.Flags().StringSliceVar(&f.session, "session", nil, "topics of the current session")
	cmd.Flags().BoolVar(&f.timeCtx, "time-context", false, "score against the current time of day, weekday and season")
	cmd.Flags().BoolVar(&f.summarize, "summarize", false, "print a context summary instead of JSON results")
	_ = cmd.MarkFlagRequired("query")
}

// options turns the flags that were set into search options.
func (f *rankFlags) options(cmd *cobra.Command) ([]core.SearchOption, error) {
	var opts []core.SearchOption
	if cmd.Flags().Changed("limit") {
		opts = append(opts, core.WithLimit(f.limit))
	}
	if cmd.Flags().Changed("diversity") {
		opts = append(opts, core.WithDiversityFactor(f.diversity))
	}
	if cmd.Flags().Changed("fuzzy") {
		opts = append(opts, core.WithFuzzyMatching(f.fuzzy))
	}
	if cmd.Flags().Changed("expand") {
		opts = append(opts, core.WithSemanticExpansion(f.expand))
	}
	if f.weights != "" {
		w, err := core.ParseWeights(f.weights)
		if err != nil {
			return nil, err
		}
		opts = append(opts, core.WithWeights(w))
	}

	if len(f.recent) > 0 || len(f.session) > 0 || f.timeCtx {
		sctx := &core.SearchContext{
			RecentQueries:  f.recent,
			SessionContext: f.session,
		}
		if f.timeCtx {
			sctx.TimeContext = core.NewTimeContext(time.Now())
		}
		opts = append(opts, core.WithSearchContext(sctx))
	}
	return opts, nil
}

func (a *app) printResults(client *core.Client, results []*core.SearchResult, summarize bool) error {
	if !summarize {
		for _, r := range results {
			r.Memory.Embedding = nil
		}
		return a.printJSON(results)
	}
	memories := make([]*core.Memory, len(results))
	for i, r := range results {
		memories[i] = r.Memory
	}
	_, err := fmt.Fprintln(a.out, client.SummarizeContext(memories, core.WithScores(true)))
	return err
}

func newSearchCmd(a *app) *cobra.Command {
	var flags rankFlags
	var candidatesPath string

	cmd := &cobra.Command{
		Use:   "search",
		Short: "Rank a candidate file against a query",
		Long: `search ranks the memories of a JSON file (an array of memory objects,
"-" reads stdin) against the query. Candidates without an embedding are
embedded first.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := flags.options(cmd)
			if err != nil {
				return err
			}
			candidates, err := readMemories(candidatesPath)
			if err != nil {
				return err
			}

			return a.withClient(func(client *core.Client) error {
				if err := client.EmbedMissing(cmd.Context(), candidates); err != nil {
					return err
				}
				results, err := client.Search(cmd.Context(), flags.query, candidates, opts...)
				if err != nil {
					return err
				}
				return a.printResults(client, results, flags.summarize)
			})
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVarP(&candidatesPath, "candidates", "c", "", "JSON file of candidate memories")
	_ = cmd.MarkFlagRequired("candidates")
	return cmd
}

func newRecallCmd(a *app) *cobra.Command {
	var flags rankFlags
	var agent string
	var pool int

	cmd := &cobra.Command{
		Use:   "recall",
		Short: "Rank the stored memories of a tenant against a query",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireTenant(); err != nil {
				return err
			}
			opts, err := flags.options(cmd)
			if err != nil {
				return err
			}
			opts = append(opts, core.WithTenantIDForSearch(a.tenant))
			if agent != "" {
				opts = append(opts, core.WithAgentIDForSearch(agent))
			}
			if cmd.Flags().Changed("pool") {
				opts = append(opts, core.WithCandidatePool(pool))
			}

			return a.withClient(func(client *core.Client) error {
				results, err := client.Recall(cmd.Context(), flags.query, opts...)
				if err != nil {
					return err
				}
				return a.printResults(client, results, flags.summarize)
			})
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVar(&agent, "agent", "", "restrict recall to one agent")
	cmd.Flags().IntVar(&pool, "pool", 50, "number of store candidates to rank")
	return cmd
}

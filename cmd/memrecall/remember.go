package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/oceanbase/powermem-recall/pkg/core"
)

func newRememberCmd(a *app) *cobra.Command {
	var (
		memoryType string
		importance float64
		agent      string
		tags       []string
		ttl        time.Duration
	)

	cmd := &cobra.Command{
		Use:   "remember <content>",
		Short: "Store a memory for a tenant",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireTenant(); err != nil {
				return err
			}

			opts := []core.RememberOption{core.WithTenantID(a.tenant)}
			if memoryType != "" {
				t, err := core.ParseMemoryType(memoryType)
				if err != nil {
					return err
				}
				opts = append(opts, core.WithMemoryType(t))
			}
			if cmd.Flags().Changed("importance") {
				opts = append(opts, core.WithImportance(importance))
			}
			if agent != "" {
				opts = append(opts, core.WithAgentID(agent))
			}
			if len(tags) > 0 {
				opts = append(opts, core.WithTags(tags...))
			}
			if ttl > 0 {
				opts = append(opts, core.WithTTL(ttl))
			}

			return a.withClient(func(client *core.Client) error {
				memory, err := client.Remember(cmd.Context(), strings.Join(args, " "), opts...)
				if err != nil {
					return err
				}
				memory.Embedding = nil
				return a.printJSON(memory)
			})
		},
	}
	cmd.Flags().StringVarP(&memoryType, "type", "t", "", "memory type (fact, preference, personality, emotion, task, thread, procedure)")
	cmd.Flags().Float64Var(&importance, "importance", 0, "importance in [0, 1]; estimated from the content when omitted")
	cmd.Flags().StringVar(&agent, "agent", "", "agent the memory belongs to")
	cmd.Flags().StringSliceVar(&tags, "tags", nil, "comma-separated tags")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "expire the memory after this duration")
	return cmd
}

func newForgetCmd(a *app) *cobra.Command {
	var agent string

	cmd := &cobra.Command{
		Use:   "forget <id>",
		Short: "Delete a stored memory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireTenant(); err != nil {
				return err
			}
			var opts []core.ForgetOption
			if agent != "" {
				opts = append(opts, core.WithAgentIDForForget(agent))
			}

			return a.withClient(func(client *core.Client) error {
				if err := client.Forget(cmd.Context(), a.tenant, args[0], opts...); err != nil {
					return err
				}
				_, err := fmt.Fprintf(a.out, "forgot %s\n", args[0])
				return err
			})
		},
	}
	cmd.Flags().StringVar(&agent, "agent", "", "only delete when the memory belongs to this agent")
	return cmd
}

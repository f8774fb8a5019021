package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/oceanbase/powermem-recall/pkg/core"
	"github.com/oceanbase/powermem-recall/pkg/metrics"
)

// app holds the global flags shared by every subcommand.
type app struct {
	envFile     string
	configFile  string
	metricsAddr string
	tenant      string
	out         io.Writer
}

// newRootCmd builds the command tree writing results to out.
func newRootCmd(out io.Writer) *cobra.Command {
	a := &app{out: out}

	root := &cobra.Command{
		Use:   "memrecall",
		Short: "Rank, diversify and summarize agent memories",
		Long: `memrecall ranks memories against a query with a hybrid score
(semantic, fuzzy, recency, frequency, importance), diversifies the result
list and turns ranked memories into context for an agent.

Configuration is read from the environment (.env files are picked up
automatically), from --env or from a JSON file given with --config.`,
		SilenceUsage: true,
	}
	root.SetOut(out)

	root.PersistentFlags().StringVar(&a.envFile, "env", "", "load configuration from this .env file")
	root.PersistentFlags().StringVar(&a.configFile, "config", "", "load configuration from this JSON file")
	root.PersistentFlags().StringVar(&a.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address while the command runs")
	root.PersistentFlags().StringVar(&a.tenant, "tenant", "", "tenant the command operates on")

	root.AddCommand(
		newSearchCmd(a),
		newRecallCmd(a),
		newRememberCmd(a),
		newForgetCmd(a),
		newSummarizeCmd(a),
	)
	return root
}

func (a *app) loadConfig() (*core.Config, error) {
	switch {
	case a.configFile != "":
		return core.LoadConfigFromJSON(a.configFile)
	case a.envFile != "":
		return core.LoadConfigFromEnvFile(a.envFile)
	default:
		return core.LoadConfigFromEnv()
	}
}

// withClient opens a client for the duration of fn. When --metrics-addr is
// set the collectors are served until fn returns.
func (a *app) withClient(fn func(*core.Client) error) error {
	cfg, err := a.loadConfig()
	if err != nil {
		return err
	}

	var opts []core.ClientOption
	if a.metricsAddr != "" {
		m := metrics.New(metrics.DefaultConfig())
		stop, err := serveMetrics(a.metricsAddr, m)
		if err != nil {
			return err
		}
		defer stop()
		opts = append(opts, core.WithMetrics(m))
	}

	client, err := core.NewClient(cfg, opts...)
	if err != nil {
		return err
	}

	runErr := fn(client)
	closeErr := client.Close()
	return errors.Join(runErr, closeErr)
}

func serveMetrics(addr string, m *metrics.Metrics) (func(), error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("metrics listener: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		_ = srv.Serve(listener)
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}, nil
}

func (a *app) requireTenant() error {
	if a.tenant == "" {
		return fmt.Errorf("--tenant is required: %w", core.ErrTenantRequired)
	}
	return nil
}

func (a *app) printJSON(v interface{}) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// readMemories decodes a JSON array of memories from path, or stdin for "-".
func readMemories(path string) ([]*core.Memory, error) {
	var r io.Reader
	if path == "-" {
		r = os.Stdin
	} else {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r = f
	}

	var memories []*core.Memory
	if err := json.NewDecoder(r).Decode(&memories); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return memories, nil
}

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hupe1980/debatemesh"
	"github.com/hupe1980/debatemesh/core"
	"github.com/hupe1980/debatemesh/engine"
	"github.com/hupe1980/debatemesh/logging"
	"github.com/hupe1980/debatemesh/reasoning"
	"github.com/hupe1980/debatemesh/reasoning/anthropic"
	"github.com/hupe1980/debatemesh/reasoning/openai"
	"github.com/hupe1980/debatemesh/selector"
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a debate over a scenario and stream its events",
		RunE:  runDebate,
	}

	cmd.Flags().String("scenario", "", "Debate scenario (required)")
	cmd.Flags().Int("rounds", 5, "Round budget")
	cmd.Flags().String("strategy", "role_matched", "Provider selection strategy (role_matched, random, round_robin)")
	cmd.Flags().String("method", "simple_majority", "Consensus method (simple_majority, weighted, borda_count)")
	cmd.Flags().Bool("mock", false, "Use mock providers instead of real API backends")

	_ = cmd.MarkFlagRequired("scenario")

	return cmd
}

func runDebate(cmd *cobra.Command, args []string) error {
	scenario, _ := cmd.Flags().GetString("scenario")
	rounds, _ := cmd.Flags().GetInt("rounds")
	strategy, _ := cmd.Flags().GetString("strategy")
	method, _ := cmd.Flags().GetString("method")
	mock, _ := cmd.Flags().GetBool("mock")
	levelName, _ := cmd.Root().PersistentFlags().GetString("log-level")
	format, _ := cmd.Root().PersistentFlags().GetString("log-format")

	logger := logging.NewSlogLogger(parseLevel(levelName), format, false)

	gw := reasoning.New(func(o *reasoning.Options) { o.Logger = logger })

	if mock {
		gw.Register("openai", reasoning.NewMockProvider("openai"))
		gw.Register("anthropic", reasoning.NewMockProvider("anthropic"))
	} else {
		openaiKey := os.Getenv("OPENAI_API_KEY")
		anthropicKey := os.Getenv("ANTHROPIC_API_KEY")

		if openaiKey == "" && anthropicKey == "" {
			return fmt.Errorf("no API keys found: set OPENAI_API_KEY and/or ANTHROPIC_API_KEY, or pass --mock")
		}

		if openaiKey != "" {
			gw.Register("openai", openai.NewProvider(func(o *openai.Options) { o.APIKey = openaiKey }))
		}

		if anthropicKey != "" {
			gw.Register("anthropic", anthropic.NewProvider(func(o *anthropic.Options) { o.APIKey = anthropicKey }))
		}
	}

	cfg := engine.DefaultConfig
	cfg.ConsensusMethod = core.Method(method)

	mesh := debatemesh.New(func(o *debatemesh.Options) {
		o.EngineConfig = cfg
		o.Strategy = selector.Strategy(strategy)
		o.Reasoning = gw
		o.Logger = logger
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	id, err := mesh.CreateSession(ctx, scenario, demoAgents(), rounds)
	if err != nil {
		return err
	}

	events, cancel, err := mesh.Subscribe(id)
	if err != nil {
		return err
	}
	defer cancel()

	if err := mesh.Start(ctx, id); err != nil {
		return err
	}

	fmt.Printf("session %s started: %q\n\n", id, scenario)

	waitCh := make(chan error, 1)

	go func() { waitCh <- mesh.Wait(ctx, id) }()

	seen := make(map[string]bool)

	for {
		select {
		case <-ctx.Done():
			_ = mesh.Pause(id)
			fmt.Println("\ninterrupted, session paused")
			return nil

		case ev := <-events:
			if seen[ev.ID] {
				continue
			}

			seen[ev.ID] = true
			printEvent(ev)

		case err := <-waitCh:
			if err != nil {
				return err
			}

			return printSummary(ctx, mesh, id)
		}
	}
}

func demoAgents() []core.Agent {
	return []core.Agent{
		{ID: "analyst", Name: "Ada", Role: "data analyst", Persona: "rigorous, numbers first", InitialStance: core.StanceNeutral, Weight: 1.0},
		{ID: "ethicist", Name: "Elias", Role: "ethics advisor", Persona: "weighs societal impact", InitialStance: core.StanceNeutral, Weight: 1.0},
		{ID: "strategist", Name: "Sana", Role: "operations strategist", Persona: "pragmatic, execution focused", InitialStance: core.StanceNeutral, Weight: 1.0},
	}
}

func printEvent(ev core.Event) {
	switch ev.Kind {
	case core.EventTurnCompleted:
		agent, _ := ev.Payload["agent_name"].(string)
		content, _ := ev.Payload["content"].(string)
		fmt.Printf("[round %d] %s: %s\n", ev.Round, agent, firstLine(content))
	case core.EventTurnFailed:
		agent, _ := ev.Payload["agent_name"].(string)
		fmt.Printf("[round %d] %s: turn failed\n", ev.Round, agent)
	case core.EventRoundCompleted:
		fmt.Printf("[round %d] round completed\n", ev.Round)
	case core.EventConsensusReached:
		fmt.Printf("[round %d] consensus reached\n", ev.Round)
	case core.EventSessionUpdate:
		fmt.Printf("session is now %s\n", ev.Status)
	}
}

func printSummary(ctx context.Context, mesh *debatemesh.DebateMesh, id string) error {
	stats, err := mesh.Stats(ctx, id)
	if err != nil {
		return err
	}

	fmt.Printf("\nfinished after %d rounds, %d contributions, consensus_reached=%t\n", stats.Round, stats.Messages, stats.ConsensusReached)

	return nil
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}

	return s
}

func parseLevel(s string) logging.LogLevel {
	switch strings.ToLower(s) {
	case "debug":
		return logging.LogLevelDebug
	case "warn":
		return logging.LogLevelWarn
	case "error":
		return logging.LogLevelError
	default:
		return logging.LogLevelInfo
	}
}

package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/agentflow/agentflow/internal/config"
	"github.com/agentflow/agentflow/internal/engine"
	"github.com/agentflow/agentflow/internal/models"
)

const version = "0.1.0-alpha"

func main() {
	printBanner()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	eng := engine.New(config.FromEnv())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Println("\n\nShutting down...")
		eng.Close()
		cancel()
		os.Exit(0)
	}()

	if err := eng.Initialize(ctx); err != nil {
		fmt.Printf("❌ Failed to initialize engine: %v\n", err)
		os.Exit(1)
	}
	defer eng.Close()

	fmt.Println("🤖 Predictive Agent Router Active:")
	fmt.Println("   Type a task description to get agent recommendations")
	fmt.Println("   Commands: /help /metrics /optimize /outcome /exit")
	fmt.Println()

	scanner := bufio.NewScanner(os.Stdin)

	for {
		fmt.Print("Task: ")
		if !scanner.Scan() {
			break
		}

		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}

		if strings.HasPrefix(input, "/") {
			handleCommand(ctx, input, eng)
			continue
		}

		start := time.Now()
		result := eng.PredictAgents(ctx, input, "general", 3, false)
		if !result.Success {
			fmt.Printf("❌ Error: %s\n\n", result.Error)
			continue
		}

		printPrediction(result, time.Since(start))
	}
}

func printPrediction(result *engine.PredictResult, elapsed time.Duration) {
	if len(result.Recommendations) == 0 {
		fmt.Println("\n⚠️ No suitable agents for this task")
		fmt.Println()
		return
	}

	fmt.Printf("\n📋 Recommended agents (%s strategy):\n", result.CoordinationStrategy)
	for i, rec := range result.Recommendations {
		fmt.Printf("   %d. %-20s suitability %.2f | ~%dms | ~%d tokens\n",
			i+1, rec.AgentName, rec.SuitabilityScore, rec.EstimatedDurationMs, rec.EstimatedTokens)
	}
	fmt.Printf("\n   Predicted success: %.0f%% | Confidence: %.2f | Est. total: %dms\n",
		result.PredictedSuccessRate*100, result.ConfidenceScore, result.EstimatedTotalMs)
	fmt.Printf("   Task ID: %s\n", result.TaskID)
	fmt.Printf("⏱ %.1fms\n\n", float64(elapsed.Microseconds())/1000)
}

func handleCommand(ctx context.Context, cmd string, eng *engine.Engine) {
	parts := strings.Fields(cmd)
	if len(parts) == 0 {
		return
	}

	switch parts[0] {
	case "/help":
		fmt.Println("\nCommands:")
		fmt.Println("  /metrics                                  Engine performance metrics")
		fmt.Println("  /optimize                                 Mine outcome history for insights")
		fmt.Println("  /outcome <task-id> <ok|fail> <quality> <ms> <agent> [agent...]")
		fmt.Println("  /exit")
		fmt.Println()
	case "/metrics":
		handleMetrics(ctx, eng)
	case "/optimize":
		handleOptimize(ctx, eng)
	case "/outcome":
		handleOutcome(ctx, parts[1:], eng)
	case "/exit", "/quit":
		fmt.Println("Goodbye! 👋")
		eng.Close()
		os.Exit(0)
	default:
		fmt.Printf("Unknown command: %s (try /help)\n\n", parts[0])
	}
}

func handleMetrics(ctx context.Context, eng *engine.Engine) {
	result := eng.GetMetrics(ctx)
	if !result.Success {
		fmt.Printf("❌ Error: %s\n\n", result.Error)
		return
	}

	m := result.Metrics
	fmt.Println("\n=== Engine Metrics ===")
	fmt.Printf("Scored predictions:  %d\n", m.TotalPredictions)
	fmt.Printf("Prediction accuracy: %.2f\n", m.PredictionAccuracy)
	fmt.Printf("Avg confidence:      %.2f\n", m.ConfidenceScore)
	fmt.Printf("Recent tasks (24h):  %d\n", m.RecentTaskCount)
	fmt.Printf("Recent success rate: %.2f\n", m.RecentSuccessRate)
	fmt.Printf("Avg response time:   %.0fms\n", m.AvgResponseTimeMs)
	fmt.Printf("Cache entries:       %d\n", m.CacheSize)

	if len(m.TopAgents) > 0 {
		fmt.Println("\nTop agents:")
		for i, agent := range m.TopAgents {
			if i >= 5 {
				break
			}
			fmt.Printf("  • %-20s success %.2f | quality %.2f | %.0fms avg\n",
				agent.Name, agent.SuccessRate, agent.AvgQualityScore, agent.AvgExecutionMs)
		}
	}
	fmt.Println()
}

func handleOptimize(ctx context.Context, eng *engine.Engine) {
	fmt.Println("\n🧠 Mining outcome history...")

	result := eng.OptimizePatterns(ctx)
	if !result.Success {
		fmt.Printf("❌ Error: %s\n\n", result.Error)
		return
	}
	if len(result.Insights) == 0 {
		fmt.Println("No qualifying patterns yet (need 3+ successful outcomes per group)")
		fmt.Println()
		return
	}

	for _, insight := range result.Insights {
		fmt.Printf("✓ (%s, %s): %s | quality %.2f over %d samples\n",
			insight.ProjectPath, insight.TaskType,
			strings.Join(insight.OptimalAgents, ", "),
			insight.QualityScore, insight.SampleSize)
	}
	fmt.Println()
}

func handleOutcome(ctx context.Context, args []string, eng *engine.Engine) {
	if len(args) < 5 {
		fmt.Println("\nUsage: /outcome <task-id> <ok|fail> <quality 0-1> <duration-ms> <agent> [agent...]")
		fmt.Println("Example: /outcome a1b2c3 ok 0.9 4200 SECURITY DATABASE")
		fmt.Println()
		return
	}

	quality, err := strconv.ParseFloat(args[2], 64)
	if err != nil {
		fmt.Printf("❌ Invalid quality score: %s\n\n", args[2])
		return
	}
	duration, err := strconv.Atoi(args[3])
	if err != nil {
		fmt.Printf("❌ Invalid duration: %s\n\n", args[3])
		return
	}

	result := eng.RecordOutcome(ctx, models.OutcomeRecord{
		TaskID:       args[0],
		Agents:       args[4:],
		DurationMs:   duration,
		Success:      args[1] == "ok",
		QualityScore: quality,
	})
	if !result.Success {
		fmt.Printf("❌ Error: %s\n\n", result.Error)
		return
	}
	fmt.Print("✓ Outcome recorded\n\n")
}

func printBanner() {
	fmt.Printf(`
╔═════════════════════════════════════════════════════════╗
║          AgentFlow Predictive Router %s         ║
║         Historical performance based allocation         ║
╚═════════════════════════════════════════════════════════╝

`, version)
}

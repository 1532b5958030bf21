package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/hrygo/ajanda/channel/telegram"
)

var rootCmd = &cobra.Command{
	Use:   "ajanda",
	Short: `A Turkish voice-assistant dialog engine for calendar management. Talk to it, it fills the gaps, asks before it writes.`,
	PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
		// Try to load .env file from current directory (ignore error if file doesn't exist)
		_ = godotenv.Load()
		return nil
	},
	RunE: func(cmd *cobra.Command, _ []string) error {
		rt, err := buildRuntime()
		if err != nil {
			return err
		}
		defer rt.Close()

		printGreetings(rt)
		return runREPL(cmd.Context(), rt)
	},
}

var telegramCmd = &cobra.Command{
	Use:   "telegram",
	Short: "Run the assistant as a Telegram bot over long polling",
	RunE: func(_ *cobra.Command, _ []string) error {
		rt, err := buildRuntime()
		if err != nil {
			return err
		}
		defer rt.Close()

		if rt.profile.TelegramToken == "" {
			return fmt.Errorf("telegram token required (set AJANDA_TELEGRAM_TOKEN)")
		}

		ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()

		if port := viper.GetInt("metrics-port"); port > 0 {
			go serveMetrics(port)
		}

		ch, err := telegram.NewChannel(&telegram.Config{
			BotToken:   rt.profile.TelegramToken,
			ContextFor: rt.turnContext,
		}, rt.engine, slog.Default())
		if err != nil {
			return err
		}

		printGreetings(rt)
		if err := ch.Run(ctx); err != nil && ctx.Err() == nil {
			return err
		}
		return nil
	},
}

func serveMetrics(port int) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	addr := fmt.Sprintf(":%d", port)
	slog.Info("metrics endpoint started", "addr", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		slog.Error("metrics endpoint failed", "error", err)
	}
}

func init() {
	viper.SetDefault("mode", "dev")
	viper.SetDefault("driver", "sqlite")

	rootCmd.PersistentFlags().String("mode", "dev", `mode, can be "prod" or "dev" or "demo"`)
	rootCmd.PersistentFlags().String("data", "", "data directory")
	rootCmd.PersistentFlags().String("driver", "sqlite", "database driver (sqlite)")
	rootCmd.PersistentFlags().String("dsn", "", "database source name (aka. DSN)")
	rootCmd.PersistentFlags().Int("metrics-port", 0, "port for the Prometheus /metrics endpoint (0 disables it)")

	for _, key := range []string{"mode", "data", "driver", "dsn", "metrics-port"} {
		if err := viper.BindPFlag(key, rootCmd.PersistentFlags().Lookup(key)); err != nil {
			panic(err)
		}
	}

	viper.SetEnvPrefix("ajanda")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))

	rootCmd.AddCommand(telegramCmd)
}

func printGreetings(rt *runtime) {
	fmt.Printf("Ajanda %s started successfully!\n", rt.profile.Version)

	if rt.profile.IsDev() {
		fmt.Fprint(os.Stderr, "Development mode is enabled\n")
	}

	fmt.Printf("Data directory: %s\n", rt.profile.Data)
	fmt.Printf("Database driver: %s\n", rt.profile.Driver)
	fmt.Printf("Mode: %s\n", rt.profile.Mode)
	fmt.Printf("Timezone: %s\n", rt.profile.Timezone)
	if rt.profile.IsAIEnabled() {
		fmt.Printf("LLM: %s (%s)\n", rt.profile.LLMModel, rt.profile.LLMProvider)
	} else {
		fmt.Println("LLM: disabled, deterministic menus only")
	}
	fmt.Println()
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

package cli

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/rcliao/agent-chat/internal/agent"
	"github.com/rcliao/agent-chat/internal/server"
)

func init() {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the chat agent HTTP server",
		Run:   runServe,
	}

	cmd.Flags().StringP("addr", "a", "", "Listen address (overrides config)")

	RootCmd.AddCommand(cmd)
}

func runServe(cmd *cobra.Command, args []string) {
	addr, _ := cmd.Flags().GetString("addr")

	cfg, err := loadConfig()
	if err != nil {
		exitErr("load config", err)
	}
	if addr != "" {
		cfg.Server.Addr = addr
	}

	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))

	threads, err := openThreads(cfg)
	if err != nil {
		exitErr("open threads", err)
	}

	mem, idx, err := openMemory(cfg)
	if err != nil {
		exitErr("open memory", err)
	}
	defer idx.Close()

	llm, err := agent.NewAnthropicStreamer()
	if err != nil {
		exitErr("init anthropic client", err)
	}

	newAgent := func() *agent.Agent {
		return agent.New(llm, agent.Options{
			Model:     cfg.Model.Name,
			MaxTokens: cfg.Model.MaxTokens,
			System:    cfg.Model.System,
			Tools:     agent.DefaultTools(mem),
		})
	}

	bridge, err := server.NewBridge(threads, newAgent, server.DefaultAgentCacheSize, logger)
	if err != nil {
		exitErr("init bridge", err)
	}

	handler := server.NewHandler(threads, bridge, logger)

	srv := &http.Server{
		Addr:        cfg.Server.Addr,
		Handler:     server.CORS(cfg.Server.CORSOrigins, handler.Routes()),
		ReadTimeout: 30 * time.Second,
		IdleTimeout: 120 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}
	logger.Info("server stopped")
}

// sessiontail attaches to a session host, follows its event stream, and
// prints assistant output for one session as it streams.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/hatcher/sessionhub/instance"
	"github.com/hatcher/sessionhub/message"
	"github.com/hatcher/sessionhub/pkg/logs"
)

type config struct {
	BaseURL    string `yaml:"base_url"`
	WorkingDir string `yaml:"working_dir"`
	CacheDir   string `yaml:"cache_dir"`
	LogLevel   string `yaml:"log_level"`
}

func loadConfig(path string) (config, error) {
	cfg := config{BaseURL: "http://127.0.0.1:4096"}
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func main() {
	var (
		configPath string
		sessionID  string
	)

	rootCmd := &cobra.Command{
		Use:          "sessiontail",
		Short:        "Follow a session host's event stream and print assistant output",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			logs.SetLevel(logs.GetLevel(cfg.LogLevel))
			return run(cmd.Context(), cfg, sessionID)
		},
	}
	rootCmd.Flags().StringVarP(&configPath, "config", "c", "", "path to yaml config")
	rootCmd.Flags().StringVarP(&sessionID, "session", "s", "", "session id to follow (default: all)")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config, sessionID string) error {
	reg := instance.NewRegistry()
	inst := instance.New(instance.Options{
		BaseURL:    cfg.BaseURL,
		WorkingDir: cfg.WorkingDir,
		CacheDir:   cfg.CacheDir,
	})
	reg.Add(inst)
	defer reg.ShutdownAll()

	if sessions, err := inst.LoadSessions(ctx); err != nil {
		logs.Warnf("initial session list fetch failed: %v", err)
	} else {
		for _, s := range sessions {
			fmt.Printf("session %s  %s\n", s.ID, s.Title)
		}
	}
	if sessionID != "" {
		inst.SetActiveSession(sessionID)
	}

	events := inst.Messages.Subscribe(ctx)
	done := make(chan error, 1)
	go func() { done <- inst.Run(ctx) }()

	// print only what was appended since the last update per message
	readBytes := make(map[string]int)
	for {
		select {
		case err := <-done:
			if ctx.Err() != nil {
				return nil
			}
			return err
		case event, ok := <-events:
			if !ok {
				return nil
			}
			msg := event.Payload
			if msg.Role != message.Assistant {
				continue
			}
			if sessionID != "" && msg.SessionID != sessionID {
				continue
			}
			content := inst.Messages.TextContent(msg.ID)
			read := readBytes[msg.ID]
			if len(content) <= read {
				continue
			}
			fmt.Print(content[read:])
			readBytes[msg.ID] = len(content)
			if msg.Status == message.Complete {
				fmt.Println()
				if snap, ok := inst.Metrics.Get(msg.SessionID); ok {
					tokens, estimate := snap.OutputTokens()
					prefix := ""
					if estimate {
						prefix = "≈"
					}
					if rate, ok := inst.Metrics.RollingTokPerSec(msg.SessionID); ok {
						fmt.Printf("[%s%d tokens, %d tok/s]\n", prefix, tokens, rate)
					} else {
						fmt.Printf("[%s%d tokens]\n", prefix, tokens)
					}
				}
			}
		case <-ctx.Done():
			return nil
		}
	}
}

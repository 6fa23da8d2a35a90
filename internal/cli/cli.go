package cli

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"sync"
	"syscall"

	"github.com/spf13/cobra"
	"gopkg.in/natefinch/lumberjack.v2"

	"cueloop.dev"
	"cueloop.dev/internal/config"
)

const Version = "0.3.0"

// CLI is the command-line front-end over the engine
type CLI struct {
	rootCmd          *cobra.Command
	configManager    *config.Manager
	terminalDetector TerminalDetector
	stdout           io.Writer
	stderr           io.Writer
}

// NewCLI creates a CLI instance
func NewCLI() *CLI {
	c := &CLI{
		configManager: config.NewManager(),
	}

	rootCmd := &cobra.Command{
		Use:   "cueloop [files...]",
		Short: "Multi-channel audio queue player",
		Long: "cueloop queues audio files on an independent playback channel and plays\n" +
			"them in order. File paths come from the arguments, or from stdin (one per\n" +
			"line) when no arguments are given and stdin is not a terminal.",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.ArbitraryArgs,
		RunE:          c.runPlayE,
	}

	rootCmd.PersistentFlags().String("config", "", "Path to config file")
	rootCmd.PersistentFlags().Float64("volume", -1, "Playback volume (0.0 to 1.0)")
	rootCmd.Flags().Int("channel", 0, "Channel to queue the files on")
	rootCmd.Flags().Bool("loop", false, "Loop the last file until interrupted")
	rootCmd.Flags().Bool("silent", false, "Silent mode - decode but produce no audio")
	rootCmd.Flags().BoolP("version", "v", false, "Show version information")

	rootCmd.AddCommand(newFormatsCommand())

	c.rootCmd = rootCmd
	return c
}

// Run executes the CLI with the given arguments and streams, returning the
// process exit code
func (c *CLI) Run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	c.stdout = stdout
	c.stderr = stderr

	c.rootCmd.SetArgs(args[1:])
	c.rootCmd.SetIn(stdin)
	c.rootCmd.SetOut(stdout)
	c.rootCmd.SetErr(stderr)

	if err := c.rootCmd.Execute(); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		slog.Error("command failed", "error", err)
		return 1
	}
	return 0
}

// runPlayE is the root command: queue the given files and play them in order
func (c *CLI) runPlayE(cmd *cobra.Command, args []string) error {
	if version, _ := cmd.Flags().GetBool("version"); version {
		cmd.Printf("cueloop version %s\nMulti-channel audio queue engine\n", Version)
		return nil
	}

	cfg, err := c.loadAndValidateConfig(cmd)
	if err != nil {
		return err
	}

	c.setupLogging(cfg, cmd.ErrOrStderr())

	files := args
	if len(files) == 0 {
		files = c.filesFromStdin(cmd.InOrStdin())
	}
	if len(files) == 0 {
		return fmt.Errorf("no audio files given")
	}

	if !cfg.Enabled {
		slog.Info("cueloop disabled by configuration, nothing to play")
		return nil
	}

	channel, _ := cmd.Flags().GetInt("channel")
	loop, _ := cmd.Flags().GetBool("loop")

	engine := cueloop.New(cueloop.Config{
		DefaultVolume:      cfg.Volume,
		MaxQueueSize:       cfg.MaxQueueSize,
		DropOldestWhenFull: cfg.DropOldestWhenFull,
		ElementKind:        cfg.Element,
		Retry:              retryPolicy(cfg),
	})
	defer engine.Close()

	return c.playFiles(cmd, engine, files, channel, loop)
}

// retryPolicy converts the config file's retry block, or nil for defaults
func retryPolicy(cfg *config.Config) *cueloop.RetryConfig {
	if cfg.Retry == nil {
		return nil
	}
	policy := cfg.Retry.Policy()
	return &policy
}

// playFiles queues every file on the channel and blocks until all of them
// settled (completed or failed terminally) or the process is interrupted
func (c *CLI) playFiles(cmd *cobra.Command, engine *cueloop.Engine, files []string, channel int, loop bool) error {
	var (
		mu      sync.Mutex
		settled int
		failed  int
	)
	done := make(chan struct{})

	expect := len(files)
	settle := func() {
		settled++
		if settled >= expect {
			close(done)
		}
	}

	engine.On(channel, cueloop.EventStart, func(payload any) {
		if info, ok := payload.(cueloop.AudioInfo); ok {
			cmd.Printf("Playing %s (%s)\n", info.Filename, info.Duration)
		}
	})
	engine.On(channel, cueloop.EventComplete, func(payload any) {
		mu.Lock()
		defer mu.Unlock()
		settle()
	})
	engine.On(channel, cueloop.EventError, func(payload any) {
		if info, ok := payload.(cueloop.ErrorInfo); ok {
			cmd.PrintErrf("Failed: %s (%s: %s)\n", info.Filename, info.Kind, info.Message)
		}
		mu.Lock()
		defer mu.Unlock()
		failed++
		settle()
	})

	for i, file := range files {
		opts := &cueloop.AudioOptions{
			// Only the last file loops; earlier ones must end to advance
			Loop: loop && i == len(files)-1,
		}
		if err := engine.Enqueue(file, channel, opts); err != nil {
			return fmt.Errorf("failed to enqueue %s: %w", file, err)
		}
	}

	slog.Info("playback session started",
		"files", len(files),
		"channel", channel,
		"loop", loop)

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(interrupt)

	select {
	case <-done:
	case <-interrupt:
		cmd.PrintErrln("interrupted")
		engine.StopEverything()
	}

	mu.Lock()
	defer mu.Unlock()
	if failed > 0 {
		return fmt.Errorf("%d of %d files failed to play", failed, len(files))
	}
	return nil
}

// filesFromStdin reads newline-separated file paths when stdin is piped
func (c *CLI) filesFromStdin(stdin io.Reader) []string {
	if f, ok := stdin.(*os.File); ok && c.isInteractiveTerminal(int(f.Fd())) {
		// Interactive terminal: don't block waiting for piped paths
		return nil
	}

	var files []string
	scanner := bufio.NewScanner(stdin)
	for scanner.Scan() {
		line := scanner.Text()
		if line != "" {
			files = append(files, line)
		}
	}

	slog.Debug("read file paths from stdin", "count", len(files))
	return files
}

// loadAndValidateConfig loads configuration from flags and files, applies
// overrides, and validates the result
func (c *CLI) loadAndValidateConfig(cmd *cobra.Command) (*config.Config, error) {
	configFile, _ := cmd.Flags().GetString("config")
	volumeFlag, _ := cmd.Flags().GetFloat64("volume")
	silent, _ := cmd.Flags().GetBool("silent")

	var cfg *config.Config
	var err error
	if configFile != "" {
		cfg, err = c.configManager.LoadFromFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	} else {
		cfg, err = c.configManager.LoadConfig()
		if err != nil {
			return nil, fmt.Errorf("error loading config: %w", err)
		}
	}

	cfg = c.configManager.ApplyEnvironmentOverrides(cfg)

	if cmd.Flags().Changed("volume") {
		if volumeFlag < 0.0 || volumeFlag > 1.0 {
			return nil, fmt.Errorf("volume must be between 0.0 and 1.0, got %s",
				strconv.FormatFloat(volumeFlag, 'f', -1, 64))
		}
		cfg.Volume = volumeFlag
		slog.Debug("volume override applied", "value", volumeFlag)
	}

	if silent {
		cfg.Element = "null"
		slog.Debug("silent mode enabled")
	}

	if err := c.configManager.Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// setupLogging configures slog, adding rotating file output when enabled
func (c *CLI) setupLogging(cfg *config.Config, stderrWriter io.Writer) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		level = slog.LevelWarn
	}

	stderrHandler := slog.NewTextHandler(stderrWriter, &slog.HandlerOptions{
		Level: level,
	})

	if cfg.FileLogging == nil || !cfg.FileLogging.Enabled {
		slog.SetDefault(slog.New(stderrHandler))
		return
	}

	logFilePath := c.configManager.ResolveLogFilePath(cfg.FileLogging.Filename)
	logDir := filepath.Dir(logFilePath)
	if err := os.MkdirAll(logDir, 0755); err != nil {
		// Continue without file logging rather than failing
		slog.SetDefault(slog.New(stderrHandler))
		slog.Error("failed to create log directory", "path", logDir, "error", err)
		return
	}

	fileWriter := &lumberjack.Logger{
		Filename:   logFilePath,
		MaxSize:    cfg.FileLogging.MaxSizeMB,
		MaxBackups: cfg.FileLogging.MaxBackups,
		MaxAge:     cfg.FileLogging.MaxAgeDays,
		Compress:   cfg.FileLogging.Compress,
	}

	// File gets everything from debug up; stderr keeps the configured level
	fileHandler := slog.NewTextHandler(fileWriter, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	})

	slog.SetDefault(slog.New(NewMultiLevelHandler(stderrHandler, fileHandler)))
	slog.Debug("file logging enabled", "path", logFilePath, "stderr_level", level.String())
}

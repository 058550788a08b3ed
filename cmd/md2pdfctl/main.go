// Command md2pdfctl converts a local Markdown directory to PDF with the same
// pipeline the md2pdf server uses.
package main

import (
	"os"

	"github.com/spf13/cobra"

	"md2pdf/internal/config"
	"md2pdf/internal/infra/logging"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "md2pdfctl",
		Short:         "Render Markdown directory trees to PDF",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level, _ := cmd.Flags().GetString("log-level")
			logging.InitConsole(cmd.ErrOrStderr(), level)
		},
	}
	root.PersistentFlags().String("config", "", "server config file (default: built-in defaults)")
	root.PersistentFlags().String("log-level", "warn", "log level: debug, info, warn, error")

	root.AddCommand(newConvertCmd(), newVersionCmd())
	return root
}

// loadConfig reads --config when given. PANDOC_BIN applies either way. The
// file's logger.level is used unless --log-level was set explicitly.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	if path != "" {
		cfg, err := loadFrom(path)
		if err == nil && !cmd.Flags().Changed("log-level") {
			logging.SetLogLevel(cfg.Logger.Level)
		}
		return cfg, err
	}
	cfg := config.Default()
	if v := os.Getenv("PANDOC_BIN"); v != "" {
		cfg.Converter.Binary = v
	}
	return cfg, cfg.Validate()
}

// loadFrom turns the config loader's start-up panic into an error.
func loadFrom(path string) (cfg config.Config, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = panicError{r}
		}
	}()
	return config.LoadFrom(path), nil
}

type panicError struct{ v any }

func (p panicError) Error() string {
	if s, ok := p.v.(string); ok {
		return s
	}
	return "invalid configuration"
}

func main() {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		root.PrintErrln("Error:", err)
		os.Exit(1)
	}
}

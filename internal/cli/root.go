package cli

import (
	"github.com/spf13/cobra"
)

const version = "0.1.0"

// rootOptions holds the global flags shared by every subcommand.
type rootOptions struct {
	cfgFile  string
	logLevel string
}

// NewRootCmd builds the toolgate command tree.
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:   "toolgate",
		Short: "Toolgate - policy-enforcing tool execution for LLM agents",
		Long: `Toolgate validates, authorizes and runs the tools an LLM agent calls.
Every call passes schema validation, a risk-based access policy and an
optional confirmation gate before it reaches the middleware chain.`,
		Version:      version,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&opts.cfgFile, "config", "", "config file (default is $HOME/.toolgate/toolgate.json)")
	rootCmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level override (debug, info, warn, error)")

	rootCmd.SetVersionTemplate(`{{with .Name}}{{printf "%s " .}}{{end}}{{printf "version %s" .Version}}
`)

	rootCmd.AddCommand(
		newToolsCmd(opts),
		newServeCmd(opts),
		newConfigCmd(opts),
	)

	return rootCmd
}

// Execute runs the toolgate command tree. It is called by main.main().
func Execute() error {
	return NewRootCmd().Execute()
}

// GetVersion returns the current version
func GetVersion() string {
	return version
}

package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/harun/toolgate/pkg/adapters"
	"github.com/harun/toolgate/pkg/adapters/anthropicadapter"
	"github.com/harun/toolgate/pkg/adapters/openaiadapter"
	"github.com/harun/toolgate/pkg/gateway"
	"github.com/harun/toolgate/pkg/toolexecutor"
	"github.com/spf13/cobra"
)

func newToolsCmd(opts *rootOptions) *cobra.Command {
	toolsCmd := &cobra.Command{
		Use:   "tools",
		Short: "List, describe and run the registered tools",
	}
	toolsCmd.AddCommand(
		newToolsListCmd(opts),
		newToolsRunCmd(opts),
		newToolsSpecsCmd(opts),
	)
	return toolsCmd
}

func newToolsListCmd(opts *rootOptions) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List registered tools",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := newRuntime(cmd, opts)
			if err != nil {
				return err
			}
			defer rt.Close()
			if err := rt.registerTools(); err != nil {
				return err
			}

			descriptors := make([]gateway.ToolDescriptor, 0, rt.registry.Count())
			for _, tool := range rt.registry.List() {
				descriptors = append(descriptors, gateway.DescribeTool(tool))
			}

			if asJSON {
				return writeJSON(cmd.OutOrStdout(), descriptors)
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tRISK\tCONFIRM\tDESCRIPTION")
			for _, d := range descriptors {
				confirm := "no"
				if d.RequiresConfirmation {
					confirm = "yes"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", d.Name, d.RiskLevel, confirm, d.Description)
			}
			return w.Flush()
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print tool descriptors as JSON")
	return cmd
}

type runFlags struct {
	args      string
	userID    string
	role      string
	admin     bool
	sudo      bool
	confirmed bool
}

func newToolsRunCmd(opts *rootOptions) *cobra.Command {
	flags := &runFlags{}

	cmd := &cobra.Command{
		Use:   "run <name>",
		Short: "Execute a tool through the full policy pipeline",
		Long: `Execute a tool with JSON arguments. The call goes through schema
validation, the risk policy and the confirmation gate exactly as an agent's
call would. A call that needs confirmation prints the pending arguments;
re-run it with --confirmed to proceed.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTool(cmd, opts, flags, args[0])
		},
	}

	cmd.Flags().StringVar(&flags.args, "args", "{}", "tool arguments as a JSON object")
	cmd.Flags().StringVar(&flags.userID, "user", "", "caller user ID")
	cmd.Flags().StringVar(&flags.role, "role", "", "caller role")
	cmd.Flags().BoolVar(&flags.admin, "admin", false, "mark the caller as admin")
	cmd.Flags().BoolVar(&flags.sudo, "sudo", false, "bypass the risk policy")
	cmd.Flags().BoolVar(&flags.confirmed, "confirmed", false, "confirm a call that requires confirmation")
	return cmd
}

func runTool(cmd *cobra.Command, opts *rootOptions, flags *runFlags, name string) error {
	toolArgs, err := adapters.DecodeArguments(flags.args)
	if err != nil {
		return fmt.Errorf("invalid --args: %w", err)
	}

	rt, err := newRuntime(cmd, opts)
	if err != nil {
		return err
	}
	defer rt.Close()
	if err := rt.registerTools(); err != nil {
		return err
	}

	execCtx := toolexecutor.ExecutionContext{IsAdmin: flags.admin}
	if flags.userID != "" || flags.role != "" {
		execCtx.User = &toolexecutor.User{ID: flags.userID, Role: flags.role}
	}
	execOpts := toolexecutor.ExecutionOptions{Sudo: flags.sudo, Confirmed: flags.confirmed}

	result, err := rt.registry.Execute(cmd.Context(), name, toolArgs, execCtx, execOpts)
	if rt.metrics != nil {
		rt.metrics.ObserveOutcome(name, err)
	}
	if err == nil {
		return writeJSON(cmd.OutOrStdout(), result)
	}

	toolErr := adapters.NewToolError(err)
	if werr := writeJSON(cmd.OutOrStdout(), map[string]interface{}{"error": toolErr}); werr != nil {
		return werr
	}

	var confirmErr *toolexecutor.ConfirmationRequiredError
	if errors.As(err, &confirmErr) {
		fmt.Fprintln(cmd.ErrOrStderr(), "Re-run with --confirmed to execute these arguments.")
	}
	return fmt.Errorf("tool %s failed: %s", name, toolErr.Code)
}

func newToolsSpecsCmd(opts *rootOptions) *cobra.Command {
	var provider string

	cmd := &cobra.Command{
		Use:   "specs",
		Short: "Print tool declarations for an LLM provider",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := newRuntime(cmd, opts)
			if err != nil {
				return err
			}
			defer rt.Close()
			if err := rt.registerTools(); err != nil {
				return err
			}

			switch strings.ToLower(provider) {
			case "openai":
				return writeJSON(cmd.OutOrStdout(), openaiadapter.ToolParams(rt.registry))
			case "anthropic":
				return writeJSON(cmd.OutOrStdout(), anthropicadapter.ToolParams(rt.registry))
			default:
				return fmt.Errorf("unknown provider %q (want openai or anthropic)", provider)
			}
		},
	}

	cmd.Flags().StringVar(&provider, "provider", "openai", "provider format: openai or anthropic")
	return cmd
}

func writeJSON(w io.Writer, v interface{}) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

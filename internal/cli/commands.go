// Package cli implements the voicedesk command line.
package cli

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	jsonitor "github.com/json-iterator/go"
	"github.com/spf13/cobra"
	"github.com/voicedesk/voicedesk/internal/common/logtrace"
	"github.com/voicedesk/voicedesk/internal/config"
	"github.com/voicedesk/voicedesk/internal/server"
)

var json = jsonitor.ConfigCompatibleWithStandardLibrary

var ErrAlreadyHandled = errors.New("already handled")

var okLabel = color.New(color.FgGreen)
var errorLabel = color.New(color.FgRed)
var keyLabel = color.New(color.FgCyan)

type rootOptions struct {
	configFile string
	envFiles   []string
	jsonOutput bool
}

// NewRootCmd builds the voicedesk command tree.
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}
	rootCmd := &cobra.Command{
		Use:   "voicedesk [command] [flags]",
		Short: "voicedesk - session bootstrap service for embeddable voice agents",
		Long: `voicedesk issues real-time media grants to authenticated end users of
embedded voice agents and keeps a record of every session.

Examples:
  # Run the API server
  voicedesk serve --config voicedesk.toml

  # Create or update agents from a YAML file
  voicedesk agent apply -f agents.yaml

  # End sessions that were never closed by their client
  voicedesk sweep`,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.load(cmd)
		},
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Help()
		},
	}
	rootCmd.PersistentFlags().StringVar(&opts.configFile, "config", "", "Path to a TOML configuration file")
	rootCmd.PersistentFlags().StringSliceVar(&opts.envFiles, "env-file", nil, "Env files to load before reading the environment (default .env)")
	rootCmd.PersistentFlags().BoolVarP(&opts.jsonOutput, "json", "j", false, "Output in JSON format")

	rootCmd.AddCommand(newVersionCmd(opts))
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newMigrateCmd(opts))
	rootCmd.AddCommand(newSweepCmd(opts))
	rootCmd.AddCommand(newAgentCmd(opts))
	rootCmd.AddCommand(newSessionCmd(opts))
	rootCmd.AddCommand(newGrantCmd(opts))
	return rootCmd
}

// load reads configuration for every command except version.
func (o *rootOptions) load(cmd *cobra.Command) error {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Name() == "version" {
			return nil
		}
	}
	if err := config.LoadDotEnv(o.envFiles...); err != nil {
		return err
	}
	if err := config.LoadConfig(o.configFile); err != nil {
		return err
	}
	logtrace.InitLogger(config.Config().Log.Level, config.Config().Log.Pretty)
	return nil
}

// Execute runs the command line and exits non-zero on failure.
func Execute() {
	rootCmd := NewRootCmd()
	if err := rootCmd.Execute(); err != nil {
		if errors.Is(err, ErrAlreadyHandled) {
			os.Exit(1)
		}
		if jsonFlag, _ := rootCmd.PersistentFlags().GetBool("json"); jsonFlag {
			printJSON(os.Stdout, map[string]string{"error": err.Error()})
		} else {
			errorLabel.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}

func newVersionCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version of voicedesk",
		Run: func(cmd *cobra.Command, args []string) {
			if opts.jsonOutput {
				printJSON(cmd.OutOrStdout(), &server.GetVersionRsp{
					ServerVersion: server.ServerVersion,
					ApiVersion:    server.ApiVersion,
				})
				return
			}
			fmt.Fprintf(cmd.OutOrStdout(), "voicedesk %s (api %s, config format %s)\n", server.ServerVersion, server.ApiVersion, config.Version)
		},
	}
}

func printJSON(w io.Writer, data any) {
	out, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return
	}
	fmt.Fprintln(w, string(out))
}

func printKV(w io.Writer, key string, value any) {
	keyLabel.Fprintf(w, "%s: ", key)
	fmt.Fprintf(w, "%v\n", value)
}

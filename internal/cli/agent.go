package cli

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/voicedesk/voicedesk/internal/agentdef"
)

func newAgentCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "agent",
		Short: "Manage agents",
	}
	cmd.AddCommand(newAgentApplyCmd(opts))
	cmd.AddCommand(newAgentListCmd(opts))
	cmd.AddCommand(newAgentExportCmd())
	return cmd
}

func newAgentApplyCmd(opts *rootOptions) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "apply -f FILE",
		Short: "Create or update agents from a YAML file",
		Long: `Create or update agents from a YAML file holding one or more documents.
Documents without an id create a new agent; the assigned id is printed.

Example:
  owner: 6f1f3c0e-user
  name: Front desk
  voice: nova
  language: en-US
  welcomeMessage: Hi! How can I help?
  icon:
    position: bottom-right
    color: "#6366f1"`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			defs, err := agentdef.LoadFile(file)
			if err != nil {
				return fmt.Errorf("%s", err.ErrorAll())
			}
			if len(defs) == 0 {
				return fmt.Errorf("no agent definitions in %s", file)
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
			defer cancel()
			store, oerr := openStore(ctx)
			if oerr != nil {
				return oerr
			}
			defer store.Close()

			agents, err := agentdef.Apply(ctx, store, defs)
			for _, a := range agents {
				if !opts.jsonOutput {
					okLabel.Fprintf(cmd.OutOrStdout(), "applied ")
					fmt.Fprintf(cmd.OutOrStdout(), "%s (%s)\n", a.Name, a.ID)
				}
			}
			if err != nil {
				return fmt.Errorf("%s", err.ErrorAll())
			}
			if opts.jsonOutput {
				printJSON(cmd.OutOrStdout(), defs)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "filename", "f", "", "YAML file with agent definitions")
	cmd.MarkFlagRequired("filename")
	return cmd
}

func newAgentListCmd(opts *rootOptions) *cobra.Command {
	var owner string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List agents",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
			defer cancel()
			store, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			agents, lerr := store.ListAgents(ctx, owner)
			if lerr != nil {
				return lerr
			}
			if opts.jsonOutput {
				defs := make([]*agentdef.Definition, 0, len(agents))
				for _, a := range agents {
					defs = append(defs, agentdef.FromModel(a))
				}
				printJSON(cmd.OutOrStdout(), defs)
				return nil
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tVOICE\tLANGUAGE\tOWNER")
			for _, a := range agents {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", a.ID, a.Name, a.Voice, a.Language, a.UserID)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVar(&owner, "owner", "", "Only list agents owned by this user")
	return cmd
}

func newAgentExportCmd() *cobra.Command {
	var owner string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Print agents as YAML that agent apply accepts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
			defer cancel()
			store, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			agents, lerr := store.ListAgents(ctx, owner)
			if lerr != nil {
				return lerr
			}
			defs := make([]*agentdef.Definition, 0, len(agents))
			for _, a := range agents {
				defs = append(defs, agentdef.FromModel(a))
			}
			out, merr := agentdef.Marshal(defs)
			if merr != nil {
				return merr
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}
	cmd.Flags().StringVar(&owner, "owner", "", "Only export agents owned by this user")
	return cmd
}

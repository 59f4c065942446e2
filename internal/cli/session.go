package cli

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/voicedesk/voicedesk/internal/common/uuid"
	"github.com/voicedesk/voicedesk/internal/db/models"
)

type sessionRow struct {
	SessionID string               `json:"sessionId"`
	AgentID   string               `json:"agentId"`
	RoomName  string               `json:"roomName"`
	EndUserID string               `json:"endUserId"`
	Status    models.SessionStatus `json:"status"`
	CreatedAt time.Time            `json:"createdAt"`
	EndedAt   *time.Time           `json:"endedAt,omitempty"`
}

func newSessionCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Inspect recorded sessions",
	}
	cmd.AddCommand(newSessionListCmd(opts))
	return cmd
}

func newSessionListCmd(opts *rootOptions) *cobra.Command {
	var agent string
	var limit int
	cmd := &cobra.Command{
		Use:   "list --agent AGENT_ID",
		Short: "List the most recent sessions of an agent",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			agentID, err := uuid.Parse(agent)
			if err != nil {
				return fmt.Errorf("invalid agent id %q", agent)
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
			defer cancel()
			store, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			sessions, lerr := store.ListSessionsByAgent(ctx, agentID, limit)
			if lerr != nil {
				return lerr
			}
			if opts.jsonOutput {
				rows := make([]sessionRow, 0, len(sessions))
				for _, s := range sessions {
					rows = append(rows, sessionRow{
						SessionID: s.ID.String(),
						AgentID:   s.AgentID.String(),
						RoomName:  s.RoomName,
						EndUserID: s.EndUserID,
						Status:    s.Status,
						CreatedAt: s.CreatedAt,
						EndedAt:   s.EndedAt,
					})
				}
				printJSON(cmd.OutOrStdout(), rows)
				return nil
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tSTATUS\tROOM\tUSER\tCREATED\tENDED")
			for _, s := range sessions {
				ended := "-"
				if s.EndedAt != nil {
					ended = s.EndedAt.Format(time.RFC3339)
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n", s.ID, s.Status, s.RoomName, s.EndUserID, s.CreatedAt.Format(time.RFC3339), ended)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVar(&agent, "agent", "", "Agent id")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of sessions to list (default 100)")
	cmd.MarkFlagRequired("agent")
	return cmd
}

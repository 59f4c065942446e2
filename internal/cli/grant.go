package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/voicedesk/voicedesk/internal/common/apperrors"
	"github.com/voicedesk/voicedesk/internal/config"
	"github.com/voicedesk/voicedesk/internal/grant"
)

func newGrantCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "grant",
		Short: "Work with media grants",
	}
	cmd.AddCommand(newGrantInspectCmd(opts))
	return cmd
}

func newGrantInspectCmd(opts *rootOptions) *cobra.Command {
	var verify bool
	cmd := &cobra.Command{
		Use:   "inspect TOKEN",
		Short: "Decode a grant and print its claims",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				claims *grant.Claims
				err    apperrors.Error
			)
			if verify {
				secret := config.Config().LiveKit.APISecret
				if secret == "" {
					return fmt.Errorf("livekit.api_secret is not configured; cannot verify")
				}
				claims, err = grant.Parse(args[0], secret)
			} else {
				claims, err = grant.ParseUnverified(args[0])
			}
			if err != nil {
				return err
			}

			if opts.jsonOutput {
				printJSON(cmd.OutOrStdout(), claims)
				return nil
			}
			w := cmd.OutOrStdout()
			printKV(w, "issuer", claims.Issuer)
			printKV(w, "identity", claims.Subject)
			printKV(w, "name", claims.Name)
			if claims.Video != nil {
				printKV(w, "room", claims.Video.Room)
				printKV(w, "roomJoin", claims.Video.RoomJoin)
				printKV(w, "canPublish", claims.Video.CanPublish)
				printKV(w, "canSubscribe", claims.Video.CanSubscribe)
			}
			if claims.ExpiresAt != nil {
				printKV(w, "expires", claims.ExpiresAt.Time.UTC().Format(time.RFC3339))
			}
			if verify {
				okLabel.Fprintln(w, "signature verified")
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&verify, "verify", false, "Verify the signature with livekit.api_secret")
	return cmd
}

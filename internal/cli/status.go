package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jnst/storefront-sync/internal/model"
)

// QueueStatus counts the records of one queue by status.
type QueueStatus struct {
	Subject string `json:"subject"`
	Pending int64  `json:"pending"`
	Sent    int64  `json:"sent"`
	Failed  int64  `json:"failed"`
}

// NewStatusCommand creates the status command.
func NewStatusCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the number of records per queue and status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(cmd.Context(), rootOpts, nil)
			if err != nil {
				return err
			}
			defer a.Close()

			var (
				result []QueueStatus
				text   strings.Builder
			)
			for _, subject := range model.Subjects {
				queue, err := a.Repos.Queue(subject)
				if err != nil {
					return err
				}

				qs := QueueStatus{Subject: subject.String()}
				for status, dst := range map[model.Status]*int64{
					model.StatusPending: &qs.Pending,
					model.StatusSent:    &qs.Sent,
					model.StatusFailed:  &qs.Failed,
				} {
					n, err := queue.CountByStatus(cmd.Context(), status)
					if err != nil {
						return WrapExitError(ExitFailure, "failed to count records", err)
					}
					*dst = n
				}

				result = append(result, qs)
				fmt.Fprintf(&text, "%-6s pending=%d sent=%d failed=%d\n", qs.Subject, qs.Pending, qs.Sent, qs.Failed)
			}

			return formatter(rootOpts, cmd).Success(result, strings.TrimSuffix(text.String(), "\n"))
		},
	}
}

package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jnst/storefront-sync/internal/model"
	"github.com/jnst/storefront-sync/internal/service"
)

// RetrySummary is the result of a retry-failed run.
type RetrySummary struct {
	Subject  string `json:"subject"`
	Requeued int64  `json:"requeued"`
}

// NewRetryFailedCommand creates the retry-failed command.
func NewRetryFailedCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "retry-failed <orders|users>",
		Short: "Move failed sync records back to pending",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			subject, err := model.ParseSubject(args[0])
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid subject", err)
			}

			a, err := openApp(cmd.Context(), rootOpts, nil)
			if err != nil {
				return err
			}
			defer a.Close()

			// Requeueing never publishes, so the relay service runs without a broker here.
			outbox := service.NewOutboxServiceImpl(nil, a.Repos.OrderQueue, a.Repos.UserQueue)

			n, err := outbox.RetryFailed(cmd.Context(), subject)
			if err != nil {
				return WrapExitError(ExitFailure, "retry failed", err)
			}

			return formatter(rootOpts, cmd).Success(
				RetrySummary{Subject: subject.String(), Requeued: n},
				fmt.Sprintf("requeued %d failed %s record(s)", n, subject),
			)
		},
	}
}

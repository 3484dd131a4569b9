package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"blast-job-service/internal/entity"
)

var ErrPollTimeout = errors.New("result not available before poll timeout")

var pollWait bool

var pollCmd = &cobra.Command{
	Use:   "poll <token>",
	Short: "Print a job's result, or its state if not finished",
	Long: `Print a job's result once it exists.

Without --wait a pending job prints "pending" and exits 0. With --wait,
blastctl polls every POLL_INTERVAL until the job finishes or POLL_TIMEOUT
(0 means no limit) elapses.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return printResult(cmd, args[0], pollWait)
	},
}

func init() {
	pollCmd.Flags().BoolVarP(&pollWait, "wait", "w", false, "wait until the job finishes")
}

// Poller is the read side of the service used by the polling loop.
type Poller interface {
	Poll(ctx context.Context, token string) (entity.PollResult, error)
}

// WaitResult polls token every interval until it is no longer pending.
// timeout <= 0 waits until ctx is done.
func WaitResult(ctx context.Context, p Poller, token string, interval, timeout time.Duration) (entity.PollResult, error) {
	if interval <= 0 {
		interval = time.Second
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		res, err := p.Poll(ctx, token)
		if err != nil || res.Status != entity.PollPending {
			return res, err
		}
		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return res, ErrPollTimeout
			}
			return res, ctx.Err()
		case <-ticker.C:
		}
	}
}

func printResult(cmd *cobra.Command, token string, wait bool) error {
	var (
		res entity.PollResult
		err error
	)
	if wait {
		res, err = WaitResult(cmd.Context(), svc.Service, token, cfg.PollInterval, cfg.PollTimeout)
	} else {
		res, err = svc.Service.Poll(cmd.Context(), token)
	}
	if err != nil {
		return fmt.Errorf("poll %s: %w", token, err)
	}

	switch res.Status {
	case entity.PollComplete:
		_, err := cmd.OutOrStdout().Write(res.Content)
		return err
	case entity.PollPending:
		fmt.Fprintln(cmd.OutOrStdout(), entity.PollPending)
		return nil
	case entity.PollFailed:
		return fmt.Errorf("job %s failed: %s", token, res.Diagnostic)
	default:
		return fmt.Errorf("job %s not found", token)
	}
}

package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/hibiken/asynq"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/dfashion/dfashion-api/jobs"
)

// JobsCLI wraps manual management helpers for the audit queues.
type JobsCLI struct {
	client    *asynq.Client
	inspector *asynq.Inspector
}

// NewJobsCLI initialises the helpers against the given Redis address.
func NewJobsCLI(redisAddr string) *JobsCLI {
	opts := asynq.RedisClientOpt{Addr: redisAddr}
	return &JobsCLI{client: asynq.NewClient(opts), inspector: asynq.NewInspector(opts)}
}

// Close releases underlying resources.
func (c *JobsCLI) Close() error {
	var err error
	if c.inspector != nil {
		err = errors.Join(err, c.inspector.Close())
	}
	if c.client != nil {
		err = errors.Join(err, c.client.Close())
	}
	return err
}

// TriggerPurge enqueues an immediate retention sweep.
func (c *JobsCLI) TriggerPurge(ctx context.Context, retentionDays int) (*asynq.TaskInfo, error) {
	if c == nil || c.client == nil {
		return nil, errors.New("jobs cli: client not configured")
	}
	if retentionDays <= 0 {
		return nil, fmt.Errorf("jobs cli: retention must be positive, got %d", retentionDays)
	}
	task, err := jobs.NewAuditPurgeTask(retentionDays)
	if err != nil {
		return nil, err
	}
	return c.client.EnqueueContext(ctx, task, asynq.MaxRetry(3))
}

// QueueStats summarises one queue.
type QueueStats struct {
	Queue     string
	Pending   int
	Active    int
	Scheduled int
	Retry     int
	Archived  int
}

// InspectQueues reports the audit and default queues. Queues that were
// never written to report zeros.
func (c *JobsCLI) InspectQueues(ctx context.Context) ([]QueueStats, error) {
	if c == nil || c.inspector == nil {
		return nil, errors.New("jobs cli: inspector not configured")
	}
	out := make([]QueueStats, 0, 2)
	for _, queue := range []string{jobs.QueueAudit, jobs.QueueDefault} {
		info, err := c.inspector.GetQueueInfo(queue)
		if errors.Is(err, asynq.ErrQueueNotFound) {
			out = append(out, QueueStats{Queue: queue})
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, QueueStats{
			Queue:     queue,
			Pending:   info.Pending,
			Active:    info.Active,
			Scheduled: info.Scheduled,
			Retry:     info.Retry,
			Archived:  info.Archived,
		})
	}
	return out, nil
}

func renderQueueStats(stats []QueueStats) string {
	t := table.NewWriter()
	t.AppendHeader(table.Row{"Queue", "Pending", "Active", "Scheduled", "Retry", "Archived"})
	for _, s := range stats {
		t.AppendRow(table.Row{s.Queue, s.Pending, s.Active, s.Scheduled, s.Retry, s.Archived})
	}
	return t.Render()
}

func buildJobsCommand() *cobra.Command {
	redisAddr := os.Getenv("REDIS_ADDR")
	if redisAddr == "" {
		redisAddr = "127.0.0.1:6379"
	}
	jobsCommand := &cobra.Command{
		Use:   "jobs",
		Short: "Inspect and trigger audit jobs",
	}
	jobsCommand.PersistentFlags().StringVar(&redisAddr, "redis", redisAddr, "Redis address (defaults to $REDIS_ADDR)")

	stats := &cobra.Command{
		Use:  "stats",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c := NewJobsCLI(redisAddr)
			defer c.Close()
			result, err := c.InspectQueues(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderQueueStats(result))
			return nil
		},
	}

	var days int
	purge := &cobra.Command{
		Use:     "purge",
		Example: "dfashionctl jobs purge --days 180",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c := NewJobsCLI(redisAddr)
			defer c.Close()
			info, err := c.TriggerPurge(cmd.Context(), days)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "enqueued %s on %s (id %s)\n", info.Type, info.Queue, info.ID)
			return nil
		},
	}
	purge.Flags().IntVar(&days, "days", 365, "Delete audit records older than this many days")

	jobsCommand.AddCommand(stats, purge)
	return jobsCommand
}

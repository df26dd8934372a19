package cli

import (
	"context"
	"errors"
	"time"

	"github.com/spf13/cobra"

	"github.com/shaiso/Nodeflow/internal/mq"
)

// NewEventsCmd создаёт команду, печатающую события выполнения из RabbitMQ.
func NewEventsCmd(d Deps) *cobra.Command {
	var patterns []string
	var queue string

	cmd := &cobra.Command{
		Use:   "events",
		Short: "Stream execution events published by the server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := d.Config()
			if err != nil {
				return err
			}
			out := d.Output()
			logger := cliLogger(cfg)

			conn, err := mq.Dial(cmd.Context(), cfg.MQConnection(logger))
			if err != nil {
				return err
			}
			defer conn.Close()

			consumer := mq.NewConsumer(conn, logger, mq.ConsumerConfig{
				Queue:    queue,
				Patterns: patterns,
				Handler: func(_ context.Context, msg *mq.Delivery) error {
					printEvent(out, msg.Message)
					return nil
				},
				Prefetch: 32,
			})

			err = consumer.Start(cmd.Context())
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}

	cmd.Flags().StringSliceVar(&patterns, "pattern", []string{mq.BindAll},
		"Routing key patterns, e.g. workflow.* or node.executionFailed (repeatable)")
	cmd.Flags().StringVar(&queue, "queue", "", "Durable queue name (default: exclusive temporary queue)")

	return cmd
}

func printEvent(out *Output, msg mq.Message) {
	if out.jsonMode {
		out.JSON(msg)
		return
	}

	e := msg.Payload
	line := e.Timestamp.Format(time.RFC3339Nano) + "  " + string(e.Type) + "  " + e.ExecutionID
	if e.NodeID != "" {
		line += "  node=" + e.NodeID + " type=" + e.NodeType
	}
	if e.FromCache {
		line += " cached"
	}
	if e.Duration > 0 {
		line += " duration=" + e.Duration.String()
	}
	if e.Error != "" {
		line += " error=" + e.Error
	}
	out.Line("%s", line)
}

package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/dyluth/lair/internal/printer"
	"github.com/dyluth/lair/pkg/devicebus"
	"github.com/spf13/cobra"
)

var sendTopic string

var sendCmd = &cobra.Command{
	Use:   "send <payload>",
	Short: "Publish a device event on the bus",
	Long: `Publish a raw device event on the inbound topic, exactly as puzzle
hardware would. Useful for rehearsing a puzzle without the room.

Examples:
  # Box 0 of puzzle 7 receives code 0424
  lair send P7,0,0424

  # Player 3 reports a time of 1.5 seconds in puzzle 5
  lair send "P5,3,1.5"`,
	Args: cobra.ExactArgs(1),
	RunE: runSend,
}

func init() {
	sendCmd.Flags().StringVar(&sendTopic, "topic", devicebus.DefaultInboundTopic, "Inbound device topic")
	rootCmd.AddCommand(sendCmd)
}

func runSend(cmd *cobra.Command, args []string) error {
	payload := args[0]
	if _, err := devicebus.ParseDeviceEvent(payload); err != nil {
		return printer.Error(
			"malformed device event",
			err.Error(),
			[]string{"Device events look like P<id>,<arg>,...:\n  lair send P7,0,0424"},
		)
	}

	client, err := busClient(devicebus.Topics{Inbound: sendTopic})
	if err != nil {
		return err
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.PublishDeviceEvent(ctx, payload); err != nil {
		return printer.ErrorWithContext(
			"Redis publish failed",
			err.Error(),
			map[string]string{"Redis": redisURL, "Topic": sendTopic},
			[]string{fmt.Sprintf("Check that Redis is reachable at %s", redisURL)},
		)
	}
	printer.Success("Sent %s on %s\n", payload, sendTopic)
	return nil
}

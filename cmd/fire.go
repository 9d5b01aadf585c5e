package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/clusterrpc/clusterrpc/serializer"
)

var fireCmd = &cobra.Command{
	Use:   "fire [payload]",
	Short: "send a fire-and-forget message with no response expected",
	Args:  cobra.ExactArgs(1),
	RunE:  runFire,
}

func runFire(cmd *cobra.Command, args []string) error {
	client, err := newClient()
	if err != nil {
		return err
	}
	defer client.Shutdown()

	msg := serializer.Message{Codec: serializer.NewRawCodec(), Value: []byte(args[0])}
	if err := client.SendMessage(msg, 0, 0); err != nil {
		return err
	}

	// Give the async dial/write a moment to actually reach the wire
	// before Shutdown tears the pool down - fire-and-forget has no
	// completion signal to wait on otherwise.
	time.Sleep(200 * time.Millisecond)

	fmt.Println("fired")
	return nil
}

package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/clusterrpc/clusterrpc/serializer"
)

var sendCmd = &cobra.Command{
	Use:   "send [payload]",
	Short: "send a unary request and print the response",
	Args:  cobra.ExactArgs(1),
	RunE:  runSend,
}

func init() {
	sendCmd.Flags().Duration("wait", 5*time.Second, "how long to wait for a response before giving up")
}

func runSend(cmd *cobra.Command, args []string) error {
	client, err := newClient()
	if err != nil {
		return err
	}
	defer client.Shutdown()

	wait, _ := cmd.Flags().GetDuration("wait")
	maxRetry := viper.GetInt("max-retry")

	msg := serializer.Message{Codec: serializer.NewRawCodec(), Value: []byte(args[0])}

	done := make(chan struct{}, 1)
	var resp []byte
	var sendErr error

	client.SendRequest(msg, 0, 0, maxRetry, func(r []byte, err error) {
		resp, sendErr = r, err
		done <- struct{}{}
	})

	select {
	case <-done:
	case <-time.After(wait):
		return fmt.Errorf("timed out after %s waiting for a response", wait)
	}

	if sendErr != nil {
		return sendErr
	}
	fmt.Printf("response: %s\n", resp)
	return nil
}

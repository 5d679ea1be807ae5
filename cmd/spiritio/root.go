package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/saker-ai/spiritio-client/pkg/runtime"
)

// newRootCmd creates the spiritio command, which joins a room and opens the chat prompt.
func newRootCmd() *cobra.Command {
	var (
		configPath string
		overrides  runtime.Overrides
	)

	cmd := &cobra.Command{
		Use:           "spiritio",
		Short:         "Terminal client for spiritio video chat rooms",
		Long:          "spiritio joins a chat room over websocket signaling, streams local\nmedia over WebRTC and runs a line-based chat prompt.",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			client, err := runtime.New(configPath, overrides, runtime.IO{})
			if err != nil {
				return err
			}
			return client.Run(ctx)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&configPath, "config", "c", "", "path to conf.yaml")
	flags.StringVar(&overrides.PageURL, "page-url", "", "page address of the chat server, e.g. https://host/?room=7")
	flags.StringVar(&overrides.Room, "room", "", "room id to join")
	flags.StringVar(&overrides.StatusAddr, "status-addr", "", "serve the local status API on this address")

	return cmd
}

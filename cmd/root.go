package cmd

import (
	"github.com/carousell/ct-go/pkg/logger/log"
	"github.com/spf13/cobra"

	"github.com/SnippyKid/OmegaChat-sub000/internal/app"
	"github.com/SnippyKid/OmegaChat-sub000/internal/server"
)

var rootCmd = &cobra.Command{
	Use:           "omegachat",
	SilenceUsage:  true,
	SilenceErrors: true,
	Run: func(cmd *cobra.Command, args []string) {
		app.Invoke(
			server.StartServer,
		).Run()
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}

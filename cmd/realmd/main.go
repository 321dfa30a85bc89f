package main

import (
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:          "realmd",
	Short:        "Peronio realm server and socket tools",
	SilenceUsage: true,
}

func init() {
	rootCmd.AddCommand(serveCmd, probeCmd, sessionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatal().Err(err).Msg("execute realmd command")
	}
}

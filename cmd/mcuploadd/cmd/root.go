/*
Copyright © 2024 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"os"

	"github.com/apex/log"
	"github.com/materials-commons/mcupload/pkg/clog"
	"github.com/materials-commons/mcupload/pkg/config"
	"github.com/spf13/cobra"
)

var (
	cfgFile string
	cfg     config.Configer
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "mcuploadd",
	Short: "Resumable chunked upload server",
	Long: `mcuploadd accepts files uploaded in byte range chunks, keeps track of
how far each upload has gotten and removes uploads that have expired.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		var err error
		if cfg, err = config.Setup(cfgFile); err != nil {
			log.Fatalf("Failed loading configuration: %s", err)
		}

		if _, err := clog.Setup(os.Stderr, cfg.GetKey(config.KeyLogLevel)); err != nil {
			log.Fatalf("Bad log level: %s", err)
		}
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.mcuploadd.yaml)")
}

/*
Copyright © 2024 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/apex/log"
	"github.com/materials-commons/mcupload/pkg/chunked"
	"github.com/materials-commons/mcupload/pkg/mcdb"
	"github.com/materials-commons/mcupload/pkg/mcdb/stor"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var interactive bool

var reapCmd = &cobra.Command{
	Use:   "reap",
	Short: "Delete uploads that have expired",
	Long: `Deletes every upload, complete or not, that was created longer ago than
the configured expiration, along with its stored data.`,
	Run: func(cmd *cobra.Command, args []string) {
		db := mcdb.MustConnectToDB(cfg)
		stors := stor.NewGormStors(db)
		s, closeSink := mustSetupSink(cfg)
		defer closeSink()

		if interactive && !term.IsTerminal(int(os.Stdin.Fd())) {
			log.Warnf("stdin is not a terminal, answers will be read from it a line at a time")
		}

		uploadCfg := chunked.LoadConfig(cfg)
		reaper := chunked.NewReaper(stors.ChunkedUploadStor, s, chunked.NewLinePrompter(os.Stdin, os.Stdout))

		summary, err := reaper.Sweep(context.Background(), chunked.SweepOptions{
			Now:             time.Now(),
			ExpirationDelta: uploadCfg.ExpirationDelta,
			Interactive:     interactive,
		})

		if summary != nil {
			for _, line := range summary.Lines() {
				fmt.Println(line)
			}
		}

		if err != nil {
			log.Fatalf("Reaping expired uploads failed: %s", err)
		}
	},
}

func init() {
	rootCmd.AddCommand(reapCmd)
	reapCmd.Flags().BoolVarP(&interactive, "interactive", "i", false, "ask before deleting each upload")
}

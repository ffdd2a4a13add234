/*
Copyright © 2024 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"fmt"

	"github.com/apex/log"
	"github.com/materials-commons/mcupload/pkg/uploadclient"
	"github.com/spf13/cobra"
)

var (
	uploadURL       string
	uploadAPIKey    string
	uploadChunkSize int64
	resumeUploadID  string
)

var uploadCmd = &cobra.Command{
	Use:   "upload <file>",
	Short: "Upload a file to an mcuploadd server",
	Long: `Sends the file in chunks and marks the upload complete. Pass --upload-id
to resume an upload that was interrupted.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		client := uploadclient.NewClient(uploadURL, uploadAPIKey)
		client.ChunkSize = uploadChunkSize

		uploadID, err := client.UploadFile(context.Background(), args[0], resumeUploadID)
		if err != nil {
			if uploadID != "" {
				log.Errorf("Upload of %s can be resumed with --upload-id %s", args[0], uploadID)
			}
			log.Fatalf("Upload failed: %s", err)
		}

		fmt.Println(uploadID)
	},
}

func init() {
	rootCmd.AddCommand(uploadCmd)
	uploadCmd.Flags().StringVar(&uploadURL, "url", "http://localhost:1354", "mcuploadd server url")
	uploadCmd.Flags().StringVar(&uploadAPIKey, "apikey", "", "api key to authenticate with")
	uploadCmd.Flags().Int64Var(&uploadChunkSize, "chunk-size", uploadclient.DefaultChunkSize, "bytes sent per request")
	uploadCmd.Flags().StringVar(&resumeUploadID, "upload-id", "", "resume this upload")
}

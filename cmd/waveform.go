package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"clipsync/config"
	"clipsync/core/waveform"

	"github.com/spf13/cobra"
)

var waveformCmd = &cobra.Command{
	Use:   "waveform <file>",
	Short: "Extract a waveform summary from a media file",
	Long:  `Decodes the given media file with ffmpeg and prints its amplitude summary as JSON.`,
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cfg := config.Load()

		media, err := os.ReadFile(args[0])
		if err != nil {
			log.Fatalf("failed to read %s: %v", args[0], err)
		}

		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()

		extractor := waveform.NewExtractor(cfg.FFmpegPath)
		amplitudes := extractor.Extract(ctx, media)

		out, err := json.Marshal(amplitudes)
		if err != nil {
			log.Fatalf("failed to encode summary: %v", err)
		}
		fmt.Println(string(out))
	},
}

func init() {
	rootCmd.AddCommand(waveformCmd)
}

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/polzovatel/autoanswer/internal/media"
)

func newTranscribeCmd(a *app) *cobra.Command {
	var video bool
	cmd := &cobra.Command{
		Use:   "transcribe <url>",
		Short: "Print the transcript of one audio or video URL",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := media.Open(cmd.Context(), a.cfg.Transcription, a.cfg.Media, a.component("media"))
			if err != nil {
				return err
			}
			defer svc.Close()

			kind := media.Audio
			if video {
				kind = media.Video
			}
			text, err := svc.Transcribe(cmd.Context(), args[0], kind)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), text)
			return nil
		},
	}
	cmd.Flags().BoolVar(&video, "video", false, "treat the URL as video and extract its audio track")
	return cmd
}

package main

import (
	"errors"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dvloznov/perla/internal/gcsuploader"
)

var transcribeCmd = &cobra.Command{
	Use:   "transcribe <file|gs://bucket/object>",
	Short: "Transcribe a voice note",
	Long: `Transcribes a recorded voice note. With --submit the text is sent to
the assistant as if it had been typed.`,
	Args: cobra.ExactArgs(1),
	RunE: runTranscribe,
}

func init() {
	transcribeCmd.Flags().Bool("submit", false, "send the transcript to the assistant")
	rootCmd.AddCommand(transcribeCmd)
}

func runTranscribe(cmd *cobra.Command, args []string) error {
	submit, _ := cmd.Flags().GetBool("submit")
	ctx := cmd.Context()

	a, stop, err := startApp(ctx)
	if err != nil {
		return err
	}
	defer stop()

	if a.Transcriber == nil {
		return errors.New("transcription is not configured: set audio.api_key_env")
	}

	source := args[0]
	var (
		audio    []byte
		filename string
	)
	if strings.HasPrefix(source, "gs://") {
		audio, err = gcsuploader.NewGCSStorageService().FetchFromGCS(ctx, source)
		filename = gcsuploader.ExtractFilenameFromGCSURI(source)
	} else {
		audio, err = os.ReadFile(source)
		filename = filepath.Base(source)
	}
	if err != nil {
		return fmt.Errorf("reading %s: %w", source, err)
	}

	res, err := a.Transcriber.Transcribe(ctx, a.Config.OwnerID, filename, mime.TypeByExtension(filepath.Ext(filename)), audio)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, res.Text)
	if res.ArchiveURI != "" && verbose {
		fmt.Fprintf(out, "Archivado en %s\n", res.ArchiveURI)
	}
	if !submit {
		return nil
	}

	session, err := a.Sessions.Get(ctx, a.Config.OwnerID)
	if err != nil {
		return err
	}
	outcome, err := session.Submit(ctx, res.Text)
	if err != nil {
		return err
	}
	printOutcome(out, outcome)
	return nil
}

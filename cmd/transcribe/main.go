package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"tubeqa/internal/config"
	"tubeqa/internal/logging"
	"tubeqa/internal/transcript"
	"tubeqa/internal/youtube"
)

// transcribe resolves one video's transcript through the full fallback
// chain and prints it to stdout.
func main() {
	godotenv.Load()
	logging.InitFromEnv()

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: %s <youtube-url-or-id>\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}

	arg := flag.Arg(0)
	videoID, err := youtube.ExtractVideoID(arg)
	if err != nil {
		logging.Fatalf("[transcribe] not a YouTube URL or video ID: %s", arg)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := config.Load()

	service, err := newTranscriptService(cfg)
	if err != nil {
		logging.Fatalf("[transcribe] transcript service: %v", err)
	}

	result, err := service.Get(ctx, videoID)
	if err != nil {
		logging.Fatalf("[transcribe] video=%s: %v", videoID, err)
	}

	logging.Infof("[transcribe] video=%s source=%s title=%q", videoID, result.Source, result.Title)
	fmt.Println(result.Text)
}

func newTranscriptService(cfg *config.Config) (*transcript.Service, error) {
	var recognizers []transcript.Recognizer
	if cfg.GroqAPIKey != "" {
		whisper, err := transcript.NewWhisper(transcript.WhisperConfig{
			APIKey: cfg.GroqAPIKey,
			Model:  cfg.WhisperModel,
		})
		if err != nil {
			return nil, err
		}
		recognizers = append(recognizers, whisper)
	}
	if cfg.GoogleBucket != "" {
		gstt, err := transcript.NewGoogleSTT(transcript.GoogleSTTConfig{
			Bucket:          cfg.GoogleBucket,
			LanguageCode:    cfg.GoogleLanguage,
			CredentialsFile: cfg.GoogleCreds,
		})
		if err != nil {
			return nil, err
		}
		recognizers = append(recognizers, gstt)
	}

	var downloader transcript.AudioDownloader
	if len(recognizers) > 0 {
		downloader = transcript.NewDownloader("", 0, 0)
	}

	return transcript.NewService(transcript.Config{
		Captions:    youtube.NewClient(""),
		Downloader:  downloader,
		Recognizers: recognizers,
		Languages:   cfg.CaptionLanguages,
	})
}

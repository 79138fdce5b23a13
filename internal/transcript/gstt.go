package transcript

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	speech "cloud.google.com/go/speech/apiv1"
	"cloud.google.com/go/speech/apiv1/speechpb"
	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"tubeqa/internal/logging"
)

// GoogleSTT transcribes audio with the Google Cloud Speech-to-Text API.
// The wav is staged in a GCS bucket because LongRunningRecognize only
// accepts gs:// URIs for long audio.
type GoogleSTT struct {
	bucket   string
	langCode string
	opts     []option.ClientOption
}

// GoogleSTTConfig controls the Google recognizer.
type GoogleSTTConfig struct {
	Bucket          string
	LanguageCode    string
	CredentialsFile string
}

func NewGoogleSTT(cfg GoogleSTTConfig) (*GoogleSTT, error) {
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, fmt.Errorf("google_stt: GCS bucket is required")
	}
	lang := cfg.LanguageCode
	if lang == "" {
		lang = "en-US"
	}
	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	return &GoogleSTT{bucket: cfg.Bucket, langCode: lang, opts: opts}, nil
}

func (g *GoogleSTT) Name() string { return SourceGoogleSTT }

func (g *GoogleSTT) Transcribe(ctx context.Context, audioPath string) (string, error) {
	objectName := fmt.Sprintf("tubeqa/%d-%s", time.Now().UnixNano(), filepath.Base(audioPath))

	if err := g.upload(ctx, audioPath, objectName); err != nil {
		return "", err
	}
	defer g.remove(objectName)

	return g.recognize(ctx, objectName)
}

func (g *GoogleSTT) upload(ctx context.Context, audioPath, objectName string) error {
	client, err := storage.NewClient(ctx, g.opts...)
	if err != nil {
		return fmt.Errorf("google_stt: storage client: %w", err)
	}
	defer client.Close()

	data, err := os.ReadFile(audioPath)
	if err != nil {
		return fmt.Errorf("google_stt: read audio: %w", err)
	}

	wc := client.Bucket(g.bucket).Object(objectName).NewWriter(ctx)
	if _, err := wc.Write(data); err != nil {
		wc.Close()
		return fmt.Errorf("google_stt: upload: %w", err)
	}
	if err := wc.Close(); err != nil {
		return fmt.Errorf("google_stt: finish upload: %w", err)
	}
	return nil
}

func (g *GoogleSTT) recognize(ctx context.Context, objectName string) (string, error) {
	client, err := speech.NewClient(ctx, g.opts...)
	if err != nil {
		return "", fmt.Errorf("google_stt: speech client: %w", err)
	}
	defer client.Close()

	op, err := client.LongRunningRecognize(ctx, &speechpb.LongRunningRecognizeRequest{
		Config: &speechpb.RecognitionConfig{
			Encoding:        speechpb.RecognitionConfig_LINEAR16,
			LanguageCode:    g.langCode,
			SampleRateHertz: 16000,
		},
		Audio: &speechpb.RecognitionAudio{
			AudioSource: &speechpb.RecognitionAudio_Uri{
				Uri: fmt.Sprintf("gs://%s/%s", g.bucket, objectName),
			},
		},
	})
	if err != nil {
		return "", fmt.Errorf("google_stt: recognize: %w", err)
	}

	resp, err := op.Wait(ctx)
	if err != nil {
		return "", fmt.Errorf("google_stt: wait: %w", err)
	}

	var b strings.Builder
	for _, result := range resp.GetResults() {
		for _, alt := range result.GetAlternatives() {
			if b.Len() > 0 {
				b.WriteString(" ")
			}
			b.WriteString(alt.GetTranscript())
		}
	}
	return strings.TrimSpace(b.String()), nil
}

// remove deletes the staged object; failures only get logged.
func (g *GoogleSTT) remove(objectName string) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	client, err := storage.NewClient(ctx, g.opts...)
	if err != nil {
		logging.Errorf("[google_stt] cleanup client: %v", err)
		return
	}
	defer client.Close()

	if err := client.Bucket(g.bucket).Object(objectName).Delete(ctx); err != nil {
		logging.Errorf("[google_stt] delete %s: %v", objectName, err)
	}
}

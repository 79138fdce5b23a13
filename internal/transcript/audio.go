package transcript

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	ytdl "github.com/kkdai/youtube/v2"

	"tubeqa/internal/logging"
	"tubeqa/internal/youtube"
)

const (
	// MaxVideoDuration caps the audio fallback; longer videos are rejected.
	MaxVideoDuration = 2 * time.Hour
	// MaxAudioBytes caps the estimated download size.
	MaxAudioBytes = 1 << 30 // 1 GiB
)

var (
	// ErrVideoTooLong indicates the video exceeds MaxVideoDuration.
	ErrVideoTooLong = fmt.Errorf("transcript: video too long for audio fallback")
	// ErrAudioTooLarge indicates the estimated audio exceeds MaxAudioBytes.
	ErrAudioTooLarge = fmt.Errorf("transcript: audio too large for audio fallback")
)

// Downloader pulls the smallest audio-only stream and re-encodes it into
// 16 kHz mono wav for the speech recognizers.
type Downloader struct {
	client      *ytdl.Client
	ffmpegPath  string
	maxDuration time.Duration
	maxBytes    int64
}

// NewDownloader builds an audio downloader. Zero limits select the defaults.
func NewDownloader(ffmpegPath string, maxDuration time.Duration, maxBytes int64) *Downloader {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if maxDuration <= 0 {
		maxDuration = MaxVideoDuration
	}
	if maxBytes <= 0 {
		maxBytes = MaxAudioBytes
	}
	return &Downloader{
		client:      &ytdl.Client{},
		ffmpegPath:  ffmpegPath,
		maxDuration: maxDuration,
		maxBytes:    maxBytes,
	}
}

// Download fetches the audio and returns the wav path plus a cleanup func.
func (d *Downloader) Download(ctx context.Context, videoID string) (string, func(), error) {
	noop := func() {}

	video, err := d.client.GetVideoContext(ctx, youtube.WatchURL(videoID))
	if err != nil {
		return "", noop, fmt.Errorf("get video: %w", err)
	}
	if video.Duration > d.maxDuration {
		return "", noop, fmt.Errorf("%w: %s > %s", ErrVideoTooLong, video.Duration, d.maxDuration)
	}

	format, err := pickAudioFormat(video)
	if err != nil {
		return "", noop, err
	}
	if estimated := estimateSize(format, video.Duration); estimated > d.maxBytes {
		return "", noop, fmt.Errorf("%w: ~%d bytes > %d", ErrAudioTooLarge, estimated, d.maxBytes)
	}

	tmpDir, err := os.MkdirTemp("", "tubeqa-audio-")
	if err != nil {
		return "", noop, err
	}
	cleanup := func() { os.RemoveAll(tmpDir) }

	rawPath := filepath.Join(tmpDir, "audio.mp4")
	if err := d.saveStream(ctx, video, format, rawPath); err != nil {
		cleanup()
		return "", noop, err
	}

	wavPath := filepath.Join(tmpDir, "audio.wav")
	cmd := exec.CommandContext(ctx, d.ffmpegPath,
		"-i", rawPath, "-vn", "-acodec", "pcm_s16le", "-ar", "16000", "-ac", "1", wavPath)
	if out, err := cmd.CombinedOutput(); err != nil {
		cleanup()
		return "", noop, fmt.Errorf("ffmpeg: %w: %s", err, string(out))
	}

	logging.Debugf("[transcript] video=%s audio ready (%s, itag=%d)", videoID, wavPath, format.ItagNo)
	return wavPath, cleanup, nil
}

// pickAudioFormat selects the lowest-bitrate audio-only stream.
func pickAudioFormat(video *ytdl.Video) (*ytdl.Format, error) {
	formats := video.Formats.Type("audio")
	if len(formats) == 0 {
		return nil, fmt.Errorf("no audio-only stream available")
	}
	best := &formats[0]
	for i := range formats {
		if formats[i].Bitrate > 0 && (best.Bitrate == 0 || formats[i].Bitrate < best.Bitrate) {
			best = &formats[i]
		}
	}
	return best, nil
}

func estimateSize(format *ytdl.Format, duration time.Duration) int64 {
	if format.ContentLength > 0 {
		return format.ContentLength
	}
	// bitrate is bits per second
	return int64(float64(format.Bitrate) / 8 * duration.Seconds())
}

func (d *Downloader) saveStream(ctx context.Context, video *ytdl.Video, format *ytdl.Format, path string) error {
	stream, _, err := d.client.GetStreamContext(ctx, video, format)
	if err != nil {
		return fmt.Errorf("get stream: %w", err)
	}
	defer stream.Close()

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	if _, err := io.Copy(file, stream); err != nil {
		return fmt.Errorf("save stream: %w", err)
	}
	info, err := file.Stat()
	if err == nil && info.Size() == 0 {
		return fmt.Errorf("downloaded audio is empty")
	}
	return nil
}

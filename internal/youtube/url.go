package youtube

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// ErrInvalidURL indicates the input does not carry a recognizable video ID.
var ErrInvalidURL = fmt.Errorf("youtube: no video id found in url")

var (
	videoIDRe  = regexp.MustCompile(`^[A-Za-z0-9_-]{11}$`)
	embeddedRe = regexp.MustCompile(`(?:v=|/videos/|embed/|youtu\.be/|/v/|watch\?v=|\.be/)([A-Za-z0-9_-]{11})`)
)

// pathPrefixes are URL path shapes that carry the video ID as the next segment.
var pathPrefixes = []string{
	"youtu.be/",
	"youtube.com/embed/",
	"youtube.com/v/",
	"youtube.com/shorts/",
	"youtube.com/live/",
}

// ExtractVideoID pulls the 11-character video ID out of any common YouTube
// URL shape. A bare video ID is returned unchanged.
func ExtractVideoID(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", ErrInvalidURL
	}
	if videoIDRe.MatchString(raw) {
		return raw, nil
	}

	if strings.Contains(raw, "youtube.com/watch") {
		if u, err := url.Parse(raw); err == nil {
			if id := u.Query().Get("v"); videoIDRe.MatchString(id) {
				return id, nil
			}
		}
	}

	for _, prefix := range pathPrefixes {
		idx := strings.Index(raw, prefix)
		if idx < 0 {
			continue
		}
		rest := raw[idx+len(prefix):]
		if end := strings.IndexAny(rest, "?&/#"); end >= 0 {
			rest = rest[:end]
		}
		if videoIDRe.MatchString(rest) {
			return rest, nil
		}
	}

	if m := embeddedRe.FindStringSubmatch(raw); m != nil {
		return m[1], nil
	}
	return "", ErrInvalidURL
}

// WatchURL returns the canonical watch URL for a video ID.
func WatchURL(videoID string) string {
	return "https://www.youtube.com/watch?v=" + videoID
}

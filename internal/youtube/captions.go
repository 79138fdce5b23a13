package youtube

import (
	"bytes"
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"html"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const defaultBaseURL = "https://www.youtube.com"

// innertube web client identity; the player endpoint rejects requests
// without one.
const (
	clientName    = "WEB"
	clientVersion = "2.20240726.00.00"
)

var (
	// ErrCaptionsDisabled indicates the uploader turned subtitles off.
	ErrCaptionsDisabled = fmt.Errorf("youtube: captions are disabled for this video")
	// ErrNoTrack indicates no caption track matched the preferred languages.
	ErrNoTrack = fmt.Errorf("youtube: no caption track in preferred languages")
	// ErrUnplayable indicates the player endpoint refused the video.
	ErrUnplayable = fmt.Errorf("youtube: video is unavailable")
)

// Client talks to the innertube player endpoint and the timedtext caption
// service.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient builds a caption client. An empty baseURL selects youtube.com;
// tests point it at a local server.
func NewClient(baseURL string) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

// CaptionTrack describes one subtitle track advertised by the player.
type CaptionTrack struct {
	BaseURL      string `json:"baseUrl"`
	LanguageCode string `json:"languageCode"`
	Kind         string `json:"kind"` // "asr" for auto-generated
	Name         struct {
		SimpleText string `json:"simpleText"`
	} `json:"name"`
}

// AutoGenerated reports whether the track was machine transcribed.
func (t CaptionTrack) AutoGenerated() bool { return t.Kind == "asr" }

// VideoInfo carries the metadata the transcript chain needs.
type VideoInfo struct {
	VideoID  string
	Title    string
	Author   string
	Duration time.Duration
	Tracks   []CaptionTrack
}

type playerRequest struct {
	Context struct {
		Client struct {
			ClientName    string `json:"clientName"`
			ClientVersion string `json:"clientVersion"`
		} `json:"client"`
	} `json:"context"`
	VideoID string `json:"videoId"`
}

type playerResponse struct {
	PlayabilityStatus struct {
		Status string `json:"status"`
		Reason string `json:"reason"`
	} `json:"playabilityStatus"`
	VideoDetails struct {
		VideoID       string `json:"videoId"`
		Title         string `json:"title"`
		Author        string `json:"author"`
		LengthSeconds string `json:"lengthSeconds"`
	} `json:"videoDetails"`
	Captions struct {
		Renderer struct {
			CaptionTracks []CaptionTrack `json:"captionTracks"`
		} `json:"playerCaptionsTracklistRenderer"`
	} `json:"captions"`
}

// GetVideoInfo fetches video details and the advertised caption tracks.
func (c *Client) GetVideoInfo(ctx context.Context, videoID string) (*VideoInfo, error) {
	var req playerRequest
	req.Context.Client.ClientName = clientName
	req.Context.Client.ClientVersion = clientVersion
	req.VideoID = videoID

	var resp playerResponse
	if err := c.do(ctx, http.MethodPost, "/youtubei/v1/player", req, &resp); err != nil {
		return nil, fmt.Errorf("player request: %w", err)
	}

	switch resp.PlayabilityStatus.Status {
	case "OK", "":
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnplayable, resp.PlayabilityStatus.Reason)
	}

	seconds, _ := strconv.Atoi(resp.VideoDetails.LengthSeconds)
	return &VideoInfo{
		VideoID:  videoID,
		Title:    resp.VideoDetails.Title,
		Author:   resp.VideoDetails.Author,
		Duration: time.Duration(seconds) * time.Second,
		Tracks:   resp.Captions.Renderer.CaptionTracks,
	}, nil
}

// SelectTrack picks a caption track, preferring manual tracks in the given
// language order, then auto-generated ones in the same order.
func SelectTrack(tracks []CaptionTrack, languages []string) (*CaptionTrack, error) {
	if len(tracks) == 0 {
		return nil, ErrCaptionsDisabled
	}
	for _, auto := range []bool{false, true} {
		for _, lang := range languages {
			for i := range tracks {
				if tracks[i].AutoGenerated() != auto {
					continue
				}
				if baseLang(tracks[i].LanguageCode) == baseLang(lang) {
					return &tracks[i], nil
				}
			}
		}
	}
	return nil, ErrNoTrack
}

func baseLang(code string) string {
	code = strings.ToLower(code)
	if i := strings.IndexByte(code, '-'); i > 0 {
		code = code[:i]
	}
	return code
}

type timedText struct {
	Texts []timedTextSegment `xml:"text"`
}

type timedTextSegment struct {
	Start float64 `xml:"start,attr"`
	Dur   float64 `xml:"dur,attr"`
	Body  string  `xml:",chardata"`
}

// Segment is one caption cue.
type Segment struct {
	Start time.Duration
	Dur   time.Duration
	Text  string
}

// FetchTrack downloads and decodes a caption track.
func (c *Client) FetchTrack(ctx context.Context, track *CaptionTrack) ([]Segment, error) {
	if track == nil || track.BaseURL == "" {
		return nil, ErrNoTrack
	}
	u := track.BaseURL
	if strings.HasPrefix(u, "/") {
		u = c.baseURL + u
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("timedtext: unexpected status %d", resp.StatusCode)
	}

	var doc timedText
	if err := xml.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode timedtext: %w", err)
	}

	segments := make([]Segment, 0, len(doc.Texts))
	for _, t := range doc.Texts {
		// timedtext payloads double-encode entities, so the XML decoder
		// still leaves literal &#39; and friends behind
		text := strings.TrimSpace(html.UnescapeString(t.Body))
		if text == "" {
			continue
		}
		segments = append(segments, Segment{
			Start: time.Duration(t.Start * float64(time.Second)),
			Dur:   time.Duration(t.Dur * float64(time.Second)),
			Text:  text,
		})
	}
	return segments, nil
}

// JoinSegments flattens caption cues into one whitespace-separated string.
func JoinSegments(segments []Segment) string {
	parts := make([]string, 0, len(segments))
	for _, s := range segments {
		parts = append(parts, s.Text)
	}
	return strings.Join(parts, " ")
}

func (c *Client) do(ctx context.Context, method, path string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("youtube %s %s: %s", method, path, strings.TrimSpace(string(b)))
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

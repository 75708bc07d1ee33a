package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/axgle/mahonia"
	"github.com/gogs/chardet"
)

var ErrFetch = errors.New("page fetch failed")

// PageSource downloads HTML pages and hands them back as UTF-8 text.
type PageSource struct {
	client    *http.Client
	userAgent string
}

func NewPageSource(client *http.Client, userAgent string) *PageSource {
	return &PageSource{
		client:    client,
		userAgent: userAgent,
	}
}

func (s *PageSource) Fetch(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrFetch, err)
	}
	if s.userAgent != "" {
		req.Header.Set("User-Agent", s.userAgent)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrFetch, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return "", fmt.Errorf("%w: %s: http %s", ErrFetch, url, resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: read body: %v", ErrFetch, err)
	}

	return toUTF8(body, resp.Header.Get("Content-Type")), nil
}

// toUTF8 decodes body using the declared charset. A missing declaration, or a
// UTF-8 declaration the bytes do not honour, falls back to detection. Bytes
// that still cannot be decoded become U+FFFD, so the result is always valid
// UTF-8.
func toUTF8(body []byte, contentType string) string {
	charset := declaredCharset(contentType)

	if charset == "" || isUTF8(charset) {
		if utf8.Valid(body) {
			return string(body)
		}
		charset = detectCharset(body)
	}

	return strings.ToValidUTF8(decode(body, charset), "\uFFFD")
}

func detectCharset(body []byte) string {
	result, err := chardet.NewTextDetector().DetectBest(body)
	if err != nil {
		return ""
	}

	return result.Charset
}

func decode(body []byte, charset string) string {
	if charset == "" || isUTF8(charset) {
		return string(body)
	}

	decoder := mahonia.NewDecoder(charset)
	if decoder == nil {
		return string(body)
	}

	return decoder.ConvertString(string(body))
}

func declaredCharset(contentType string) string {
	if contentType == "" {
		return ""
	}

	_, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return ""
	}

	return strings.TrimSpace(params["charset"])
}

func isUTF8(charset string) bool {
	switch strings.ToLower(charset) {
	case "utf-8", "utf8":
		return true
	}

	return false
}

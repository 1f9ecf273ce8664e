package imaging

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
)

// TooLargeError is returned when a remote image exceeds the download cap.
type TooLargeError struct {
	URL   string
	Limit int64
}

func (e *TooLargeError) Error() string {
	return fmt.Sprintf("remote image %s exceeds %d bytes", e.URL, e.Limit)
}

func (l *Loader) get(ctx context.Context, rawURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	resp, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch image: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("failed to fetch image: %s: %s", rawURL, resp.Status)
	}
	if resp.ContentLength > l.maxBytes {
		resp.Body.Close()
		return nil, &TooLargeError{URL: rawURL, Limit: l.maxBytes}
	}
	return resp, nil
}

// fetch reads a remote image into memory.
func (l *Loader) fetch(ctx context.Context, rawURL string) ([]byte, error) {
	resp, err := l.get(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, l.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}
	if int64(len(data)) > l.maxBytes {
		return nil, &TooLargeError{URL: rawURL, Limit: l.maxBytes}
	}
	return data, nil
}

// download streams a remote image into a temporary file. The caller closes
// and removes the file.
func (l *Loader) download(ctx context.Context, rawURL, ext string) (*os.File, int64, error) {
	resp, err := l.get(ctx, rawURL)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	tmp, err := os.CreateTemp(l.tempDir, "chipdetect-*"+ext)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create temp file: %w", err)
	}
	fail := func(err error) (*os.File, int64, error) {
		tmp.Close()
		os.Remove(tmp.Name())
		return nil, 0, err
	}

	n, err := io.Copy(tmp, io.LimitReader(resp.Body, l.maxBytes+1))
	if err != nil {
		return fail(fmt.Errorf("failed to download image: %w", err))
	}
	if n > l.maxBytes {
		return fail(&TooLargeError{URL: rawURL, Limit: l.maxBytes})
	}

	l.logger.Debugw("downloaded image", "url", rawURL, "bytes", n, "file", tmp.Name())
	return tmp, n, nil
}

package apiclient

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
)

// ExportFormat is a file format the backend can export to.
type ExportFormat string

const (
	XLSX ExportFormat = "xlsx"
	CSV  ExportFormat = "csv"
)

// Saver receives an exported file.
type Saver interface {
	Save(filename string, r io.Reader) error
}

// DirSaver writes exports into a directory.
type DirSaver struct {
	Dir string
}

func (d DirSaver) Save(filename string, r io.Reader) error {
	if err := os.MkdirAll(d.Dir, 0o755); err != nil {
		return err
	}
	f, err := os.Create(filepath.Join(d.Dir, filepath.Base(filename)))
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Export downloads a workspace export and hands it to s. It returns the file
// name, taken from the Content-Disposition header when the backend sends
// one. Export needs a token and fails with ErrNoToken before any request
// otherwise. It bypasses coalescing and JSON decoding.
func (c *Client) Export(ctx context.Context, workspaceID int64, format ExportFormat, s Saver) (string, error) {
	if format != XLSX && format != CSV {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
	token := c.Token()
	if token == "" {
		return "", ErrNoToken
	}

	fullURL := c.url(workspacePath(workspaceID, "export"), url.Values{"format": {string(format)}})
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	res, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("export: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		body, _ := io.ReadAll(res.Body)
		return "", parseError(res.StatusCode, body)
	}

	filename := filenameFrom(res.Header.Get("Content-Disposition"))
	if filename == "" {
		filename = "export." + string(format)
	}
	if err := s.Save(filename, res.Body); err != nil {
		return "", fmt.Errorf("save %s: %w", filename, err)
	}
	c.logger.Infof("apiclient: exported workspace %d to %s", workspaceID, filename)
	return filename, nil
}

func filenameFrom(contentDisposition string) string {
	if contentDisposition == "" {
		return ""
	}
	_, params, err := mime.ParseMediaType(contentDisposition)
	if err != nil {
		return ""
	}
	name := filepath.Base(params["filename"])
	if name == "." || name == "/" {
		return ""
	}
	return name
}

// Package mailbox is the boundary to the mail-retrieval client. The pipeline
// only sees a sequence of (filename, bytes) attachments; how they were
// fetched from the mailbox is someone else's job.
package mailbox

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// Attachment is one downloaded mail attachment.
type Attachment struct {
	Filename    string
	Data        []byte
	ContentType string
}

// Source yields receipt attachments for one ingestion run.
type Source interface {
	Attachments() ([]Attachment, error)
}

// contentTypes maps attachment extensions to MIME types; anything else is
// not a receipt and gets skipped.
var contentTypes = map[string]string{
	".pdf":  "application/pdf",
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".gif":  "image/gif",
	".heic": "image/heic",
	".heif": "image/heif",
}

// DirSource reads attachments from a local directory, e.g. a folder the mail
// client dumps eBon attachments into.
type DirSource struct {
	dir string
}

// NewDirSource creates a DirSource over dir.
func NewDirSource(dir string) (*DirSource, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("opening inbox directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("inbox path %s is not a directory", dir)
	}
	return &DirSource{dir: dir}, nil
}

// Attachments returns every receipt file in the directory, sorted by name.
// Unreadable files are logged and skipped so one broken download does not
// sink the batch.
func (s *DirSource) Attachments() ([]Attachment, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("reading inbox directory: %w", err)
	}

	attachments := make([]Attachment, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		contentType, ok := contentTypes[strings.ToLower(filepath.Ext(entry.Name()))]
		if !ok {
			continue
		}

		data, err := os.ReadFile(filepath.Join(s.dir, entry.Name()))
		if err != nil {
			slog.Warn("Skipping unreadable attachment", "filename", entry.Name(), "error", err)
			continue
		}

		attachments = append(attachments, Attachment{
			Filename:    entry.Name(),
			Data:        data,
			ContentType: contentType,
		})
	}

	return attachments, nil
}

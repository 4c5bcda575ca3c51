package receipt

import (
	"encoding/json"
	"fmt"
	"time"

	"go.etcd.io/bbolt"

	"github.com/35529110/reweAnalyzer/internal/scanning"
)

const draftBucketName = "drafts"

// Archive keeps every draft the extraction model produced, keyed by source
// filename. A corrected normalizer can re-run over the archive without
// paying for another model call.
type Archive struct {
	db *bbolt.DB
}

// NewArchive opens (or creates) the archive file at path.
func NewArchive(path string) (*Archive, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening draft archive: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(draftBucketName))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating draft bucket: %w", err)
	}

	return &Archive{db: db}, nil
}

// PutDraft stores the draft under its source filename, overwriting any
// earlier extraction of the same file.
func (a *Archive) PutDraft(filename string, draft *scanning.DraftReceipt) error {
	return a.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(draftBucketName))
		data, err := json.Marshal(draft)
		if err != nil {
			return fmt.Errorf("marshaling draft: %w", err)
		}
		return bucket.Put([]byte(filename), data)
	})
}

// GetDraft retrieves the archived draft for a source filename.
func (a *Archive) GetDraft(filename string) (*scanning.DraftReceipt, error) {
	var draft *scanning.DraftReceipt
	err := a.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(draftBucketName))
		data := bucket.Get([]byte(filename))
		if data == nil {
			return fmt.Errorf("draft not found: %s", filename)
		}
		return json.Unmarshal(data, &draft)
	})
	if err != nil {
		return nil, err
	}
	draft.SourceFile = filename
	return draft, nil
}

// ListFilenames returns the source filenames of all archived drafts.
func (a *Archive) ListFilenames() ([]string, error) {
	filenames := make([]string, 0)
	err := a.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(draftBucketName))
		return bucket.ForEach(func(k, v []byte) error {
			filenames = append(filenames, string(k))
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return filenames, nil
}

// Close closes the archive file.
func (a *Archive) Close() error {
	return a.db.Close()
}

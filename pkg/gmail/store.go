package gmail

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/oauth2"

	"github.com/cenderhq/cender/pkg/blobstore"
	"github.com/cenderhq/cender/pkg/message"
)

const defaultResumeFilename = "resume.pdf"

// CredentialStore persists per-owner OAuth blobs and the resume attachment
// through a blob store. One client-secret blob and one token blob exist per
// account owner.
type CredentialStore struct {
	blobs blobstore.Store
}

// NewCredentialStore creates a credential store over the given blob store.
func NewCredentialStore(blobs blobstore.Store) *CredentialStore {
	return &CredentialStore{blobs: blobs}
}

func credentialsKey(ownerID int64) string { return fmt.Sprintf("users/%d/credentials.json", ownerID) }
func tokenKey(ownerID int64) string       { return fmt.Sprintf("users/%d/token.json", ownerID) }
func resumeKey(ownerID int64) string      { return fmt.Sprintf("users/%d/resume.pdf", ownerID) }
func resumeNameKey(ownerID int64) string  { return fmt.Sprintf("users/%d/resume.name", ownerID) }

// ClientSecret loads the uploaded OAuth client secret blob.
func (s *CredentialStore) ClientSecret(ctx context.Context, ownerID int64) ([]byte, error) {
	data, err := blobstore.ReadAll(ctx, s.blobs, credentialsKey(ownerID))
	if err != nil {
		if errors.Is(err, blobstore.ErrNotFound) {
			return nil, ErrMissingCredentials
		}
		return nil, err
	}
	return data, nil
}

// SaveClientSecret persists the uploaded client secret blob.
func (s *CredentialStore) SaveClientSecret(ctx context.Context, ownerID int64, r io.Reader) error {
	return s.blobs.Put(ctx, credentialsKey(ownerID), r)
}

// Token loads the persisted token pair.
func (s *CredentialStore) Token(ctx context.Context, ownerID int64) (*oauth2.Token, error) {
	data, err := blobstore.ReadAll(ctx, s.blobs, tokenKey(ownerID))
	if err != nil {
		if errors.Is(err, blobstore.ErrNotFound) {
			return nil, ErrNoToken
		}
		return nil, err
	}
	var tok oauth2.Token
	if err := json.Unmarshal(data, &tok); err != nil {
		return nil, errors.Join(ErrNoToken, err)
	}
	return &tok, nil
}

// SaveToken persists the token pair, replacing any previous one.
func (s *CredentialStore) SaveToken(ctx context.Context, ownerID int64, tok *oauth2.Token) error {
	data, err := json.Marshal(tok)
	if err != nil {
		return err
	}
	return s.blobs.Put(ctx, tokenKey(ownerID), bytes.NewReader(data))
}

// DeleteToken removes the persisted token. Deleting a missing token is not
// an error, so disconnecting twice is safe.
func (s *CredentialStore) DeleteToken(ctx context.Context, ownerID int64) error {
	return s.blobs.Delete(ctx, tokenKey(ownerID))
}

// SaveResume persists the resume attachment along with its original filename.
func (s *CredentialStore) SaveResume(ctx context.Context, ownerID int64, filename string, r io.Reader) error {
	if err := s.blobs.Put(ctx, resumeKey(ownerID), r); err != nil {
		return err
	}
	filename = strings.TrimSpace(filename)
	if filename == "" {
		filename = defaultResumeFilename
	}
	return s.blobs.Put(ctx, resumeNameKey(ownerID), strings.NewReader(filename))
}

// Resume loads the resume attachment with its original filename.
func (s *CredentialStore) Resume(ctx context.Context, ownerID int64) (message.Attachment, error) {
	content, err := blobstore.ReadAll(ctx, s.blobs, resumeKey(ownerID))
	if err != nil {
		if errors.Is(err, blobstore.ErrNotFound) {
			return message.Attachment{}, ErrNoResume
		}
		return message.Attachment{}, err
	}

	filename := defaultResumeFilename
	if name, err := blobstore.ReadAll(ctx, s.blobs, resumeNameKey(ownerID)); err == nil && len(name) > 0 {
		filename = string(name)
	}

	return message.Attachment{Filename: filename, Content: content}, nil
}

// FilesStatus reports which per-owner blobs have been uploaded.
type FilesStatus struct {
	HasCredentials bool `json:"has_credentials"`
	HasResume      bool `json:"has_resume"`
}

// FilesStatus checks the presence of the credentials and resume blobs.
func (s *CredentialStore) FilesStatus(ctx context.Context, ownerID int64) (FilesStatus, error) {
	hasCreds, err := s.blobs.Exists(ctx, credentialsKey(ownerID))
	if err != nil {
		return FilesStatus{}, err
	}
	hasResume, err := s.blobs.Exists(ctx, resumeKey(ownerID))
	if err != nil {
		return FilesStatus{}, err
	}
	return FilesStatus{HasCredentials: hasCreds, HasResume: hasResume}, nil
}

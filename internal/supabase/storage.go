package supabase

import (
	"bytes"
	"fmt"
	"path"
	"strings"

	storage "github.com/supabase-community/storage-go"
)

type StorageClient struct {
	client  *storage.Client
	bucket  string
	baseURL string
}

func NewStorageClient(supabaseURL, serviceRoleKey, bucket string) (*StorageClient, error) {
	baseURL := strings.TrimSuffix(supabaseURL, "/")
	if baseURL == "" {
		return nil, fmt.Errorf("supabase URL is required")
	}
	client := storage.NewClient(baseURL+"/storage/v1", serviceRoleKey, nil)

	return &StorageClient{
		client:  client,
		bucket:  bucket,
		baseURL: baseURL,
	}, nil
}

// ObjectPath is users/{owner}/{folder}/{filename}.
func ObjectPath(ownerID, folder, filename string) string {
	return path.Join("users", ownerID, folder, path.Base(filename))
}

func sessionPrefix(ownerID, sessionID string) string {
	return path.Join("users", ownerID, "sessions", sessionID) + "/"
}

// Upload stores data and returns its storage path and public URL.
func (s *StorageClient) Upload(ownerID, folder, filename, contentType string, data []byte) (string, string, error) {
	storagePath := ObjectPath(ownerID, folder, filename)
	if contentType == "" {
		contentType = "image/jpeg"
	}

	upsert := true
	_, err := s.client.UploadFile(s.bucket, storagePath, bytes.NewReader(data), storage.FileOptions{
		ContentType: &contentType,
		Upsert:      &upsert,
	})
	if err != nil {
		return "", "", fmt.Errorf("failed to upload file: %w", err)
	}

	return storagePath, s.GetPublicURL(storagePath), nil
}

func (s *StorageClient) GetPublicURL(storagePath string) string {
	return fmt.Sprintf("%s/storage/v1/object/public/%s/%s",
		s.baseURL, s.bucket, storagePath)
}

// DeleteSessionFiles removes every object stored for a session.
func (s *StorageClient) DeleteSessionFiles(ownerID, sessionID string) error {
	prefix := sessionPrefix(ownerID, sessionID)

	files, err := s.client.ListFiles(s.bucket, prefix, storage.FileSearchOptions{
		Limit: 1000,
	})
	if err != nil {
		return fmt.Errorf("failed to list files: %w", err)
	}
	if len(files) == 0 {
		return nil
	}

	paths := make([]string, len(files))
	for i, file := range files {
		paths[i] = prefix + file.Name
	}
	if _, err := s.client.RemoveFile(s.bucket, paths); err != nil {
		return fmt.Errorf("failed to delete files: %w", err)
	}
	return nil
}

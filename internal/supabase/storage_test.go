package supabase_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"heritage-gallery-backend/internal/supabase"
)

func TestObjectPath(t *testing.T) {
	assert.Equal(t, "users/user-1/sessions/abc/restored.png",
		supabase.ObjectPath("user-1", "sessions/abc", "restored.png"))
	assert.Equal(t, "users/user-1/uploads/photo.jpg",
		supabase.ObjectPath("user-1", "uploads", "../../photo.jpg"))
}

func TestStorageClient_GetPublicURL(t *testing.T) {
	client, err := supabase.NewStorageClient("https://project.supabase.co/", "service-key", "gallery-images")
	require.NoError(t, err)

	assert.Equal(t,
		"https://project.supabase.co/storage/v1/object/public/gallery-images/users/u/uploads/a.jpg",
		client.GetPublicURL("users/u/uploads/a.jpg"))
}

func TestNewStorageClient_RequiresURL(t *testing.T) {
	_, err := supabase.NewStorageClient("", "key", "bucket")
	assert.Error(t, err)
}

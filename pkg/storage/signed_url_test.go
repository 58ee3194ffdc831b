package storage

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSignedURLSignerGenerateAndParse(t *testing.T) {
	signer := NewSignedURLSigner("secret", time.Hour, "/api/media/")
	link, expiresAt, err := signer.Generate("course-1", 2, "https://videos.example.com/intro.mp4")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(link, "/api/media/course-1."))
	require.False(t, expiresAt.IsZero())

	grant, err := signer.Parse(strings.TrimPrefix(link, "/api/media/"))
	require.NoError(t, err)
	require.Equal(t, "course-1", grant.CourseID)
	require.Equal(t, 2, grant.Section)
	require.Equal(t, "https://videos.example.com/intro.mp4", grant.MediaRef)
	require.WithinDuration(t, expiresAt, grant.ExpiresAt, time.Second)
}

func TestSignedURLSignerExpired(t *testing.T) {
	signer := NewSignedURLSigner("secret", time.Minute, "")
	link, _, err := signer.Generate("course-1", 0, "intro.mp4")
	require.NoError(t, err)

	signer.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	_, err = signer.Parse(strings.TrimPrefix(link, "/"))
	require.ErrorIs(t, err, ErrTokenExpired)
}

func TestSignedURLSignerRejectsTampering(t *testing.T) {
	signer := NewSignedURLSigner("secret", time.Hour, "")
	link, _, err := signer.Generate("course-1", 0, "intro.mp4")
	require.NoError(t, err)
	token := strings.TrimPrefix(link, "/")

	_, err = signer.Parse(strings.Replace(token, "course-1", "course-2", 1))
	require.ErrorIs(t, err, ErrInvalidToken)

	_, err = NewSignedURLSigner("other", time.Hour, "").Parse(token)
	require.ErrorIs(t, err, ErrInvalidToken)

	_, err = signer.Parse("garbage")
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestSignedURLSignerRequiresSecret(t *testing.T) {
	_, _, err := NewSignedURLSigner("", time.Hour, "").Generate("course-1", 0, "intro.mp4")
	require.Error(t, err)
}

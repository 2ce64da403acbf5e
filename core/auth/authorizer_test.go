package auth

import (
	"testing"

	"MusicPro/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenAuthorizer(t *testing.T) {
	authorizer := TokenAuthorizer{}
	rec := &model.UploadRecord{Filename: "song-1.mp3"}

	secret, err := authorizer.AttachOwner(Credentials{}, rec)
	require.NoError(t, err)
	require.Len(t, secret, 64)
	require.NotEmpty(t, rec.DeleteTokenHash)
	assert.NotEqual(t, secret, rec.DeleteTokenHash, "plaintext secret must not be persisted")

	assert.NoError(t, authorizer.AuthorizeDelete(Credentials{BearerToken: secret}, rec))
	assert.ErrorIs(t, authorizer.AuthorizeDelete(Credentials{BearerToken: "wrong"}, rec), ErrForbidden)
	assert.ErrorIs(t, authorizer.AuthorizeDelete(Credentials{}, rec), ErrForbidden)
}

func TestSessionAuthorizer(t *testing.T) {
	authorizer := SessionAuthorizer{}

	t.Run("attach requires identity", func(t *testing.T) {
		rec := &model.UploadRecord{Filename: "a.mp3"}
		_, err := authorizer.AttachOwner(Credentials{}, rec)
		assert.ErrorIs(t, err, ErrForbidden)

		secret, err := authorizer.AttachOwner(Credentials{UserID: 7}, rec)
		require.NoError(t, err)
		assert.Empty(t, secret)
		assert.EqualValues(t, 7, rec.OwnerID)
	})

	tests := []struct {
		name    string
		creds   Credentials
		ownerID int64
		wantErr bool
	}{
		{name: "owner may delete", creds: Credentials{UserID: 7}, ownerID: 7, wantErr: false},
		{name: "other user may not", creds: Credentials{UserID: 8}, ownerID: 7, wantErr: true},
		{name: "anonymous may not", creds: Credentials{}, ownerID: 7, wantErr: true},
		{name: "unowned record fails closed", creds: Credentials{UserID: 7}, ownerID: 0, wantErr: true},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			rec := &model.UploadRecord{Filename: "a.mp3", OwnerID: tt.ownerID}
			err := authorizer.AuthorizeDelete(tt.creds, rec)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrForbidden)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

package auth

import (
	"errors"

	"MusicPro/model"
)

// ErrForbidden is returned when the presented credentials do not prove
// ownership of the record.
var ErrForbidden = errors.New("forbidden")

// Credentials carries whatever the request presented: a bearer secret
// under the token strategy, a session user id under the session strategy.
// A zero UserID means the requester is anonymous.
type Credentials struct {
	BearerToken string
	UserID      int64
}

// Authorizer decides who owns an upload and who may delete it. One
// implementation is chosen at process start from configuration; handlers
// never branch on the strategy themselves.
type Authorizer interface {
	// AttachOwner populates the record's ownership field at creation time.
	// Under the token strategy it returns the plaintext secret for the
	// upload response; otherwise the returned secret is empty.
	AttachOwner(creds Credentials, rec *model.UploadRecord) (secret string, err error)

	// AuthorizeDelete returns nil when the credentials prove ownership of
	// the record, ErrForbidden otherwise. A record with no ownership
	// information fails closed.
	AuthorizeDelete(creds Credentials, rec *model.UploadRecord) error
}

// TokenAuthorizer implements the capability-token strategy: a per-upload
// secret returned once, verified by its sha256 digest thereafter. Losing
// the plaintext makes the file permanently undeletable through this path.
type TokenAuthorizer struct{}

func (TokenAuthorizer) AttachOwner(creds Credentials, rec *model.UploadRecord) (string, error) {
	secret, err := NewDeleteToken()
	if err != nil {
		return "", err
	}
	rec.DeleteTokenHash = HashToken(secret)
	return secret, nil
}

func (TokenAuthorizer) AuthorizeDelete(creds Credentials, rec *model.UploadRecord) error {
	if creds.BearerToken == "" {
		return ErrForbidden
	}
	if !VerifyToken(creds.BearerToken, rec.DeleteTokenHash) {
		return ErrForbidden
	}
	return nil
}

// SessionAuthorizer implements the session-identity strategy: the record's
// owner id must equal the authenticated user's id.
type SessionAuthorizer struct{}

func (SessionAuthorizer) AttachOwner(creds Credentials, rec *model.UploadRecord) (string, error) {
	if creds.UserID == 0 {
		return "", ErrForbidden
	}
	rec.OwnerID = creds.UserID
	return "", nil
}

func (SessionAuthorizer) AuthorizeDelete(creds Credentials, rec *model.UploadRecord) error {
	// An unowned record is deletable by no one.
	if creds.UserID == 0 || rec.OwnerID == 0 {
		return ErrForbidden
	}
	if creds.UserID != rec.OwnerID {
		return ErrForbidden
	}
	return nil
}

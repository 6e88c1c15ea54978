package identity

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	ErrInvalidToken   = errors.New("invalid session token")
	ErrSessionExpired = errors.New("session expired")
	ErrSessionRevoked = errors.New("session revoked")
)

// SessionMeta describes the client that opened a session.
type SessionMeta struct {
	UserAgent string
	IPAddress string
}

// Login is returned to a client after successful authentication.
type Login struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	Role      string    `json:"role"`
	SubjectID uuid.UUID `json:"subject_id"`
	Name      string    `json:"name"`
}

func (s *Service) issue(ctx context.Context, role string, subjectID uuid.UUID, name string, meta SessionMeta) (Login, error) {
	now := s.now()
	row := sessionModel{
		ID:          uuid.New(),
		SubjectType: role,
		SubjectID:   subjectID,
		ExpiresAt:   now.Add(s.ttl),
		UserAgent:   meta.UserAgent,
		IPAddress:   meta.IPAddress,
		CreatedAt:   now,
	}
	if err := s.orm.WithContext(ctx).Create(&row).Error; err != nil {
		return Login{}, err
	}

	token, err := s.signer.sign(row.ID, subjectID, role, name, row.ExpiresAt)
	if err != nil {
		return Login{}, err
	}
	return Login{Token: token, ExpiresAt: row.ExpiresAt, Role: role, SubjectID: subjectID, Name: name}, nil
}

// Authenticate verifies a session token and the server-side session it names.
func (s *Service) Authenticate(ctx context.Context, token string) (Principal, error) {
	claims, err := s.signer.parse(token)
	if err != nil {
		return Principal{}, err
	}

	sessionID, err := uuid.Parse(claims.ID)
	if err != nil {
		return Principal{}, ErrInvalidToken
	}
	subjectID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return Principal{}, ErrInvalidToken
	}

	var row sessionModel
	if err := s.orm.WithContext(ctx).First(&row, "id = ?", sessionID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Principal{}, ErrInvalidToken
		}
		return Principal{}, err
	}
	if row.RevokedAt != nil {
		return Principal{}, ErrSessionRevoked
	}
	if !s.now().Before(row.ExpiresAt) {
		return Principal{}, ErrSessionExpired
	}
	if row.SubjectID != subjectID || row.SubjectType != claims.Role {
		return Principal{}, ErrInvalidToken
	}

	return Principal{SessionID: row.ID, SubjectID: row.SubjectID, Role: row.SubjectType, Name: claims.Name}, nil
}

// Logout revokes a session. Revoking an already revoked session is a no-op.
func (s *Service) Logout(ctx context.Context, sessionID uuid.UUID) error {
	return s.orm.WithContext(ctx).
		Model(&sessionModel{}).
		Where("id = ? AND revoked_at IS NULL", sessionID).
		Update("revoked_at", s.now()).Error
}

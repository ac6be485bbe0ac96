package database

import "time"

// Model blob names. These are the only names the chunk store accepts from callers.
const (
	BlobFaceDetection   = "face-detection"
	BlobFaceRecognition = "face-recognition"
)

// ValidBlobName reports whether name is one of the two model blob names.
func ValidBlobName(name string) bool {
	return name == BlobFaceDetection || name == BlobFaceRecognition
}

// StoredPerson is one enrolled face in the person registry.
type StoredPerson struct {
	ID        int64
	Label     string
	Embedding []float32
	CreatedAt time.Time
}

// UserStatus is the verification status of a user.
type UserStatus string

const (
	UserStatusUnverified UserStatus = "unverified"
	UserStatusSuccess    UserStatus = "success"
	UserStatusFailed     UserStatus = "failed"
)

// Valid reports whether s is a known status.
func (s UserStatus) Valid() bool {
	switch s {
	case UserStatusUnverified, UserStatusSuccess, UserStatusFailed:
		return true
	}
	return false
}

// StoredUser is a registered user of the service.
type StoredUser struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Email     string     `json:"email"`
	Phone     string     `json:"phone"`
	Address   string     `json:"address"`
	Status    UserStatus `json:"status"`
	CreatedAt time.Time  `json:"created_at"`
}

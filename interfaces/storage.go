package interfaces

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// ContentID is a 32-byte SHA-256 hash uniquely identifying stored content.
type ContentID [32]byte

// NewContentIDFromHex parses a 64-character hex content ID, with or without 0x.
func NewContentIDFromHex(source string) (ContentID, error) {
	clean := strings.TrimPrefix(source, "0x")
	if len(clean) != 64 {
		return ContentID{}, fmt.Errorf("%w: content ID must be 64 hex characters", ErrValidation)
	}

	hashBytes, err := hex.DecodeString(clean)
	if err != nil {
		return ContentID{}, fmt.Errorf("%w: invalid content ID hex: %v", ErrValidation, err)
	}

	var id ContentID
	copy(id[:], hashBytes)
	return id, nil
}

// ComputeID calculates the content ID of data.
func ComputeID(data []byte) ContentID {
	return ContentID(sha256.Sum256(data))
}

func (id ContentID) String() string {
	return hex.EncodeToString(id[:])
}

// ContentType selects the storage namespace.
type ContentType int

const (
	// ArtifactType holds compiled contract artifacts.
	ArtifactType ContentType = iota
	// AddressBookType holds address tables produced by deployment runs.
	AddressBookType
)

func (ct ContentType) String() string {
	switch ct {
	case ArtifactType:
		return "artifacts"
	case AddressBookType:
		return "address-books"
	default:
		return "unknown"
	}
}

// StorageBackendLocation is a backend URI such as file:///var/trex or
// s3://bucket/prefix?region=eu-west-1.
type StorageBackendLocation string

// NewStorageBackendLocation validates the URI scheme.
func NewStorageBackendLocation(uri string) (StorageBackendLocation, error) {
	parsed, err := url.Parse(uri)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidLocationURI, err)
	}

	switch parsed.Scheme {
	case "file", "s3", "ipfs", "vault":
	default:
		return "", fmt.Errorf("%w: unsupported storage scheme %q", ErrInvalidLocationURI, parsed.Scheme)
	}

	return StorageBackendLocation(uri), nil
}

var (
	// ErrContentNotFound is returned when requested content is not in the backend.
	ErrContentNotFound = errors.New("content not found")

	// ErrBackendUnavailable is returned when a storage backend is not accessible.
	ErrBackendUnavailable = errors.New("storage backend unavailable")

	// ErrInvalidLocationURI is returned for malformed or unsupported backend URIs.
	ErrInvalidLocationURI = errors.New("invalid storage location URI")

	// ErrContentMismatch is returned when fetched bytes do not hash to the requested ID.
	ErrContentMismatch = errors.New("content hash mismatch")
)

// StorageBackend provides content-addressed storage for artifacts and address books.
type StorageBackend interface {
	// Fetch retrieves data by content ID and type.
	Fetch(ctx context.Context, id ContentID, contentType ContentType) ([]byte, error)

	// Store saves data and returns its content ID.
	Store(ctx context.Context, data []byte, contentType ContentType) (ContentID, error)

	// Available checks if the backend is accessible.
	Available(ctx context.Context) bool

	// Name returns an identifier for logging.
	Name() string

	// LocationURI returns the URI identifying this backend.
	LocationURI() string
}

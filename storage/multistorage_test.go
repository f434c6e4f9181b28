package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/ruteri/trex-suite-provisioning/interfaces"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

// MockStorageBackend implements interfaces.StorageBackend for testing
type MockStorageBackend struct {
	mock.Mock
	name string
}

func (m *MockStorageBackend) Fetch(ctx context.Context, id interfaces.ContentID, contentType interfaces.ContentType) ([]byte, error) {
	args := m.Called(ctx, id, contentType)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func (m *MockStorageBackend) Store(ctx context.Context, data []byte, contentType interfaces.ContentType) (interfaces.ContentID, error) {
	args := m.Called(ctx, data, contentType)
	return args.Get(0).(interfaces.ContentID), args.Error(1)
}

func (m *MockStorageBackend) Available(ctx context.Context) bool {
	args := m.Called(ctx)
	return args.Bool(0)
}

func (m *MockStorageBackend) Name() string {
	return m.name
}

func (m *MockStorageBackend) LocationURI() string {
	return "mock://" + m.name
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestMultiStorageBackend_Available(t *testing.T) {
	tests := []struct {
		name     string
		backends []bool
		expected bool
	}{
		{name: "all available", backends: []bool{true, true}, expected: true},
		{name: "one available", backends: []bool{false, true, false}, expected: true},
		{name: "none available", backends: []bool{false, false}, expected: false},
		{name: "no backends", backends: []bool{}, expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var backends []interfaces.StorageBackend
			for i, available := range tt.backends {
				m := &MockStorageBackend{name: fmt.Sprintf("mock-%d", i)}
				m.On("Available", mock.Anything).Return(available).Maybe()
				backends = append(backends, m)
			}

			multi := NewMultiStorageBackend(backends, discardLogger())
			assert.Equal(t, tt.expected, multi.Available(context.Background()))
		})
	}
}

func TestMultiStorageBackend_Fetch(t *testing.T) {
	addressBook := []byte(`{"suite":{"token":"0x01"}}`)
	id := interfaces.ComputeID(addressBook)
	backendErr := errors.New("connection reset")

	tests := []struct {
		name        string
		setupMocks  func() []interfaces.StorageBackend
		expected    []byte
		expectedErr error
	}{
		{
			name: "first backend serves",
			setupMocks: func() []interfaces.StorageBackend {
				a := &MockStorageBackend{name: "a"}
				a.On("Available", mock.Anything).Return(true)
				a.On("Fetch", mock.Anything, id, interfaces.AddressBookType).Return(addressBook, nil)
				b := &MockStorageBackend{name: "b"}
				return []interfaces.StorageBackend{a, b}
			},
			expected: addressBook,
		},
		{
			name: "corrupted replica is skipped",
			setupMocks: func() []interfaces.StorageBackend {
				a := &MockStorageBackend{name: "a"}
				a.On("Available", mock.Anything).Return(true)
				a.On("Fetch", mock.Anything, id, interfaces.AddressBookType).Return([]byte("tampered"), nil)
				b := &MockStorageBackend{name: "b"}
				b.On("Available", mock.Anything).Return(true)
				b.On("Fetch", mock.Anything, id, interfaces.AddressBookType).Return(addressBook, nil)
				return []interfaces.StorageBackend{a, b}
			},
			expected: addressBook,
		},
		{
			name: "unavailable backend is skipped",
			setupMocks: func() []interfaces.StorageBackend {
				a := &MockStorageBackend{name: "a"}
				a.On("Available", mock.Anything).Return(false)
				b := &MockStorageBackend{name: "b"}
				b.On("Available", mock.Anything).Return(true)
				b.On("Fetch", mock.Anything, id, interfaces.AddressBookType).Return(addressBook, nil)
				return []interfaces.StorageBackend{a, b}
			},
			expected: addressBook,
		},
		{
			name: "missing everywhere",
			setupMocks: func() []interfaces.StorageBackend {
				a := &MockStorageBackend{name: "a"}
				a.On("Available", mock.Anything).Return(true)
				a.On("Fetch", mock.Anything, id, interfaces.AddressBookType).Return(nil, interfaces.ErrContentNotFound)
				return []interfaces.StorageBackend{a}
			},
			expectedErr: interfaces.ErrContentNotFound,
		},
		{
			name: "all backends fail",
			setupMocks: func() []interfaces.StorageBackend {
				a := &MockStorageBackend{name: "a"}
				a.On("Available", mock.Anything).Return(true)
				a.On("Fetch", mock.Anything, id, interfaces.AddressBookType).Return(nil, backendErr)
				b := &MockStorageBackend{name: "b"}
				b.On("Available", mock.Anything).Return(true)
				b.On("Fetch", mock.Anything, id, interfaces.AddressBookType).Return(nil, interfaces.ErrContentNotFound)
				return []interfaces.StorageBackend{a, b}
			},
			expectedErr: backendErr,
		},
		{
			name: "nothing available",
			setupMocks: func() []interfaces.StorageBackend {
				a := &MockStorageBackend{name: "a"}
				a.On("Available", mock.Anything).Return(false)
				return []interfaces.StorageBackend{a}
			},
			expectedErr: interfaces.ErrBackendUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backends := tt.setupMocks()
			multi := NewMultiStorageBackend(backends, discardLogger())

			data, err := multi.Fetch(context.Background(), id, interfaces.AddressBookType)
			if tt.expectedErr != nil {
				assert.ErrorIs(t, err, tt.expectedErr)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.expected, data)

			for _, backend := range backends {
				backend.(*MockStorageBackend).AssertExpectations(t)
			}
		})
	}
}

func TestMultiStorageBackend_Store(t *testing.T) {
	artifact := []byte(`{"contractName":"Token"}`)
	id := interfaces.ComputeID(artifact)
	backendErr := errors.New("access denied")

	tests := []struct {
		name       string
		setupMocks func() []interfaces.StorageBackend
		wantErr    bool
	}{
		{
			name: "replicated to all",
			setupMocks: func() []interfaces.StorageBackend {
				a := &MockStorageBackend{name: "a"}
				a.On("Available", mock.Anything).Return(true)
				a.On("Store", mock.Anything, artifact, interfaces.ArtifactType).Return(id, nil)
				b := &MockStorageBackend{name: "b"}
				b.On("Available", mock.Anything).Return(true)
				b.On("Store", mock.Anything, artifact, interfaces.ArtifactType).Return(id, nil)
				return []interfaces.StorageBackend{a, b}
			},
		},
		{
			name: "partial failure still succeeds",
			setupMocks: func() []interfaces.StorageBackend {
				a := &MockStorageBackend{name: "a"}
				a.On("Available", mock.Anything).Return(true)
				a.On("Store", mock.Anything, artifact, interfaces.ArtifactType).Return(interfaces.ContentID{}, backendErr)
				b := &MockStorageBackend{name: "b"}
				b.On("Available", mock.Anything).Return(true)
				b.On("Store", mock.Anything, artifact, interfaces.ArtifactType).Return(id, nil)
				return []interfaces.StorageBackend{a, b}
			},
		},
		{
			name: "all fail",
			setupMocks: func() []interfaces.StorageBackend {
				a := &MockStorageBackend{name: "a"}
				a.On("Available", mock.Anything).Return(true)
				a.On("Store", mock.Anything, artifact, interfaces.ArtifactType).Return(interfaces.ContentID{}, backendErr)
				b := &MockStorageBackend{name: "b"}
				b.On("Available", mock.Anything).Return(false)
				return []interfaces.StorageBackend{a, b}
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backends := tt.setupMocks()
			multi := NewMultiStorageBackend(backends, discardLogger())

			got, err := multi.Store(context.Background(), artifact, interfaces.ArtifactType)
			if tt.wantErr {
				assert.ErrorIs(t, err, backendErr)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, id, got)

			for _, backend := range backends {
				backend.(*MockStorageBackend).AssertExpectations(t)
			}
		})
	}
}

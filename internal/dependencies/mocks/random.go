package mocks

import (
	"errors"

	"github.com/mcoot/authservice/internal/dependencies/random"
)

// MockRandom is a mock implementation of Random for testing
type MockRandom struct {
	// SecretResults is a queue of results to return from Secret
	SecretResults []string
	secretIndex   int

	// Err, when set, is returned from every call
	Err error
}

// Ensure MockRandom implements Random
var _ random.Random = (*MockRandom)(nil)

// NewMockRandom creates a new MockRandom
func NewMockRandom() *MockRandom {
	return &MockRandom{}
}

// Secret returns the next queued result, or an error if none remain
func (r *MockRandom) Secret(n int) (string, error) {
	if r.Err != nil {
		return "", r.Err
	}
	if r.secretIndex >= len(r.SecretResults) {
		return "", errors.New("mock random: no secrets queued")
	}
	result := r.SecretResults[r.secretIndex]
	r.secretIndex++
	return result, nil
}

// QueueSecret adds values to the Secret result queue
func (r *MockRandom) QueueSecret(values ...string) {
	r.SecretResults = append(r.SecretResults, values...)
}

// Reset clears all queued results
func (r *MockRandom) Reset() {
	r.SecretResults = nil
	r.secretIndex = 0
	r.Err = nil
}

package factory

import (
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/mcoot/authservice/internal/dependencies/mocks"
	"github.com/mcoot/authservice/internal/services/password"
	"github.com/mcoot/authservice/internal/services/token"
	"github.com/mcoot/authservice/internal/storage/memory"
	"github.com/mcoot/authservice/internal/testutil"
)

// TestSecret signs tokens in test apps
const TestSecret = "test-signing-secret-0123456789abcdef"

// TestTokenConfig returns the default token settings signed with TestSecret
func TestTokenConfig() token.Config {
	cfg := token.DefaultConfig()
	cfg.Secret = TestSecret
	return cfg
}

// TestApp extends App with test-specific helpers
type TestApp struct {
	*App

	// Mocks for test control
	MockClock  *mocks.MockClock
	MockRandom *mocks.MockRandom
	Memory     *memory.Storage
}

// NewTestApp creates an App configured for testing with mocked dependencies.
// Passwords are hashed at bcrypt's minimum cost to keep tests fast.
func NewTestApp() *TestApp {
	store := memory.New()
	mockClock := mocks.NewMockClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	mockRandom := mocks.NewMockRandom()

	app, err := newWithDependencies(
		store,
		mockClock,
		mockRandom,
		password.NewBcrypt(bcrypt.MinCost),
		TestTokenConfig(),
		testutil.NopLogger(),
	)
	if err != nil {
		panic(err)
	}

	return &TestApp{
		App:        app,
		MockClock:  mockClock,
		MockRandom: mockRandom,
		Memory:     store,
	}
}

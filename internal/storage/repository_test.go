package storage

import (
	"context"
	"testing"
	"time"

	"cobranzas/internal/core"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

// RepositoryTestSuite provides a test suite for database operations
type RepositoryTestSuite struct {
	suite.Suite
	repo *SQLiteRepository
	ctx  context.Context
}

// SetupTest runs before each test
func (suite *RepositoryTestSuite) SetupTest() {
	repo, err := NewSQLiteRepository(":memory:")
	require.NoError(suite.T(), err, "failed to create test database")
	suite.repo = repo
	suite.ctx = context.Background()
}

// TearDownTest runs after each test
func (suite *RepositoryTestSuite) TearDownTest() {
	if suite.repo != nil {
		suite.repo.Close()
	}
}

func (suite *RepositoryTestSuite) createUser(username string) int64 {
	id, err := suite.repo.CreateUser(suite.ctx, core.NormalizeUsername(username), "hash")
	require.NoError(suite.T(), err)
	return id
}

func (suite *RepositoryTestSuite) createMovement(userID int64, mt core.MovementType, amount string) int64 {
	id, err := suite.repo.InsertMovement(suite.ctx, core.Movement{
		UserID:        userID,
		Type:          mt,
		Description:   "test movement",
		PaymentMethod: "cash",
		Amount:        decimal.RequireFromString(amount),
	})
	require.NoError(suite.T(), err)
	return id
}

func (suite *RepositoryTestSuite) TestCreateUser() {
	id := suite.createUser("ana")
	assert.Greater(suite.T(), id, int64(0))

	user, err := suite.repo.GetUserByUsername(suite.ctx, "ana")
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), "ana", user.Username)
	assert.Equal(suite.T(), id, user.ID)
}

func (suite *RepositoryTestSuite) TestDuplicateUsername() {
	suite.createUser("ana")

	_, err := suite.repo.CreateUser(suite.ctx, "ana", "other-hash")
	assert.ErrorIs(suite.T(), err, core.ErrDuplicateUser)
}

func (suite *RepositoryTestSuite) TestGetUnknownUser() {
	_, err := suite.repo.GetUserByUsername(suite.ctx, "nobody")
	assert.ErrorIs(suite.T(), err, core.ErrInvalidCredentials)
}

func (suite *RepositoryTestSuite) TestInsertAndGetMovement() {
	userID := suite.createUser("ana")
	id := suite.createMovement(userID, core.Income, "1500.75")

	m, err := suite.repo.GetMovement(suite.ctx, userID, id)
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), core.Income, m.Type)
	assert.True(suite.T(), m.Amount.Equal(decimal.RequireFromString("1500.75")),
		"expected 1500.75, got %s", m.Amount)
	assert.False(suite.T(), m.CreatedAt.IsZero())
	assert.Equal(suite.T(), int64(1), m.Version)
}

func (suite *RepositoryTestSuite) TestGetMovementScopedToOwner() {
	ana := suite.createUser("ana")
	bea := suite.createUser("bea")
	id := suite.createMovement(ana, core.Expense, "100")

	_, err := suite.repo.GetMovement(suite.ctx, bea, id)
	assert.ErrorIs(suite.T(), err, core.ErrMovementNotFound)
}

func (suite *RepositoryTestSuite) TestListMovementsMostRecentFirst() {
	userID := suite.createUser("ana")
	first := suite.createMovement(userID, core.Income, "10")
	second := suite.createMovement(userID, core.Expense, "20")
	third := suite.createMovement(userID, core.Income, "30")

	movements, err := suite.repo.ListMovements(suite.ctx, userID)
	require.NoError(suite.T(), err)
	require.Len(suite.T(), movements, 3)

	// Inserts within the same timestamp fall back to id ordering
	assert.Equal(suite.T(), third, movements[0].ID)
	assert.Equal(suite.T(), second, movements[1].ID)
	assert.Equal(suite.T(), first, movements[2].ID)
}

func (suite *RepositoryTestSuite) TestListMovementsOnlyOwn() {
	ana := suite.createUser("ana")
	bea := suite.createUser("bea")
	suite.createMovement(ana, core.Income, "10")
	suite.createMovement(bea, core.Income, "20")

	movements, err := suite.repo.ListMovements(suite.ctx, ana)
	require.NoError(suite.T(), err)
	assert.Len(suite.T(), movements, 1)
}

func (suite *RepositoryTestSuite) TestUpdateMovement() {
	userID := suite.createUser("ana")
	id := suite.createMovement(userID, core.Income, "10")

	version, changed, err := suite.repo.UpdateMovement(suite.ctx, userID, id, core.Movement{
		Type:          core.Expense,
		Description:   "corrected",
		PaymentMethod: "card",
		Amount:        decimal.RequireFromString("42.50"),
	})
	require.NoError(suite.T(), err)
	assert.True(suite.T(), changed)
	assert.Equal(suite.T(), int64(2), version)

	m, err := suite.repo.GetMovement(suite.ctx, userID, id)
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), core.Expense, m.Type)
	assert.Equal(suite.T(), "corrected", m.Description)
	assert.True(suite.T(), m.Amount.Equal(decimal.RequireFromString("42.50")))

	// The edit bumps the row version seen by the export worker
	pending, err := suite.repo.PendingSyncMovements(suite.ctx, 10)
	require.NoError(suite.T(), err)
	require.Len(suite.T(), pending, 1)
	assert.Equal(suite.T(), int64(2), pending[0].Version)
}

func (suite *RepositoryTestSuite) TestUpdateForeignMovementIsNoOp() {
	ana := suite.createUser("ana")
	bea := suite.createUser("bea")
	id := suite.createMovement(ana, core.Income, "10")

	version, changed, err := suite.repo.UpdateMovement(suite.ctx, bea, id, core.Movement{
		Type:          core.Expense,
		Description:   "hijacked",
		PaymentMethod: "card",
		Amount:        decimal.RequireFromString("1"),
	})
	require.NoError(suite.T(), err)
	assert.False(suite.T(), changed)
	assert.Zero(suite.T(), version)

	// Original row untouched
	m, err := suite.repo.GetMovement(suite.ctx, ana, id)
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), "test movement", m.Description)
	assert.Equal(suite.T(), core.Income, m.Type)
}

func (suite *RepositoryTestSuite) TestDeleteMovement() {
	userID := suite.createUser("ana")
	id := suite.createMovement(userID, core.Income, "10")

	removed, err := suite.repo.DeleteMovement(suite.ctx, userID, id)
	require.NoError(suite.T(), err)
	assert.True(suite.T(), removed)

	_, err = suite.repo.GetMovement(suite.ctx, userID, id)
	assert.ErrorIs(suite.T(), err, core.ErrMovementNotFound)
}

func (suite *RepositoryTestSuite) TestDeleteForeignMovementIsNoOp() {
	ana := suite.createUser("ana")
	bea := suite.createUser("bea")
	id := suite.createMovement(ana, core.Income, "10")

	removed, err := suite.repo.DeleteMovement(suite.ctx, bea, id)
	require.NoError(suite.T(), err)
	assert.False(suite.T(), removed)

	_, err = suite.repo.GetMovement(suite.ctx, ana, id)
	assert.NoError(suite.T(), err)
}

func (suite *RepositoryTestSuite) TestTotalsEmptyLedger() {
	userID := suite.createUser("ana")

	totals, err := suite.repo.Totals(suite.ctx, userID)
	require.NoError(suite.T(), err)
	assert.True(suite.T(), totals.TotalIncome.IsZero())
	assert.True(suite.T(), totals.TotalExpense.IsZero())
	assert.True(suite.T(), totals.Balance.IsZero())
}

func (suite *RepositoryTestSuite) TestTotals() {
	userID := suite.createUser("ana")
	suite.createMovement(userID, core.Income, "2000000")
	suite.createMovement(userID, core.Expense, "500000")
	suite.createMovement(userID, core.Expense, "0.10")

	totals, err := suite.repo.Totals(suite.ctx, userID)
	require.NoError(suite.T(), err)
	assert.True(suite.T(), totals.TotalIncome.Equal(decimal.RequireFromString("2000000")))
	assert.True(suite.T(), totals.TotalExpense.Equal(decimal.RequireFromString("500000.10")))
	assert.True(suite.T(), totals.Balance.Equal(totals.TotalIncome.Sub(totals.TotalExpense)))
}

func (suite *RepositoryTestSuite) TestSessionLifecycle() {
	userID := suite.createUser("ana")

	err := suite.repo.CreateSession(suite.ctx, "token-1", userID, time.Now().Add(time.Hour))
	require.NoError(suite.T(), err)

	info, err := suite.repo.GetSession(suite.ctx, "token-1")
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), userID, info.User.ID)

	err = suite.repo.DeleteSession(suite.ctx, "token-1")
	require.NoError(suite.T(), err)

	_, err = suite.repo.GetSession(suite.ctx, "token-1")
	assert.ErrorIs(suite.T(), err, core.ErrSessionNotFound)
}

func (suite *RepositoryTestSuite) TestExpiredSessionRejected() {
	userID := suite.createUser("ana")

	err := suite.repo.CreateSession(suite.ctx, "stale", userID, time.Now().Add(-time.Minute))
	require.NoError(suite.T(), err)

	_, err = suite.repo.GetSession(suite.ctx, "stale")
	assert.ErrorIs(suite.T(), err, core.ErrSessionNotFound)
}

func (suite *RepositoryTestSuite) TestRenewSession() {
	userID := suite.createUser("ana")

	err := suite.repo.CreateSession(suite.ctx, "token-1", userID, time.Now().Add(time.Minute))
	require.NoError(suite.T(), err)

	newExpiry := time.Now().Add(2 * time.Hour)
	err = suite.repo.RenewSession(suite.ctx, "token-1", newExpiry)
	require.NoError(suite.T(), err)

	info, err := suite.repo.GetSession(suite.ctx, "token-1")
	require.NoError(suite.T(), err)
	assert.WithinDuration(suite.T(), newExpiry, info.ExpiresAt, time.Second)
}

func (suite *RepositoryTestSuite) TestCleanExpiredSessions() {
	userID := suite.createUser("ana")

	require.NoError(suite.T(), suite.repo.CreateSession(suite.ctx, "live", userID, time.Now().Add(time.Hour)))
	require.NoError(suite.T(), suite.repo.CreateSession(suite.ctx, "dead", userID, time.Now().Add(-time.Hour)))

	n, err := suite.repo.CleanExpiredSessions(suite.ctx)
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), int64(1), n)

	_, err = suite.repo.GetSession(suite.ctx, "live")
	assert.NoError(suite.T(), err)
}

func (suite *RepositoryTestSuite) TestPendingSyncLifecycle() {
	userID := suite.createUser("ana")
	id := suite.createMovement(userID, core.Income, "10")

	pending, err := suite.repo.PendingSyncMovements(suite.ctx, 10)
	require.NoError(suite.T(), err)
	require.Len(suite.T(), pending, 1)
	assert.Equal(suite.T(), id, pending[0].ID)

	require.NoError(suite.T(), suite.repo.MarkSynced(suite.ctx, id))

	pending, err = suite.repo.PendingSyncMovements(suite.ctx, 10)
	require.NoError(suite.T(), err)
	assert.Empty(suite.T(), pending)

	// An update puts the row back into the pending set
	_, changed, err := suite.repo.UpdateMovement(suite.ctx, userID, id, core.Movement{
		Type:          core.Income,
		Description:   "edited",
		PaymentMethod: "cash",
		Amount:        decimal.RequireFromString("10"),
	})
	require.NoError(suite.T(), err)
	require.True(suite.T(), changed)

	pending, err = suite.repo.PendingSyncMovements(suite.ctx, 10)
	require.NoError(suite.T(), err)
	assert.Len(suite.T(), pending, 1)
}

func TestRepositoryTestSuite(t *testing.T) {
	suite.Run(t, new(RepositoryTestSuite))
}

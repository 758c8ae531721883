//go:build integration

package repositories

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/opsline-io/opsline-engine/pkg/access"
	"github.com/opsline-io/opsline-engine/pkg/apperrors"
	"github.com/opsline-io/opsline-engine/pkg/models"
	"github.com/opsline-io/opsline-engine/pkg/testhelpers"
)

// userTestContext holds test dependencies for user repository tests.
type userTestContext struct {
	t          *testing.T
	engineDB   *testhelpers.EngineDB
	repo       UserRepository
	clientRepo ClientRepository
	userID     uuid.UUID
	clientA    uuid.UUID
	clientB    uuid.UUID
}

// setupUserTest initializes the test context with the shared testcontainer.
func setupUserTest(t *testing.T) *userTestContext {
	engineDB := testhelpers.GetEngineDB(t)
	return &userTestContext{
		t:          t,
		engineDB:   engineDB,
		repo:       NewUserRepository(engineDB.DB),
		clientRepo: NewClientRepository(engineDB.DB),
		userID:     uuid.MustParse("00000000-0000-0000-0000-000000000101"),
		clientA:    uuid.MustParse("00000000-0000-0000-0000-000000000102"),
		clientB:    uuid.MustParse("00000000-0000-0000-0000-000000000103"),
	}
}

// cleanup removes all user and assignment rows so admin-count checks start
// from a known state.
func (tc *userTestContext) cleanup() {
	tc.t.Helper()
	ctx := context.Background()
	_, _ = tc.engineDB.DB.Exec(ctx, "DELETE FROM engine_client_assignments")
	_, _ = tc.engineDB.DB.Exec(ctx, "DELETE FROM engine_users")
	_, _ = tc.engineDB.DB.Exec(ctx, "DELETE FROM engine_clients WHERE id IN ($1, $2)", tc.clientA, tc.clientB)
}

// systemContext returns a context carrying an unrestricted scope.
func (tc *userTestContext) systemContext() context.Context {
	return access.SetScope(context.Background(), access.SystemScope())
}

// createTestClients provisions the two clients assignments reference.
func (tc *userTestContext) createTestClients(ctx context.Context) {
	tc.t.Helper()
	for i, id := range []uuid.UUID{tc.clientA, tc.clientB} {
		client := &models.Client{
			ID:   id,
			Name: "Assignment Test Client",
			Code: "UT-" + string(rune('A'+i)),
		}
		if err := tc.clientRepo.Create(ctx, client); err != nil {
			tc.t.Fatalf("failed to create test client: %v", err)
		}
	}
}

// createTestUser creates a user with the given role.
func (tc *userTestContext) createTestUser(ctx context.Context, id uuid.UUID, email, role string) *models.User {
	tc.t.Helper()
	user := &models.User{
		ID:     id,
		Email:  email,
		Name:   "Test User",
		Role:   role,
		Active: true,
	}
	if err := tc.repo.Create(ctx, user); err != nil {
		tc.t.Fatalf("failed to create test user: %v", err)
	}
	return user
}

// TestUserRepository_Create_Idempotent tests that Create upserts by ID.
func TestUserRepository_Create_Idempotent(t *testing.T) {
	tc := setupUserTest(t)
	tc.cleanup()
	ctx := tc.systemContext()

	tc.createTestUser(ctx, tc.userID, "idempotent@opsline.io", models.RoleLeader)

	// Second create with the same ID updates in place
	updated := &models.User{
		ID:     tc.userID,
		Email:  "idempotent@opsline.io",
		Name:   "Renamed User",
		Role:   models.RoleOperator,
		Active: true,
	}
	if err := tc.repo.Create(ctx, updated); err != nil {
		t.Fatalf("second Create failed: %v", err)
	}

	retrieved, err := tc.repo.Get(ctx, tc.userID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if retrieved.Role != models.RoleOperator {
		t.Errorf("expected role %q, got %q", models.RoleOperator, retrieved.Role)
	}
	if retrieved.Name != "Renamed User" {
		t.Errorf("expected name 'Renamed User', got %q", retrieved.Name)
	}
}

// TestUserRepository_Assign_FirstBecomesPrimary tests that the first active
// assignment is marked primary automatically.
func TestUserRepository_Assign_FirstBecomesPrimary(t *testing.T) {
	tc := setupUserTest(t)
	tc.cleanup()
	ctx := tc.systemContext()

	tc.createTestClients(ctx)
	tc.createTestUser(ctx, tc.userID, "primary@opsline.io", models.RoleLeader)

	err := tc.repo.Assign(ctx, &models.ClientAssignment{UserID: tc.userID, ClientID: tc.clientA})
	if err != nil {
		t.Fatalf("first Assign failed: %v", err)
	}

	err = tc.repo.Assign(ctx, &models.ClientAssignment{UserID: tc.userID, ClientID: tc.clientB})
	if err != nil {
		t.Fatalf("second Assign failed: %v", err)
	}

	assignments, err := tc.repo.ListAssignments(ctx, tc.userID)
	if err != nil {
		t.Fatalf("ListAssignments failed: %v", err)
	}
	if len(assignments) != 2 {
		t.Fatalf("expected 2 assignments, got %d", len(assignments))
	}

	// Primary sorts first
	if assignments[0].ClientID != tc.clientA || !assignments[0].IsPrimary {
		t.Errorf("expected first assignment to %s to be primary, got %+v", tc.clientA, assignments[0])
	}
	if assignments[1].IsPrimary {
		t.Errorf("expected second assignment to be non-primary, got %+v", assignments[1])
	}
}

// TestUserRepository_SetPrimary_MovesFlag tests that SetPrimary moves the
// primary flag between active assignments.
func TestUserRepository_SetPrimary_MovesFlag(t *testing.T) {
	tc := setupUserTest(t)
	tc.cleanup()
	ctx := tc.systemContext()

	tc.createTestClients(ctx)
	tc.createTestUser(ctx, tc.userID, "setprimary@opsline.io", models.RoleLeader)

	if err := tc.repo.Assign(ctx, &models.ClientAssignment{UserID: tc.userID, ClientID: tc.clientA}); err != nil {
		t.Fatalf("Assign A failed: %v", err)
	}
	if err := tc.repo.Assign(ctx, &models.ClientAssignment{UserID: tc.userID, ClientID: tc.clientB}); err != nil {
		t.Fatalf("Assign B failed: %v", err)
	}

	if err := tc.repo.SetPrimary(ctx, tc.userID, tc.clientB); err != nil {
		t.Fatalf("SetPrimary failed: %v", err)
	}

	ids, err := tc.repo.ActiveClientIDs(ctx, tc.userID)
	if err != nil {
		t.Fatalf("ActiveClientIDs failed: %v", err)
	}
	if len(ids) != 2 {
		t.Fatalf("expected 2 active client IDs, got %d", len(ids))
	}
	if ids[0] != tc.clientB {
		t.Errorf("expected primary client %s first, got %s", tc.clientB, ids[0])
	}
}

// TestUserRepository_SetPrimary_InactiveAssignment tests that SetPrimary on a
// missing assignment returns ErrNotFound.
func TestUserRepository_SetPrimary_InactiveAssignment(t *testing.T) {
	tc := setupUserTest(t)
	tc.cleanup()
	ctx := tc.systemContext()

	tc.createTestClients(ctx)
	tc.createTestUser(ctx, tc.userID, "noprimary@opsline.io", models.RoleLeader)

	err := tc.repo.SetPrimary(ctx, tc.userID, tc.clientA)
	if !errors.Is(err, apperrors.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

// TestUserRepository_Unassign_PrimaryWithOthers tests that unassigning the
// primary while other assignments remain active is rejected.
func TestUserRepository_Unassign_PrimaryWithOthers(t *testing.T) {
	tc := setupUserTest(t)
	tc.cleanup()
	ctx := tc.systemContext()

	tc.createTestClients(ctx)
	tc.createTestUser(ctx, tc.userID, "unassign@opsline.io", models.RoleLeader)

	if err := tc.repo.Assign(ctx, &models.ClientAssignment{UserID: tc.userID, ClientID: tc.clientA}); err != nil {
		t.Fatalf("Assign A failed: %v", err)
	}
	if err := tc.repo.Assign(ctx, &models.ClientAssignment{UserID: tc.userID, ClientID: tc.clientB}); err != nil {
		t.Fatalf("Assign B failed: %v", err)
	}

	// clientA is primary and clientB is still active
	err := tc.repo.Unassign(ctx, tc.userID, tc.clientA)
	if !errors.Is(err, apperrors.ErrPrimaryAssignment) {
		t.Errorf("expected ErrPrimaryAssignment, got %v", err)
	}

	// Removing the non-primary first, then the primary, succeeds
	if err := tc.repo.Unassign(ctx, tc.userID, tc.clientB); err != nil {
		t.Fatalf("Unassign B failed: %v", err)
	}
	if err := tc.repo.Unassign(ctx, tc.userID, tc.clientA); err != nil {
		t.Fatalf("Unassign A failed: %v", err)
	}

	ids, err := tc.repo.ActiveClientIDs(ctx, tc.userID)
	if err != nil {
		t.Fatalf("ActiveClientIDs failed: %v", err)
	}
	if len(ids) != 0 {
		t.Errorf("expected no active client IDs, got %d", len(ids))
	}
}

// TestUserRepository_Assign_ReactivatesPrevious tests that re-assigning a
// previously removed client reactivates the row.
func TestUserRepository_Assign_ReactivatesPrevious(t *testing.T) {
	tc := setupUserTest(t)
	tc.cleanup()
	ctx := tc.systemContext()

	tc.createTestClients(ctx)
	tc.createTestUser(ctx, tc.userID, "reactivate@opsline.io", models.RoleOperator)

	if err := tc.repo.Assign(ctx, &models.ClientAssignment{UserID: tc.userID, ClientID: tc.clientA}); err != nil {
		t.Fatalf("Assign failed: %v", err)
	}
	if err := tc.repo.Unassign(ctx, tc.userID, tc.clientA); err != nil {
		t.Fatalf("Unassign failed: %v", err)
	}
	if err := tc.repo.Assign(ctx, &models.ClientAssignment{UserID: tc.userID, ClientID: tc.clientA}); err != nil {
		t.Fatalf("re-Assign failed: %v", err)
	}

	ids, err := tc.repo.ActiveClientIDs(ctx, tc.userID)
	if err != nil {
		t.Fatalf("ActiveClientIDs failed: %v", err)
	}
	if len(ids) != 1 || ids[0] != tc.clientA {
		t.Errorf("expected [%s], got %v", tc.clientA, ids)
	}
}

// TestUserRepository_UpdateRole_LastAdmin tests that the last active admin
// cannot be demoted.
func TestUserRepository_UpdateRole_LastAdmin(t *testing.T) {
	tc := setupUserTest(t)
	tc.cleanup()
	ctx := tc.systemContext()

	tc.createTestUser(ctx, tc.userID, "lastadmin@opsline.io", models.RoleAdmin)

	err := tc.repo.UpdateRole(ctx, tc.userID, models.RoleLeader)
	if !errors.Is(err, apperrors.ErrLastAdmin) {
		t.Errorf("expected ErrLastAdmin, got %v", err)
	}

	// A second admin unblocks the demotion
	secondID := uuid.MustParse("00000000-0000-0000-0000-000000000104")
	tc.createTestUser(ctx, secondID, "secondadmin@opsline.io", models.RoleAdmin)

	if err := tc.repo.UpdateRole(ctx, tc.userID, models.RoleLeader); err != nil {
		t.Fatalf("UpdateRole with second admin failed: %v", err)
	}

	retrieved, err := tc.repo.Get(ctx, tc.userID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if retrieved.Role != models.RoleLeader {
		t.Errorf("expected role %q, got %q", models.RoleLeader, retrieved.Role)
	}
}

// TestUserRepository_Deactivate_LastAdmin tests that the last active admin
// cannot be deactivated.
func TestUserRepository_Deactivate_LastAdmin(t *testing.T) {
	tc := setupUserTest(t)
	tc.cleanup()
	ctx := tc.systemContext()

	tc.createTestUser(ctx, tc.userID, "deactivate@opsline.io", models.RoleAdmin)

	err := tc.repo.Deactivate(ctx, tc.userID)
	if !errors.Is(err, apperrors.ErrLastAdmin) {
		t.Errorf("expected ErrLastAdmin, got %v", err)
	}

	secondID := uuid.MustParse("00000000-0000-0000-0000-000000000105")
	tc.createTestUser(ctx, secondID, "stillhere@opsline.io", models.RoleAdmin)

	if err := tc.repo.Deactivate(ctx, tc.userID); err != nil {
		t.Fatalf("Deactivate with second admin failed: %v", err)
	}

	retrieved, err := tc.repo.Get(ctx, tc.userID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if retrieved.Active {
		t.Error("expected user to be inactive after Deactivate")
	}
}

// TestUserRepository_NoScope tests that operations fail without an access
// scope in the context.
func TestUserRepository_NoScope(t *testing.T) {
	tc := setupUserTest(t)
	tc.cleanup()

	ctx := context.Background()

	if _, err := tc.repo.Get(ctx, tc.userID); !errors.Is(err, access.ErrNoScope) {
		t.Errorf("expected ErrNoScope for Get, got %v", err)
	}
	if _, err := tc.repo.List(ctx); !errors.Is(err, access.ErrNoScope) {
		t.Errorf("expected ErrNoScope for List, got %v", err)
	}
	if err := tc.repo.Assign(ctx, &models.ClientAssignment{UserID: tc.userID, ClientID: tc.clientA}); !errors.Is(err, access.ErrNoScope) {
		t.Errorf("expected ErrNoScope for Assign, got %v", err)
	}
}

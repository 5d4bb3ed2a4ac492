package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/lawdesk/kioskd/internal/config"
	"github.com/lawdesk/kioskd/internal/directory"
	"github.com/lawdesk/kioskd/internal/quota"
	"github.com/lawdesk/kioskd/internal/session"
	"github.com/lawdesk/kioskd/internal/storage/memory"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testRoster = []directory.Member{
	{Registration: "MA123456", CPF: "123.456.789-00", Name: "Dr. João da Silva", Role: "primary"},
	{Registration: "MA654321", CPF: "987.654.321-00", Name: "Dra. Maria Oliveira", Role: "primary"},
	{Registration: "MA12345", CPF: "111.222.333-44", Name: "Dra. Ana Costa", Role: "assistant"},
}

var testRoles = map[string]config.RoleLimits{
	"primary":   {LimitMinutes: 180, Milestones: []int{30, 90, 120, 150, 170}},
	"assistant": {LimitMinutes: 120, Milestones: []int{30, 60, 90, 110}},
}

func newTestService(t *testing.T) (*Service, *session.TestClock) {
	t.Helper()

	logger := zerolog.Nop()
	clock := &session.TestClock{CurrentTime: time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)}

	store := memory.Open()
	t.Cleanup(func() { _ = store.Close() })

	ledger := quota.NewLedger(store.Quota(), quota.Policy{
		FreePagesPerDay: 20,
		PricePerPage:    decimal.RequireFromString("0.50"),
	}, logger)

	svc := New(
		directory.NewRoster(testRoster, logger),
		session.NewStore(clock, logger),
		ledger,
		store.PrintJobs(),
		testRoles,
		NewTokenService("test-secret", 4*time.Hour, clock),
		clock,
		logger,
	)
	return svc, clock
}

func login(t *testing.T, svc *Service, registration, cpf string) *LoginResult {
	t.Helper()

	result, err := svc.Authenticate(context.Background(), LoginRequest{
		Registration: registration,
		CPF:          cpf,
	})
	require.NoError(t, err)
	return result
}

func TestAuthenticate_Success(t *testing.T) {
	svc, _ := newTestService(t)

	result := login(t, svc, "MA123456", "123.456.789-00")

	assert.Equal(t, "Dr. João da Silva", result.Profile.Name)
	assert.Equal(t, "primary", result.Profile.Role)
	assert.Equal(t, 180, result.LimitMinutes)
	assert.NotEmpty(t, result.Token)

	claims, err := svc.ValidateToken(result.Token)
	require.NoError(t, err)
	assert.Equal(t, "MA123456", claims.Registration)
}

func TestAuthenticate_MissingFields(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Authenticate(context.Background(), LoginRequest{Registration: "MA123456"})

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, []string{"cpf"}, verr.Fields)
}

func TestAuthenticate_WrongCredentials(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Authenticate(context.Background(), LoginRequest{
		Registration: "MA123456",
		CPF:          "000.000.000-00",
	})
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.Authenticate(context.Background(), LoginRequest{
		Registration: "MA999999",
		CPF:          "123.456.789-00",
	})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestAuthenticate_RejectsSecondLogin(t *testing.T) {
	svc, _ := newTestService(t)

	login(t, svc, "MA123456", "123.456.789-00")

	_, err := svc.Authenticate(context.Background(), LoginRequest{
		Registration: "MA123456",
		CPF:          "123.456.789-00",
	})
	assert.ErrorIs(t, err, session.ErrAlreadyActive)
}

func TestAuthenticate_ReplacesExpiredSession(t *testing.T) {
	svc, clock := newTestService(t)

	login(t, svc, "MA123456", "123.456.789-00")
	clock.Advance(181 * time.Minute)

	result := login(t, svc, "MA123456", "123.456.789-00")
	assert.Equal(t, clock.Now(), result.StartedAt)
}

func TestStatus_ElapsedAndRemaining(t *testing.T) {
	svc, clock := newTestService(t)
	login(t, svc, "MA123456", "123.456.789-00")

	clock.Advance(65*time.Minute + 30*time.Second)

	status, err := svc.Status(context.Background(), "MA123456")
	require.NoError(t, err)

	assert.Equal(t, "1:05:30", status.Elapsed)
	assert.Equal(t, "1:54:30", status.Remaining)
	assert.False(t, status.ForcedLogout)
	assert.Equal(t, "Dr. João da Silva", status.Name)
}

func TestStatus_NoSession(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Status(context.Background(), "MA123456")
	assert.ErrorIs(t, err, session.ErrNoSession)
}

func TestStatus_MilestoneFiresOnce(t *testing.T) {
	svc, clock := newTestService(t)
	login(t, svc, "MA123456", "123.456.789-00")

	clock.Advance(31 * time.Minute)

	status, err := svc.Status(context.Background(), "MA123456")
	require.NoError(t, err)
	assert.Equal(t, "~150 minutes remain", status.Notification)

	status, err = svc.Status(context.Background(), "MA123456")
	require.NoError(t, err)
	assert.Empty(t, status.Notification)
}

func TestStatus_ForcedLogoutEvictsSession(t *testing.T) {
	svc, clock := newTestService(t)
	login(t, svc, "MA12345", "111.222.333-44")

	clock.Advance(125 * time.Minute)

	status, err := svc.Status(context.Background(), "MA12345")
	require.NoError(t, err)
	assert.True(t, status.ForcedLogout)
	assert.Equal(t, "0:00:00", status.Remaining)

	// Eviction makes the next poll a miss and frees the slot for a
	// fresh login.
	_, err = svc.Status(context.Background(), "MA12345")
	assert.ErrorIs(t, err, session.ErrNoSession)

	login(t, svc, "MA12345", "111.222.333-44")
}

func TestPrint_SplitsAcrossQuotaBoundary(t *testing.T) {
	svc, _ := newTestService(t)
	login(t, svc, "MA123456", "123.456.789-00")

	ctx := context.Background()

	receipt, err := svc.Print(ctx, "MA123456", 15)
	require.NoError(t, err)
	assert.Equal(t, int64(15), receipt.Free)
	assert.Equal(t, int64(0), receipt.Billed)
	assert.Equal(t, "0.00", receipt.CostString())

	receipt, err = svc.Print(ctx, "MA123456", 10)
	require.NoError(t, err)
	assert.Equal(t, int64(5), receipt.Free)
	assert.Equal(t, int64(5), receipt.Billed)
	assert.Equal(t, "2.50", receipt.CostString())
}

func TestPrint_RequiresSession(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Print(context.Background(), "MA123456", 3)
	assert.ErrorIs(t, err, session.ErrNoSession)
}

func TestPrint_ExpiredSessionIsEvicted(t *testing.T) {
	svc, clock := newTestService(t)
	login(t, svc, "MA123456", "123.456.789-00")

	clock.Advance(181 * time.Minute)

	_, err := svc.Print(context.Background(), "MA123456", 3)
	assert.ErrorIs(t, err, session.ErrNoSession)

	_, err = svc.Status(context.Background(), "MA123456")
	assert.ErrorIs(t, err, session.ErrNoSession)
}

func TestPrint_RejectsNegativePages(t *testing.T) {
	svc, _ := newTestService(t)
	login(t, svc, "MA123456", "123.456.789-00")

	_, err := svc.Print(context.Background(), "MA123456", -1)
	assert.ErrorIs(t, err, quota.ErrInvalidRequest)
}

func TestPrint_ZeroPagesIsNoOp(t *testing.T) {
	svc, _ := newTestService(t)
	login(t, svc, "MA123456", "123.456.789-00")

	receipt, err := svc.Print(context.Background(), "MA123456", 0)
	require.NoError(t, err)
	assert.Equal(t, int64(0), receipt.Requested)

	// The full free allowance must still be available.
	receipt, err = svc.Print(context.Background(), "MA123456", 20)
	require.NoError(t, err)
	assert.Equal(t, int64(20), receipt.Free)
}

func TestPrint_RecordsAuditJob(t *testing.T) {
	svc, clock := newTestService(t)
	login(t, svc, "MA123456", "123.456.789-00")

	ctx := context.Background()

	_, err := svc.Print(ctx, "MA123456", 25)
	require.NoError(t, err)

	date := clock.Now().Format("2006-01-02")
	jobs, err := svc.printJobs.ListByDate(ctx, date)
	require.NoError(t, err)
	require.Len(t, jobs, 1)

	job := jobs[0]
	assert.Equal(t, "MA123456", job.Registration)
	assert.Equal(t, int64(25), job.Requested)
	assert.Equal(t, int64(20), job.Free)
	assert.Equal(t, int64(5), job.Billed)
	assert.Equal(t, "2.50", job.Cost)
	assert.NotEmpty(t, job.ID)
}

func TestTerminate_IsIdempotent(t *testing.T) {
	svc, _ := newTestService(t)
	login(t, svc, "MA123456", "123.456.789-00")

	ctx := context.Background()

	svc.Terminate(ctx, "MA123456")
	svc.Terminate(ctx, "MA123456")
	svc.Terminate(ctx, "MA999999")

	_, err := svc.Status(ctx, "MA123456")
	assert.ErrorIs(t, err, session.ErrNoSession)
}

func TestTerminate_AllowsImmediateRelogin(t *testing.T) {
	svc, _ := newTestService(t)
	login(t, svc, "MA123456", "123.456.789-00")

	svc.Terminate(context.Background(), "MA123456")

	login(t, svc, "MA123456", "123.456.789-00")
}

func TestQuotaPersistsAcrossSessions(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	login(t, svc, "MA123456", "123.456.789-00")
	_, err := svc.Print(ctx, "MA123456", 18)
	require.NoError(t, err)
	svc.Terminate(ctx, "MA123456")

	login(t, svc, "MA123456", "123.456.789-00")
	receipt, err := svc.Print(ctx, "MA123456", 10)
	require.NoError(t, err)

	assert.Equal(t, int64(2), receipt.Free)
	assert.Equal(t, int64(8), receipt.Billed)
	assert.Equal(t, "4.00", receipt.CostString())
}

func TestValidateToken_RejectsGarbage(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.ValidateToken("not-a-token")
	assert.True(t, errors.Is(err, ErrInvalidToken))
}

package otp

import (
	"bytes"
	"context"
	"errors"
	"regexp"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-api-authcore/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var (
	t0         = time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)
	sixDigitRe = regexp.MustCompile(`^[0-9]{6}$`)
)

type fixture struct {
	svc    Service
	store  *memStore
	clock  *fakeClock
	mailer *mockMailer
	sms    *mockSMS
}

func newFixture(random []byte) *fixture {
	f := &fixture{
		store:  &memStore{},
		clock:  &fakeClock{now: t0},
		mailer: new(mockMailer),
		sms:    new(mockSMS),
	}
	deps := ServiceDeps{
		Store:  f.store,
		Mailer: f.mailer,
		SMS:    f.sms,
		Now:    f.clock.Now,
	}
	if random != nil {
		deps.Random = bytes.NewReader(random)
	}
	f.svc = NewService(deps)
	return f
}

func TestRequestCode_EmailContact_SendsEmailOnly(t *testing.T) {
	f := newFixture(nil)
	f.mailer.On("SendOTPEmail", mock.Anything, "user@x.com", mock.AnythingOfType("string"), domain.PurposeLogin).Return(nil)

	code, err := f.svc.RequestCode(context.Background(), "user@x.com", domain.PurposeLogin)
	require.NoError(t, err)
	assert.Regexp(t, sixDigitRe, code)
	f.mailer.AssertExpectations(t)
	f.sms.AssertNotCalled(t, "SendOTPSMS", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestRequestCode_PhoneContact_SendsSMSOnly(t *testing.T) {
	f := newFixture(nil)
	f.sms.On("SendOTPSMS", mock.Anything, "+52 55 1234 5678", mock.AnythingOfType("string"), domain.PurposeLoginUser).Return(nil)

	_, err := f.svc.RequestCode(context.Background(), "+52 55 1234 5678", domain.PurposeLoginUser)
	require.NoError(t, err)
	f.sms.AssertExpectations(t)
	f.mailer.AssertNotCalled(t, "SendOTPEmail", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestRequestCode_EmailCaseDoesNotSplitScope(t *testing.T) {
	f := newFixture(nil)
	f.mailer.On("SendOTPEmail", mock.Anything, "jane@b.com", mock.AnythingOfType("string"), domain.PurposeLogin).Return(nil)

	code, err := f.svc.RequestCode(context.Background(), "Jane@B.com", domain.PurposeLogin)
	require.NoError(t, err)
	assert.Equal(t, 1, f.store.live("jane@b.com", domain.PurposeLogin, t0))
	assert.True(t, f.svc.VerifyCode(context.Background(), "JANE@b.com", code, domain.PurposeLogin))
	f.mailer.AssertExpectations(t)
}

func TestRequestCode_InvalidContact(t *testing.T) {
	f := newFixture(nil)

	_, err := f.svc.RequestCode(context.Background(), "not a contact", domain.PurposeLogin)
	assert.ErrorIs(t, err, domain.ErrInvalidContactFormat)
	assert.Equal(t, 0, f.store.len())
	f.mailer.AssertNotCalled(t, "SendOTPEmail", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestRequestCode_LeadingZerosKept(t *testing.T) {
	f := newFixture([]byte{0, 10, 251, 1, 2, 3, 4, 5, 6})
	f.mailer.On("SendOTPEmail", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)

	code, err := f.svc.RequestCode(context.Background(), "user@x.com", domain.PurposeLogin)
	require.NoError(t, err)
	assert.Equal(t, "001234", code)
}

func TestRequestCode_DeliveryFailure_CodeStaysValid(t *testing.T) {
	f := newFixture(nil)
	f.mailer.On("SendOTPEmail", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(errors.New("smtp down"))

	code, err := f.svc.RequestCode(context.Background(), "user@x.com", domain.PurposeLogin)
	require.ErrorIs(t, err, domain.ErrDeliveryFailure)
	assert.ErrorContains(t, err, "smtp down")
	require.Regexp(t, sixDigitRe, code)

	assert.True(t, f.svc.VerifyCode(context.Background(), "user@x.com", code, domain.PurposeLogin))
}

func TestRequestCode_MissingSMSChannel(t *testing.T) {
	store := &memStore{}
	svc := NewService(ServiceDeps{Store: store, Mailer: new(mockMailer), Now: (&fakeClock{now: t0}).Now})

	code, err := svc.RequestCode(context.Background(), "555-0100", domain.PurposeLogin)
	require.ErrorIs(t, err, domain.ErrDeliveryFailure)
	assert.Regexp(t, sixDigitRe, code)
	assert.Equal(t, 1, store.len())
}

func TestRequestCode_DeliveryRunsUnderTimeout(t *testing.T) {
	f := newFixture(nil)
	f.mailer.On("SendOTPEmail", mock.MatchedBy(func(ctx context.Context) bool {
		_, ok := ctx.Deadline()
		return ok
	}), mock.Anything, mock.Anything, mock.Anything).Return(nil)

	_, err := f.svc.RequestCode(context.Background(), "user@x.com", domain.PurposeLogin)
	require.NoError(t, err)
	f.mailer.AssertExpectations(t)
}

func TestRequestCode_SecondRequestInvalidatesFirst(t *testing.T) {
	f := newFixture(nil)
	f.mailer.On("SendOTPEmail", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	ctx := context.Background()

	first, err := f.svc.RequestCode(ctx, "user@x.com", domain.PurposeLogin)
	require.NoError(t, err)
	second, err := f.svc.RequestCode(ctx, "user@x.com", domain.PurposeLogin)
	require.NoError(t, err)
	assert.Regexp(t, sixDigitRe, first)

	if first != second {
		assert.False(t, f.svc.VerifyCode(ctx, "user@x.com", first, domain.PurposeLogin))
	}
	assert.True(t, f.svc.VerifyCode(ctx, "user@x.com", second, domain.PurposeLogin))
	assert.False(t, f.svc.VerifyCode(ctx, "user@x.com", second, domain.PurposeLogin))
}

func TestRequestCode_PurposesDoNotCrossValidate(t *testing.T) {
	f := newFixture(nil)
	f.mailer.On("SendOTPEmail", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	ctx := context.Background()

	code, err := f.svc.RequestCode(ctx, "user@x.com", domain.PurposeLogin)
	require.NoError(t, err)

	assert.False(t, f.svc.VerifyCode(ctx, "user@x.com", code, domain.PurposeResetPassword))
	assert.False(t, f.svc.VerifyCode(ctx, "other@x.com", code, domain.PurposeLogin))
	assert.True(t, f.svc.VerifyCode(ctx, "user@x.com", code, domain.PurposeLogin))
}

func TestVerifyCode_ExpiryIsStrict(t *testing.T) {
	f := newFixture(nil)
	f.mailer.On("SendOTPEmail", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	ctx := context.Background()

	code, err := f.svc.RequestCode(ctx, "user@x.com", domain.PurposeLogin)
	require.NoError(t, err)

	f.clock.Set(t0.Add(CodeTTL))
	assert.False(t, f.svc.VerifyCode(ctx, "user@x.com", code, domain.PurposeLogin))
}

func TestVerifyCode_JustBeforeExpiry(t *testing.T) {
	f := newFixture(nil)
	f.mailer.On("SendOTPEmail", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	ctx := context.Background()

	code, err := f.svc.RequestCode(ctx, "user@x.com", domain.PurposeLogin)
	require.NoError(t, err)

	f.clock.Set(t0.Add(CodeTTL - time.Millisecond))
	assert.True(t, f.svc.VerifyCode(ctx, "user@x.com", code, domain.PurposeLogin))
}

func TestVerifyCode_EmptyFields(t *testing.T) {
	f := newFixture(nil)
	ctx := context.Background()
	assert.False(t, f.svc.VerifyCode(ctx, "", "123456", domain.PurposeLogin))
	assert.False(t, f.svc.VerifyCode(ctx, "user@x.com", "", domain.PurposeLogin))
	assert.False(t, f.svc.VerifyCode(ctx, "user@x.com", "123456", ""))
}

type failingStore struct{ memStore }

func (*failingStore) Consume(context.Context, string, string, string, time.Time) (bool, error) {
	return false, errors.New("store unavailable")
}

func TestVerifyCode_StoreError_IsFalse(t *testing.T) {
	svc := NewService(ServiceDeps{Store: &failingStore{}})
	assert.False(t, svc.VerifyCode(context.Background(), "user@x.com", "123456", domain.PurposeLogin))
}

func TestConcurrentRequests_LeaveOneLiveCode(t *testing.T) {
	f := newFixture(nil)
	f.mailer.On("SendOTPEmail", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)

	var wg sync.WaitGroup
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = f.svc.RequestCode(context.Background(), "user@x.com", domain.PurposeLogin)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, f.store.live("user@x.com", domain.PurposeLogin, t0))
}

func TestConcurrentVerify_SucceedsOnce(t *testing.T) {
	f := newFixture(nil)
	f.mailer.On("SendOTPEmail", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	code, err := f.svc.RequestCode(context.Background(), "user@x.com", domain.PurposeLogin)
	require.NoError(t, err)

	var wins atomic.Int32
	var wg sync.WaitGroup
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if f.svc.VerifyCode(context.Background(), "user@x.com", code, domain.PurposeLogin) {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), wins.Load())
}

func TestCleanupExpired_DeletesOnlyPastExpiry(t *testing.T) {
	f := newFixture(nil)
	f.store.codes = []domain.OneTimeCode{
		{CodeID: "a", Contact: "u@x.io", Purpose: "P", ExpiresAt: t0.Add(-time.Minute), Used: false},
		{CodeID: "b", Contact: "u@x.io", Purpose: "P", ExpiresAt: t0.Add(-time.Second), Used: true},
		{CodeID: "c", Contact: "u@x.io", Purpose: "Q", ExpiresAt: t0.Add(time.Minute), Used: true},
		{CodeID: "d", Contact: "v@x.io", Purpose: "P", ExpiresAt: t0.Add(time.Minute), Used: false},
	}

	n, err := f.svc.CleanupExpired(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	var left []string
	for _, c := range f.store.codes {
		left = append(left, c.CodeID)
	}
	assert.Equal(t, []string{"c", "d"}, left)
}

func TestDigits_RejectsBiasedBytes(t *testing.T) {
	got, err := digits(bytes.NewReader([]byte{250, 255, 9, 19, 249, 0, 1, 2}), 6)
	require.NoError(t, err)
	assert.Equal(t, "999012", got)
}

func TestDigits_ShortReader(t *testing.T) {
	_, err := digits(bytes.NewReader([]byte{1, 2}), 6)
	assert.Error(t, err)
}

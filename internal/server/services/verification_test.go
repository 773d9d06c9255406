package services

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"testing"
	"time"

	"github.com/dmitrijs2005/exposurekeys/internal/common"
	"github.com/dmitrijs2005/exposurekeys/internal/logging"
	"github.com/dmitrijs2005/exposurekeys/internal/server/auth"
	"github.com/dmitrijs2005/exposurekeys/internal/timex"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2020, 5, 20, 12, 0, 0, 0, time.UTC)

func newVerification(t *testing.T) (*VerificationService, *memStore) {
	t.Helper()
	db, _ := newMockDB(t)
	st := newMemStore()
	s := NewVerificationService(db, fakeManager{st}, testConfig(), logging.Discard())
	s.now = func() time.Time { return testNow }
	return s, st
}

func TestRandomCode_IsEightDigits(t *testing.T) {
	for i := 0; i < 20; i++ {
		c, err := randomCode()
		require.NoError(t, err)
		assert.Regexp(t, regexp.MustCompile(`^\d{8}$`), c)
	}
}

func TestIssue(t *testing.T) {
	onset := testNow.Add(-3 * 24 * time.Hour)
	future := testNow.Add(48 * time.Hour)
	old := testNow.Add(-30 * 24 * time.Hour)

	tests := []struct {
		name     string
		testType string
		date     *time.Time
		wantErr  error
	}{
		{name: "confirmed without date", testType: "confirmed"},
		{name: "likely with date", testType: "likely", date: &onset},
		{name: "likely without date", testType: "likely", wantErr: ErrMissingDate},
		{name: "unknown type", testType: "negative", wantErr: ErrUnsupportedTestType},
		{name: "revoked is not issuable", testType: "revoked", wantErr: ErrUnsupportedTestType},
		{name: "future date", testType: "confirmed", date: &future, wantErr: ErrInvalidDate},
		{name: "stale date", testType: "confirmed", date: &old, wantErr: ErrInvalidDate},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, st := newVerification(t)

			vc, err := s.Issue(context.Background(), tt.testType, tt.date)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.Empty(t, st.codes)
				return
			}
			require.NoError(t, err)
			assert.Len(t, vc.Code, CodeLength)
			assert.Equal(t, tt.testType, vc.TestType)
			assert.Equal(t, testNow.Add(time.Hour), vc.ExpiresAt)
			if tt.date != nil {
				require.NotNil(t, vc.SymptomDate)
				assert.Equal(t, timex.TruncateDay(*tt.date), *vc.SymptomDate)
			}
			assert.Contains(t, st.codes, vc.Code)
		})
	}
}

func TestIssue_RetriesOnCollision(t *testing.T) {
	s, st := newVerification(t)
	st.codes["11111111"] = nil

	seq := []string{"11111111", "22222222"}
	s.newCode = func() (string, error) {
		c := seq[0]
		seq = seq[1:]
		return c, nil
	}

	vc, err := s.Issue(context.Background(), "confirmed", nil)
	require.NoError(t, err)
	assert.Equal(t, "22222222", vc.Code)
}

func TestIssue_GivesUpAfterRepeatedCollisions(t *testing.T) {
	s, st := newVerification(t)
	st.codes["11111111"] = nil
	s.newCode = func() (string, error) { return "11111111", nil }

	_, err := s.Issue(context.Background(), "confirmed", nil)
	require.ErrorIs(t, err, common.ErrorConflict)
}

func TestIssue_CodeGeneratorFailure(t *testing.T) {
	s, _ := newVerification(t)
	s.newCode = func() (string, error) { return "", errors.New("no entropy") }

	_, err := s.Issue(context.Background(), "confirmed", nil)
	require.ErrorIs(t, err, common.ErrorInternal)
}

func TestVerify(t *testing.T) {
	s, _ := newVerification(t)
	db, mock := newMockDB(t)
	s.db = db

	onset := testNow.Add(-2 * 24 * time.Hour)
	vc, err := s.Issue(context.Background(), "likely", &onset)
	require.NoError(t, err)

	mock.ExpectBegin()
	mock.ExpectCommit()
	got, err := s.Verify(context.Background(), vc.Code, []string{"confirmed", "likely"})
	require.NoError(t, err)
	assert.Equal(t, "likely", got.TestType)
	assert.Equal(t, "2020-05-18", got.SymptomDate)

	claims, err := auth.ParseToken(got.Token, []byte("secret"))
	require.NoError(t, err)
	assert.Equal(t, vc.ID, claims.Subject)
	assert.Equal(t, "2020-05-18", claims.SymptomDate)

	mock.ExpectBegin()
	mock.ExpectRollback()
	_, err = s.Verify(context.Background(), vc.Code, nil)
	require.ErrorIs(t, err, ErrCodeAlreadyUsed)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestVerify_Refusals(t *testing.T) {
	tests := []struct {
		name    string
		code    string
		accept  []string
		advance time.Duration
		wantErr error
	}{
		{name: "unknown code", code: "00000000", wantErr: ErrCodeNotFound},
		{name: "expired", advance: 2 * time.Hour, wantErr: ErrCodeExpired},
		{name: "expires exactly now", advance: time.Hour, wantErr: ErrCodeExpired},
		{name: "type not accepted", accept: []string{"likely"}, wantErr: ErrUnsupportedTestType},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, st := newVerification(t)
			db, mock := newMockDB(t)
			s.db = db

			vc, err := s.Issue(context.Background(), "confirmed", nil)
			require.NoError(t, err)
			s.now = func() time.Time { return testNow.Add(tt.advance) }

			code := tt.code
			if code == "" {
				code = vc.Code
			}

			mock.ExpectBegin()
			mock.ExpectRollback()
			_, err = s.Verify(context.Background(), code, tt.accept)
			require.ErrorIs(t, err, tt.wantErr)
			assert.False(t, st.codes[vc.Code].Claimed)
			require.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestVerify_BeginFails(t *testing.T) {
	s, _ := newVerification(t)
	db, mock := newMockDB(t)
	s.db = db

	mock.ExpectBegin().WillReturnError(errors.New("db down"))
	_, err := s.Verify(context.Background(), "12345678", nil)
	require.ErrorContains(t, err, "db down")
}

func TestCertify(t *testing.T) {
	s, _ := newVerification(t)
	mac := "zQe2u4tmKd8s2Pn+hJ6Ec2A5Bv5m6ej0N0cB2xX2t8w="

	token, _, err := auth.GenerateToken("code-id", "confirmed", "2020-05-18", []byte("secret"), time.Hour)
	require.NoError(t, err)

	cert, err := s.Certify(context.Background(), token, mac)
	require.NoError(t, err)

	claims, err := auth.ParseCertificate(cert, []byte("secret"))
	require.NoError(t, err)
	assert.Equal(t, mac, claims.KeySetHMAC)
	assert.Equal(t, "confirmed", claims.TestType)
	assert.Equal(t, timex.IntervalNumber(time.Date(2020, 5, 18, 0, 0, 0, 0, time.UTC)), claims.SymptomOnsetInterval)
}

func TestCertify_Refusals(t *testing.T) {
	s, _ := newVerification(t)
	good := "zQe2u4tmKd8s2Pn+hJ6Ec2A5Bv5m6ej0N0cB2xX2t8w="

	valid, _, err := auth.GenerateToken("id", "confirmed", "", []byte("secret"), time.Hour)
	require.NoError(t, err)
	expired, _, err := auth.GenerateToken("id", "confirmed", "", []byte("secret"), -time.Minute)
	require.NoError(t, err)
	cert, err := auth.GenerateCertificate("id", "confirmed", 0, good, []byte("secret"), time.Hour)
	require.NoError(t, err)

	tests := []struct {
		token, mac string
		wantErr    error
	}{
		{valid, "not base64!", ErrInvalidHMAC},
		{valid, "c2hvcnQ=", ErrInvalidHMAC},
		{expired, good, common.ErrTokenExpired},
		{cert, good, common.ErrInvalidToken},
		{"garbage", good, common.ErrInvalidToken},
	}
	for i, tt := range tests {
		t.Run(fmt.Sprint(i), func(t *testing.T) {
			_, err := s.Certify(context.Background(), tt.token, tt.mac)
			require.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestCleanup(t *testing.T) {
	s, st := newVerification(t)

	_, err := s.Issue(context.Background(), "confirmed", nil)
	require.NoError(t, err)

	n, err := s.Cleanup(context.Background(), 0)
	require.NoError(t, err)
	assert.Zero(t, n)

	s.now = func() time.Time { return testNow.Add(3 * time.Hour) }
	n, err = s.Cleanup(context.Background(), time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Empty(t, st.codes)
}

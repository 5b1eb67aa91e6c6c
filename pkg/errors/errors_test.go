// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Strata Contributors

package errors_test

import (
	stderrors "errors"
	"fmt"
	"testing"

	strataerr "github.com/strata-dev/strata/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ---------------------------------------------------------------------------
// New / Errorf
// ---------------------------------------------------------------------------

func TestNewIncludesCodeAndFields(t *testing.T) {
	err := strataerr.New(
		strataerr.CodeStoreReadingInsertConflict,
		"reading already exists",
		strataerr.FieldSensorID(7),
		strataerr.Field("timestamp", "2026-01-02T03:04:05Z"),
	)

	require.Error(t, err)
	assert.Equal(t, strataerr.CodeStoreReadingInsertConflict, strataerr.CodeOf(err))
	assert.True(t, strataerr.HasCode(err, strataerr.CodeStoreReadingInsertConflict))

	fields := strataerr.FieldsOf(err)
	assert.Equal(t, int64(7), fields["sensor_id"])
	assert.Equal(t, "2026-01-02T03:04:05Z", fields["timestamp"])
}

func TestErrorfWrapsInnerError(t *testing.T) {
	inner := stderrors.New("disk full")
	err := strataerr.Errorf(strataerr.CodeStoreDatabaseFailure, "write failed: %w", inner)
	require.Error(t, err)
	assert.ErrorIs(t, err, inner)
	assert.Equal(t, strataerr.CodeStoreDatabaseFailure, strataerr.CodeOf(err))
	assert.Contains(t, err.Error(), "write failed")
}

// ---------------------------------------------------------------------------
// Wrap / Wrapf
// ---------------------------------------------------------------------------

func TestWrapPreservesWrappedErrorAndCode(t *testing.T) {
	root := stderrors.New("connection refused")
	err := strataerr.Wrap(root, strataerr.CodeStoreConnectionUnavailable, "opening store",
		strataerr.FieldBackend("postgres"),
	)

	require.Error(t, err)
	assert.ErrorIs(t, err, root)
	assert.True(t, strataerr.IsUnavailable(err))
	assert.Equal(t, "postgres", strataerr.FieldsOf(err)["backend"])
}

func TestWrapNilReturnsNil(t *testing.T) {
	assert.NoError(t, strataerr.Wrap(nil, strataerr.CodeCLIInternalFailure, "ignored"))
	assert.NoError(t, strataerr.Wrapf(nil, strataerr.CodeCLIInternalFailure, "ignored %s", "arg"))
}

func TestWrapKeepsDeepestCode(t *testing.T) {
	conflict := strataerr.New(strataerr.CodeStoreReadingInsertConflict, "duplicate")
	err := strataerr.Wrap(conflict, strataerr.CodeCLIInternalFailure, "inserting reading")

	assert.True(t, strataerr.IsConflict(err))
}

func TestCodeOfSurvivesFmtWrapping(t *testing.T) {
	base := strataerr.New(strataerr.CodeVectorDimensionMismatch, "dimension mismatch")
	err := fmt.Errorf("vector-add: %w", base)

	assert.Equal(t, strataerr.CodeVectorDimensionMismatch, strataerr.CodeOf(err))
}

func TestCodeOfPlainError(t *testing.T) {
	assert.Equal(t, strataerr.Code(""), strataerr.CodeOf(stderrors.New("plain")))
	assert.Equal(t, strataerr.Code(""), strataerr.CodeOf(nil))
}

// ---------------------------------------------------------------------------
// With
// ---------------------------------------------------------------------------

func TestWithAddsContextWithoutChangingCode(t *testing.T) {
	base := strataerr.New(strataerr.CodeVectorAddFailure, "engine rejected vector")
	withCtx := strataerr.With(base, strataerr.FieldVectorID(42))

	require.Error(t, withCtx)
	assert.Equal(t, strataerr.CodeVectorAddFailure, strataerr.CodeOf(withCtx))
	assert.Equal(t, int64(42), strataerr.FieldsOf(withCtx)["vector_id"])
}

// ---------------------------------------------------------------------------
// Predicates, Classify and ExitCode
// ---------------------------------------------------------------------------

func TestPredicates(t *testing.T) {
	tests := []struct {
		code  strataerr.Code
		check func(error) bool
	}{
		{strataerr.CodeStoreReadingInsertConflict, strataerr.IsConflict},
		{strataerr.CodeIngestInputInvalid, strataerr.IsInvalidInput},
		{strataerr.CodeCLIInputInvalid, strataerr.IsInvalidInput},
		{strataerr.CodeConfigValidateInvalidValue, strataerr.IsInvalidInput},
		{strataerr.CodeStoreConnectionUnavailable, strataerr.IsUnavailable},
		{strataerr.CodeSchedulerAlreadyRunning, strataerr.IsAlreadyRunning},
		{strataerr.CodeSecretNotFound, strataerr.IsNotFound},
		{strataerr.CodeStoreBucketMergeFailure, strataerr.IsDatabaseFailure},
		{strataerr.CodeVectorSearchFailure, strataerr.IsVector},
	}

	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			assert.True(t, tt.check(strataerr.New(tt.code, "boom")))
		})
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want strataerr.Class
	}{
		{"nil", nil, strataerr.ClassNone},
		{"unavailable", strataerr.New(strataerr.CodeStoreConnectionUnavailable, "x"), strataerr.ClassRetryable},
		{"already running", strataerr.New(strataerr.CodeSchedulerAlreadyRunning, "x"), strataerr.ClassRetryable},
		{"merge failure", strataerr.New(strataerr.CodeStoreBucketMergeFailure, "x"), strataerr.ClassRetryable},
		{"handle invalidated", strataerr.New(strataerr.CodeVectorHandleInvalidated, "x"), strataerr.ClassRetryable},
		{"config", strataerr.New(strataerr.CodeConfigLoadReadFailure, "x"), strataerr.ClassFatal},
		{"vector init", strataerr.New(strataerr.CodeVectorInitFailure, "x"), strataerr.ClassFatal},
		{"launch", strataerr.New(strataerr.CodeDaemonLaunchFailure, "x"), strataerr.ClassFatal},
		{"conflict", strataerr.New(strataerr.CodeStoreReadingInsertConflict, "x"), strataerr.ClassPermanent},
		{"dimension", strataerr.New(strataerr.CodeVectorDimensionMismatch, "x"), strataerr.ClassPermanent},
		{"plain", stderrors.New("x"), strataerr.ClassPermanent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, strataerr.Classify(tt.err), "class %s", strataerr.Classify(tt.err))
		})
	}
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, strataerr.ExitOK, strataerr.ExitCode(nil))
	assert.Equal(t, strataerr.ExitInvalidInput, strataerr.ExitCode(strataerr.New(strataerr.CodeCLIInputInvalid, "x")))
	assert.Equal(t, strataerr.ExitInvalidInput, strataerr.ExitCode(strataerr.New(strataerr.CodeVectorInputInvalid, "x")))
	assert.Equal(t, strataerr.ExitConflict, strataerr.ExitCode(strataerr.New(strataerr.CodeStoreReadingInsertConflict, "x")))
	assert.Equal(t, strataerr.ExitUnavailable, strataerr.ExitCode(strataerr.New(strataerr.CodeStoreConnectionUnavailable, "x")))
	assert.Equal(t, strataerr.ExitAlreadyRunning, strataerr.ExitCode(strataerr.New(strataerr.CodeSchedulerAlreadyRunning, "x")))
	assert.Equal(t, strataerr.ExitVector, strataerr.ExitCode(strataerr.New(strataerr.CodeVectorNotInitialized, "x")))
	assert.Equal(t, strataerr.ExitFailure, strataerr.ExitCode(stderrors.New("x")))
}

func TestExitCode_FatalWinsOverReason(t *testing.T) {
	for _, code := range []strataerr.Code{
		strataerr.CodeConfigParseInvalidFormat,
		strataerr.CodeConfigValidateInvalidValue,
		strataerr.CodeConfigLoadReadFailure,
		strataerr.CodeVectorInitFailure,
	} {
		err := strataerr.New(code, "x")
		assert.Equal(t, strataerr.ClassFatal, strataerr.Classify(err), code)
		assert.Equal(t, strataerr.ExitFailure, strataerr.ExitCode(err), code)
	}
}

func TestJoin(t *testing.T) {
	a := stderrors.New("a")
	b := stderrors.New("b")
	err := strataerr.Join(a, b)

	require.Error(t, err)
	assert.ErrorIs(t, err, a)
	assert.ErrorIs(t, err, b)
	assert.NoError(t, strataerr.Join())
}

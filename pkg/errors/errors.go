// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Strata Contributors

package errors

import (
	stderrors "errors"
	"fmt"
	"strings"

	"github.com/samber/oops"
)

// Code is the machine-readable identifier for an error.
//
// Codes follow the "area.entity.operation.reason" layout; the final segment is
// the reason used by the Is* predicates below.
type Code string

const (
	CodeStoreConnectionUnavailable Code = "store.connection.unavailable"
	CodeStoreReadingInsertConflict Code = "store.reading.insert.conflict"
	CodeStoreReadingQueryFailure   Code = "store.reading.query.database_failure"
	CodeStoreBucketMergeFailure    Code = "store.bucket.merge.database_failure"
	CodeStoreBucketPurgeStale      Code = "store.bucket.purge.conflict"
	CodeStoreLeaseFailure          Code = "store.lease.database_failure"
	CodeStoreLeaseLost             Code = "store.lease.renew.not_found"
	CodeStoreSchemaFailure         Code = "store.schema.migrate.database_failure"
	CodeStoreDatabaseFailure       Code = "store.database.failure"
	CodeStoreEntityNotFound        Code = "store.entity.not_found"
	CodeStoreBackendUnsupported    Code = "store.backend.unsupported"
	CodeStoreInvalidInput          Code = "store.invalid_input"

	CodeConfigLoadReadFailure      Code = "config.load.read.failure"
	CodeConfigParseInvalidFormat   Code = "config.parse.invalid_format"
	CodeConfigValidateInvalidValue Code = "config.validate.invalid_value"

	CodeIngestInputInvalid Code = "ingest.reading.invalid_input"

	CodeRetentionInputInvalid    Code = "retention.window.invalid_input"
	CodeRetentionCompressFailure Code = "retention.compress.failure"
	CodeRetentionPurgeFailure    Code = "retention.purge.failure"

	CodeSchedulerAlreadyRunning Code = "scheduler.lease.already_running"
	CodeSchedulerRunFailure     Code = "scheduler.run.failure"
	CodeDaemonLaunchFailure     Code = "daemon.launch.failure"
	CodeDaemonNotRunning        Code = "daemon.process.not_found"

	CodeVectorInputInvalid      Code = "vector.input.invalid"
	CodeVectorDimensionMismatch Code = "vector.dimension.mismatch"
	CodeVectorNotInitialized    Code = "vector.index.not_initialized"
	CodeVectorInitFailure       Code = "vector.index.init.failure"
	CodeVectorAddFailure        Code = "vector.add.failure"
	CodeVectorSearchFailure     Code = "vector.search.failure"
	CodeVectorHandleInvalidated Code = "vector.index.handle.invalidated"
	CodeVectorResetFailure      Code = "vector.index.reset.failure"

	CodeSecretInvalidInput   Code = "secret.input.invalid"
	CodeSecretNotFound       Code = "secret.entry.not_found"
	CodeSecretStoreFailure   Code = "secret.store.failure"
	CodeSecretDeleteFailure  Code = "secret.delete.failure"
	CodeSecretListFailure    Code = "secret.list.failure"
	CodeSecretResolveFailure Code = "secret.resolve.failure"

	CodeCLIInputInvalid    Code = "cli.input.invalid"
	CodeCLISetupFailure    Code = "cli.setup.failure"
	CodeCLIInternalFailure Code = "cli.internal.failure"
)

// Attr is a structured key/value context attached to an error.
type Attr struct {
	Key   string
	Value any
}

// Field creates a structured error field.
func Field(key string, value any) Attr {
	return Attr{Key: key, Value: value}
}

func FieldSensorID(value int64) Attr {
	return Field("sensor_id", value)
}

func FieldVectorID(value int64) Attr {
	return Field("vector_id", value)
}

func FieldDay(value string) Attr {
	return Field("day", value)
}

func FieldBackend(value string) Attr {
	return Field("backend", value)
}

func New(code Code, msg string, fields ...Attr) error {
	return oops.Code(code).With(flatten(fields)...).New(msg)
}

func Errorf(code Code, format string, args ...any) error {
	return oops.Code(code).Errorf(format, args...)
}

func Wrap(err error, code Code, msg string, fields ...Attr) error {
	if err == nil {
		return nil
	}

	return oops.Code(code).With(flatten(fields)...).Wrapf(err, "%s", msg)
}

func Wrapf(err error, code Code, format string, args ...any) error {
	if err == nil {
		return nil
	}

	return oops.Code(code).Wrapf(err, format, args...)
}

// With adds structured fields to an existing error chain.
func With(err error, fields ...Attr) error {
	if err == nil {
		return nil
	}

	code := CodeOf(err)
	if code == "" {
		code = CodeCLIInternalFailure
	}

	return oops.Code(code).With(flatten(fields)...).Wrap(err)
}

// CodeOf returns the code of the deepest coded error in the chain, so a
// store conflict keeps its identity when callers wrap it with more context.
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}

	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return ""
	}

	if code, ok := oopsErr.Code().(Code); ok {
		return code
	}

	if code, ok := oopsErr.Code().(string); ok {
		return Code(code)
	}

	return Code(fmt.Sprintf("%v", oopsErr.Code()))
}

func FieldsOf(err error) map[string]any {
	if err == nil {
		return nil
	}

	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return nil
	}

	return oopsErr.Context()
}

func HasCode(err error, code Code) bool {
	if err == nil {
		return false
	}
	return CodeOf(err) == code
}

func IsNotFound(err error) bool {
	return reason(CodeOf(err)) == "not_found"
}

func IsConflict(err error) bool {
	return reason(CodeOf(err)) == "conflict"
}

func IsInvalidInput(err error) bool {
	r := reason(CodeOf(err))
	return r == "invalid" || r == "invalid_input" || r == "invalid_value" || r == "invalid_format"
}

func IsUnavailable(err error) bool {
	return reason(CodeOf(err)) == "unavailable"
}

func IsAlreadyRunning(err error) bool {
	return reason(CodeOf(err)) == "already_running"
}

func IsDatabaseFailure(err error) bool {
	code := CodeOf(err)
	return reason(code) == "database_failure" || code == CodeStoreDatabaseFailure
}

// IsVector reports whether err originated in the vector index manager.
func IsVector(err error) bool {
	return strings.HasPrefix(string(CodeOf(err)), "vector.")
}

// Class tells a caller how to react to a failed store or engine call.
type Class int

const (
	// ClassNone means there was no error.
	ClassNone Class = iota
	// ClassRetryable failures may succeed if the whole operation is retried.
	ClassRetryable
	// ClassPermanent failures will fail again with the same input.
	ClassPermanent
	// ClassFatal failures leave the process unable to continue.
	ClassFatal
)

func (c Class) String() string {
	switch c {
	case ClassNone:
		return "none"
	case ClassRetryable:
		return "retryable"
	case ClassPermanent:
		return "permanent"
	case ClassFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Classify sorts err into a recovery class.
func Classify(err error) Class {
	if err == nil {
		return ClassNone
	}

	code := CodeOf(err)
	switch {
	case strings.HasPrefix(string(code), "config."),
		code == CodeVectorInitFailure,
		code == CodeDaemonLaunchFailure,
		code == CodeStoreSchemaFailure,
		code == CodeStoreBackendUnsupported,
		code == CodeCLISetupFailure:
		return ClassFatal
	case IsUnavailable(err), IsAlreadyRunning(err), IsDatabaseFailure(err),
		code == CodeVectorHandleInvalidated, code == CodeStoreLeaseLost:
		return ClassRetryable
	default:
		return ClassPermanent
	}
}

// Process exit codes returned by the strata command.
const (
	ExitOK             = 0
	ExitFailure        = 1
	ExitInvalidInput   = 2
	ExitConflict       = 3
	ExitUnavailable    = 4
	ExitAlreadyRunning = 5
	ExitVector         = 6
)

// ExitCode maps err to the process exit code the command line reports.
// Fatal errors exit with ExitFailure whatever their reason.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case Classify(err) == ClassFatal:
		return ExitFailure
	case IsInvalidInput(err):
		return ExitInvalidInput
	case IsConflict(err):
		return ExitConflict
	case IsUnavailable(err):
		return ExitUnavailable
	case IsAlreadyRunning(err):
		return ExitAlreadyRunning
	case IsVector(err):
		return ExitVector
	default:
		return ExitFailure
	}
}

func Join(errs ...error) error {
	joined := stderrors.Join(errs...)
	if joined == nil {
		return nil
	}
	return oops.Code(CodeCLIInternalFailure).Wrap(joined)
}

func flatten(fields []Attr) []any {
	pairs := make([]any, 0, len(fields)*2)
	for _, field := range fields {
		if field.Key == "" {
			continue
		}
		pairs = append(pairs, field.Key, field.Value)
	}
	return pairs
}

func reason(code Code) string {
	if code == "" {
		return ""
	}

	raw := string(code)
	idx := strings.LastIndex(raw, ".")
	if idx == -1 || idx == len(raw)-1 {
		return raw
	}
	return raw[idx+1:]
}

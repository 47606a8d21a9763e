// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/samber/oops"
)

// Code is the machine-readable identifier for an error.
// Codes are dotted: component.operation.reason. The last segment drives
// classification helpers such as IsNotFound and HTTPStatus.
type Code string

const (
	CodeCorpusLoadReadFailure   Code = "corpus.load.read.failure"
	CodeCorpusLoadInvalidFormat Code = "corpus.load.invalid_format"
	CodeCorpusLoadEmpty         Code = "corpus.load.empty.invalid_input"

	CodeEmbedRequestInvalid    Code = "embed.request.invalid"
	CodeEmbedUpstreamFailure   Code = "embed.request.upstream_failure"
	CodeEmbedResponseInvalid   Code = "embed.response.invalid"
	CodeEmbedProviderNotFound  Code = "embed.provider.not_found"
	CodeEmbedDimensionMismatch Code = "embed.dimension.mismatch"

	CodeIndexBuildDegenerateVector Code = "index.build.degenerate_vector"
	CodeIndexBuildInvalidInput     Code = "index.build.invalid_input"
	CodeIndexSearchInvalidInput    Code = "index.search.invalid_input"
	CodeIndexSearchFailure         Code = "index.search.failure"
	CodeIndexStoreFailure          Code = "index.store.failure"

	CodeArtifactLoadMissing  Code = "artifact.load.not_found"
	CodeArtifactLoadCorrupt  Code = "artifact.load.invalid_format"
	CodeArtifactLoadMismatch Code = "artifact.load.mismatch"
	CodeArtifactWriteFailure Code = "artifact.write.failure"

	CodeResolverQueryDegraded Code = "resolver.query.degraded"

	CodeBootstrapSourceMissing Code = "bootstrap.source.not_found"
	CodeBootstrapFetchFailure  Code = "bootstrap.fetch.upstream_failure"
	CodeBootstrapWriteFailure  Code = "bootstrap.write.failure"

	CodeConfigLoadReadFailure      Code = "config.load.read.failure"
	CodeConfigParseInvalidFormat   Code = "config.parse.invalid_format"
	CodeConfigValidateInvalidValue Code = "config.validate.invalid_value"

	CodeSessionNotFound     Code = "session.get.not_found"
	CodeSessionInvalidInput Code = "session.turn.invalid_input"

	CodeServerRequestInvalid  Code = "server.request.invalid"
	CodeServerInternalFailure Code = "server.internal.failure"
	CodeServerStartFailure    Code = "server.start.failure"
	CodeServerShutdownFailure Code = "server.shutdown.failure"

	CodeCLISetupFailure Code = "cli.setup.failure"
	CodeCLIInputInvalid Code = "cli.input.invalid"

	CodeSecretInvalidInput   Code = "secret.input.invalid"
	CodeSecretNotFound       Code = "secret.get.not_found"
	CodeSecretStoreFailure   Code = "secret.store.failure"
	CodeSecretDeleteFailure  Code = "secret.delete.failure"
	CodeSecretListFailure    Code = "secret.list.failure"
	CodeSecretResolveFailure Code = "secret.resolve.failure"
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

func FieldPath(value string) Attr {
	return Field("path", value)
}

func FieldModel(value string) Attr {
	return Field("model", value)
}

func FieldProvider(value string) Attr {
	return Field("provider", value)
}

func FieldSessionID(value string) Attr {
	return Field("session_id", value)
}

func FieldPosition(value int) Attr {
	return Field("position", value)
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
		code = CodeServerInternalFailure
	}

	return oops.Code(code).With(flatten(fields)...).Wrap(err)
}

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

func IsInvalidInput(err error) bool {
	r := reason(CodeOf(err))
	return r == "invalid" || r == "invalid_input" || r == "invalid_value" || r == "invalid_format"
}

func IsMismatch(err error) bool {
	return reason(CodeOf(err)) == "mismatch"
}

func IsUpstreamFailure(err error) bool {
	return reason(CodeOf(err)) == "upstream_failure"
}

func HTTPStatus(err error) int {
	switch {
	case IsNotFound(err):
		return http.StatusNotFound
	case IsInvalidInput(err):
		return http.StatusBadRequest
	case IsUpstreamFailure(err):
		return http.StatusBadGateway
	case IsMismatch(err):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func Join(errs ...error) error {
	joined := stderrors.Join(errs...)
	if joined == nil {
		return nil
	}
	return oops.Code(CodeServerInternalFailure).Wrap(joined)
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

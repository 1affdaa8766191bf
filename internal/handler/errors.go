// Copyright 2024 DataFlood Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package handler

import (
	"errors"
	"fmt"

	"github.com/DataFlood/DataFlood/internal/types"
)

// ErrorCode is a MongoDB error code.
type ErrorCode int32

const (
	// ErrInternalError indicates a failure the client cannot act on.
	ErrInternalError = ErrorCode(1)

	// ErrBadValue indicates a malformed parameter value.
	ErrBadValue = ErrorCode(2)

	// ErrFailedToParse indicates an unparsable command document.
	ErrFailedToParse = ErrorCode(9)

	// ErrTypeMismatch indicates a parameter of the wrong BSON type.
	ErrTypeMismatch = ErrorCode(14)

	// ErrNamespaceNotFound indicates a missing collection.
	ErrNamespaceNotFound = ErrorCode(26)

	// ErrIndexNotFound indicates a missing index.
	ErrIndexNotFound = ErrorCode(27)

	// ErrCursorNotFound indicates an unknown or expired cursor id.
	ErrCursorNotFound = ErrorCode(43)

	// ErrCommandNotFound indicates an unsupported command.
	ErrCommandNotFound = ErrorCode(59)

	// ErrInvalidNamespace indicates a malformed namespace string.
	ErrInvalidNamespace = ErrorCode(73)

	// ErrInvalidIndexSpecificationOption indicates a bad index option.
	ErrInvalidIndexSpecificationOption = ErrorCode(197)
)

// Name returns the MongoDB code name.
func (c ErrorCode) Name() string {
	switch c {
	case ErrInternalError:
		return "InternalError"
	case ErrBadValue:
		return "BadValue"
	case ErrFailedToParse:
		return "FailedToParse"
	case ErrTypeMismatch:
		return "TypeMismatch"
	case ErrNamespaceNotFound:
		return "NamespaceNotFound"
	case ErrIndexNotFound:
		return "IndexNotFound"
	case ErrCursorNotFound:
		return "CursorNotFound"
	case ErrCommandNotFound:
		return "CommandNotFound"
	case ErrInvalidNamespace:
		return "InvalidNamespace"
	case ErrInvalidIndexSpecificationOption:
		return "InvalidIndexSpecificationOption"
	default:
		return "Location" + fmt.Sprintf("%d", int32(c))
	}
}

// CommandError is an error the client receives as an error document
// instead of a closed connection.
type CommandError struct {
	msg  string
	code ErrorCode
}

// NewCommandError creates a CommandError.
func NewCommandError(code ErrorCode, msg string) error {
	return &CommandError{code: code, msg: msg}
}

// NewCommandErrorf creates a CommandError with a formatted message.
func NewCommandErrorf(code ErrorCode, format string, args ...any) error {
	return &CommandError{code: code, msg: fmt.Sprintf(format, args...)}
}

// Error implements the error interface.
func (e *CommandError) Error() string {
	return fmt.Sprintf("%s (%d): %s", e.code.Name(), e.code, e.msg)
}

// Code returns the MongoDB error code.
func (e *CommandError) Code() ErrorCode {
	return e.code
}

// Document returns the error as a command reply document.
func (e *CommandError) Document() *types.Document {
	doc := types.MakeDocument(4)
	doc.Set("ok", float64(0))
	doc.Set("errmsg", e.msg)
	doc.Set("code", int32(e.code))
	doc.Set("codeName", e.code.Name())

	return doc
}

// errorDocument converts any error into a command reply document;
// non-command errors surface as InternalError.
func errorDocument(err error) *types.Document {
	var ce *CommandError
	if !errors.As(err, &ce) {
		ce = &CommandError{code: ErrInternalError, msg: err.Error()}
	}

	return ce.Document()
}

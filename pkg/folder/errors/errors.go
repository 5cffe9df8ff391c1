// Package errors provides error codes and the structured error type for the
// folder package. This is a leaf package with no internal dependencies,
// designed to be imported by the store implementations and the folder
// services without causing circular imports.
//
// Import graph: errors <- acl <- folder <- store implementations
package errors

import (
	"fmt"
)

// Code identifies the exact rejection or fault. Codes are stable and
// numbered; callers render them into localized messages using the
// structured fields on Error as positional arguments.
type Code int

const (
	// CodeNotFound indicates the requested folder does not exist.
	CodeNotFound Code = iota + 1

	// CodeNotVisible indicates the folder exists but the requestor has no
	// visibility on it. Rendered as access-denied, not as absent.
	CodeNotVisible

	// CodeNoAdminAccess indicates the operation requires folder admin rights.
	CodeNoAdminAccess

	// CodeNoRenameAccess indicates the requestor may not rename the folder.
	CodeNoRenameAccess

	// CodeNoCreateSubfolderAccess indicates the requestor may not create
	// subfolders below the target parent.
	CodeNoCreateSubfolderAccess

	// CodeNoShareAccess indicates the requestor may not share the folder.
	CodeNoShareAccess

	// CodeNoDeleteAccess indicates the requestor may not delete the folder
	// or its contents.
	CodeNoDeleteAccess

	// CodeNoMoveAccess indicates the requestor may not move the folder out
	// of its current parent.
	CodeNoMoveAccess

	// CodeNoModuleAccess indicates the folder's module is outside the
	// requestor's capability mask.
	CodeNoModuleAccess

	// CodeDuplicateName indicates a sibling with the same (case-insensitive)
	// name exists or is being created by a concurrent transaction.
	CodeDuplicateName

	// CodeInvalidType indicates the folder type is not admissible below the
	// target parent's type.
	CodeInvalidType

	// CodeInvalidModule indicates the folder module is not compatible with
	// the target parent's module.
	CodeInvalidModule

	// CodeCycle indicates a move would make a folder its own descendant.
	CodeCycle

	// CodeImmutableFolder indicates the folder is default, shared or system
	// and the requested structural change is never permitted on it.
	CodeImmutableFolder

	// CodeInvalidName indicates an empty, oversized or malformed folder
	// name.
	CodeInvalidName

	// CodeDuplicateUserPermission indicates two entries in one update name
	// the same user.
	CodeDuplicateUserPermission

	// CodeDuplicateGroupPermission indicates two entries in one update name
	// the same group.
	CodeDuplicateGroupPermission

	// CodeInvalidEntity indicates a permission entry names a negative or
	// unresolvable subject.
	CodeInvalidEntity

	// CodeNoAdminPermission indicates a permission set contains no entry
	// with the admin flag.
	CodeNoAdminPermission

	// CodeMultipleAdminPermissions indicates a private folder permission set
	// contains more than one admin entry.
	CodeMultipleAdminPermissions

	// CodeGroupAdminOnPrivate indicates a private folder admin entry names a
	// group.
	CodeGroupAdminOnPrivate

	// CodeNonOwnerAdminOnPrivate indicates a private folder admin entry
	// names a subject other than the folder's creator.
	CodeNonOwnerAdminOnPrivate

	// CodeSystemPermissionEnvelope indicates a permission update on a system
	// folder falls outside the fixed envelope allowed for that node.
	CodeSystemPermissionEnvelope

	// CodeContentBlocked indicates foreign or locked items prevent deletion.
	CodeContentBlocked

	// CodeHiddenSubfolder indicates a descendant the requestor cannot see
	// blocks a subtree deletion.
	CodeHiddenSubfolder

	// CodeUnknownModule indicates no content store is registered for the
	// folder's module.
	CodeUnknownModule

	// CodeTransient indicates a storage or connectivity fault. This is the
	// only code a caller should retry, and only on a fresh transaction.
	CodeTransient

	// CodeUnknown is the catch-all for unexpected runtime faults.
	CodeUnknown
)

// Kind groups codes into the coarse classes callers branch on.
type Kind int

const (
	KindNotFound Kind = iota + 1
	KindNotVisible
	KindPermissionDenied
	KindDuplicateName
	KindInvalidStructuralChange
	KindInvalidPermissionSet
	KindContentBlocked
	KindTransient
	KindUnknown
)

// String returns a human-readable name for the error code.
func (c Code) String() string {
	switch c {
	case CodeNotFound:
		return "NotFound"
	case CodeNotVisible:
		return "NotVisible"
	case CodeNoAdminAccess:
		return "NoAdminAccess"
	case CodeNoRenameAccess:
		return "NoRenameAccess"
	case CodeNoCreateSubfolderAccess:
		return "NoCreateSubfolderAccess"
	case CodeNoShareAccess:
		return "NoShareAccess"
	case CodeNoDeleteAccess:
		return "NoDeleteAccess"
	case CodeNoMoveAccess:
		return "NoMoveAccess"
	case CodeNoModuleAccess:
		return "NoModuleAccess"
	case CodeDuplicateName:
		return "DuplicateName"
	case CodeInvalidType:
		return "InvalidType"
	case CodeInvalidModule:
		return "InvalidModule"
	case CodeCycle:
		return "Cycle"
	case CodeImmutableFolder:
		return "ImmutableFolder"
	case CodeInvalidName:
		return "InvalidName"
	case CodeDuplicateUserPermission:
		return "DuplicateUserPermission"
	case CodeDuplicateGroupPermission:
		return "DuplicateGroupPermission"
	case CodeInvalidEntity:
		return "InvalidEntity"
	case CodeNoAdminPermission:
		return "NoAdminPermission"
	case CodeMultipleAdminPermissions:
		return "MultipleAdminPermissions"
	case CodeGroupAdminOnPrivate:
		return "GroupAdminOnPrivate"
	case CodeNonOwnerAdminOnPrivate:
		return "NonOwnerAdminOnPrivate"
	case CodeSystemPermissionEnvelope:
		return "SystemPermissionEnvelope"
	case CodeContentBlocked:
		return "ContentBlocked"
	case CodeHiddenSubfolder:
		return "HiddenSubfolder"
	case CodeUnknownModule:
		return "UnknownModule"
	case CodeTransient:
		return "Transient"
	case CodeUnknown:
		return "Unknown"
	default:
		return fmt.Sprintf("Unknown(%d)", int(c))
	}
}

// Kind returns the coarse class for a code.
func (c Code) Kind() Kind {
	switch c {
	case CodeNotFound:
		return KindNotFound
	case CodeNotVisible:
		return KindNotVisible
	case CodeNoAdminAccess, CodeNoRenameAccess, CodeNoCreateSubfolderAccess,
		CodeNoShareAccess, CodeNoDeleteAccess, CodeNoMoveAccess, CodeNoModuleAccess:
		return KindPermissionDenied
	case CodeDuplicateName:
		return KindDuplicateName
	case CodeInvalidType, CodeInvalidModule, CodeCycle, CodeImmutableFolder,
		CodeInvalidName:
		return KindInvalidStructuralChange
	case CodeDuplicateUserPermission, CodeDuplicateGroupPermission,
		CodeInvalidEntity, CodeNoAdminPermission, CodeMultipleAdminPermissions,
		CodeGroupAdminOnPrivate, CodeNonOwnerAdminOnPrivate,
		CodeSystemPermissionEnvelope:
		return KindInvalidPermissionSet
	case CodeContentBlocked, CodeHiddenSubfolder, CodeUnknownModule:
		return KindContentBlocked
	case CodeTransient:
		return KindTransient
	default:
		return KindUnknown
	}
}

// Error is the structured error returned by all folder operations. FolderID
// and Subject carry the positional arguments a caller needs to render a
// precise message; either may be zero when not applicable.
type Error struct {
	Code     Code
	Message  string
	FolderID int64
	Subject  int64
}

// Error implements the error interface.
func (e *Error) Error() string {
	switch {
	case e.FolderID != 0 && e.Subject != 0:
		return fmt.Sprintf("%s: %s (folder: %d, subject: %d)", e.Code, e.Message, e.FolderID, e.Subject)
	case e.FolderID != 0:
		return fmt.Sprintf("%s: %s (folder: %d)", e.Code, e.Message, e.FolderID)
	default:
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
}

// ============================================================================
// Factory Functions
// ============================================================================

// NewNotFound creates a NotFound error for a folder id.
func NewNotFound(folderID int64) *Error {
	return &Error{
		Code:     CodeNotFound,
		Message:  "folder not found",
		FolderID: folderID,
	}
}

// NewNotVisible creates a NotVisible error for a folder id and requestor.
func NewNotVisible(folderID, subject int64) *Error {
	return &Error{
		Code:     CodeNotVisible,
		Message:  "folder not visible",
		FolderID: folderID,
		Subject:  subject,
	}
}

// NewPermissionDenied creates a permission error with the specific missing
// right. Code must be one of the CodeNo* permission codes.
func NewPermissionDenied(code Code, folderID, subject int64) *Error {
	return &Error{
		Code:     code,
		Message:  "insufficient folder rights",
		FolderID: folderID,
		Subject:  subject,
	}
}

// NewDuplicateName creates a DuplicateName error for a parent folder.
func NewDuplicateName(parentID int64, name string) *Error {
	return &Error{
		Code:     CodeDuplicateName,
		Message:  fmt.Sprintf("a folder named %q already exists below this parent", name),
		FolderID: parentID,
	}
}

// NewNameReserved creates a DuplicateName error for a reservation
// conflict. Stores see only the name hash, so no name is carried.
func NewNameReserved(parentID int64) *Error {
	return &Error{
		Code:     CodeDuplicateName,
		Message:  "folder name already claimed below this parent",
		FolderID: parentID,
	}
}

// NewStructural creates an InvalidStructuralChange error. Code must be one
// of CodeInvalidType, CodeInvalidModule, CodeCycle or CodeImmutableFolder.
func NewStructural(code Code, folderID int64, message string) *Error {
	return &Error{
		Code:     code,
		Message:  message,
		FolderID: folderID,
	}
}

// NewPermissionSet creates an InvalidPermissionSet error for one offending
// subject.
func NewPermissionSet(code Code, folderID, subject int64, message string) *Error {
	return &Error{
		Code:     code,
		Message:  message,
		FolderID: folderID,
		Subject:  subject,
	}
}

// NewContentBlocked creates a ContentBlocked error.
func NewContentBlocked(folderID, subject int64, message string) *Error {
	return &Error{
		Code:     CodeContentBlocked,
		Message:  message,
		FolderID: folderID,
		Subject:  subject,
	}
}

// NewHiddenSubfolder reports a subtree deletion blocked by a descendant the
// requestor cannot see. The descendant id is deliberately not exposed.
func NewHiddenSubfolder(folderID, subject int64) *Error {
	return &Error{
		Code:     CodeHiddenSubfolder,
		Message:  "a hidden subfolder prevents deletion",
		FolderID: folderID,
		Subject:  subject,
	}
}

// NewUnknownModule reports that no content store serves the folder's module.
func NewUnknownModule(folderID int64, module string) *Error {
	return &Error{
		Code:     CodeUnknownModule,
		Message:  fmt.Sprintf("no content store registered for module %s", module),
		FolderID: folderID,
	}
}

// NewTransient wraps a storage or connectivity fault. Safe to retry on a
// fresh transaction.
func NewTransient(operation string, err error) *Error {
	return &Error{
		Code:    CodeTransient,
		Message: fmt.Sprintf("%s: %v", operation, err),
	}
}

// NewUnknown wraps an unexpected runtime fault.
func NewUnknown(operation string, err error) *Error {
	return &Error{
		Code:    CodeUnknown,
		Message: fmt.Sprintf("%s: %v", operation, err),
	}
}

// ============================================================================
// Error Type Checking Helpers
// ============================================================================

// CodeOf returns the code of a folder error, or CodeUnknown for any other
// error, and 0 for nil.
func CodeOf(err error) Code {
	if err == nil {
		return 0
	}
	if fe, ok := err.(*Error); ok {
		return fe.Code
	}
	return CodeUnknown
}

// IsNotFound returns true if the error is a NotFound error.
func IsNotFound(err error) bool {
	return CodeOf(err) == CodeNotFound
}

// IsNotVisible returns true if the error is a NotVisible error.
func IsNotVisible(err error) bool {
	return CodeOf(err) == CodeNotVisible
}

// IsDuplicateName returns true if the error is a DuplicateName conflict.
func IsDuplicateName(err error) bool {
	return CodeOf(err) == CodeDuplicateName
}

// IsPermissionDenied returns true if the error is any of the permission
// denial codes.
func IsPermissionDenied(err error) bool {
	if err == nil {
		return false
	}
	return CodeOf(err).Kind() == KindPermissionDenied
}

// IsTransient returns true if the error is safe to retry on a fresh
// transaction.
func IsTransient(err error) bool {
	return CodeOf(err) == CodeTransient
}

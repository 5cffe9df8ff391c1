package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKinds(t *testing.T) {
	tests := []struct {
		code Code
		kind Kind
	}{
		{CodeNotFound, KindNotFound},
		{CodeNotVisible, KindNotVisible},
		{CodeNoAdminAccess, KindPermissionDenied},
		{CodeNoModuleAccess, KindPermissionDenied},
		{CodeDuplicateName, KindDuplicateName},
		{CodeInvalidName, KindInvalidStructuralChange},
		{CodeCycle, KindInvalidStructuralChange},
		{CodeImmutableFolder, KindInvalidStructuralChange},
		{CodeNoAdminPermission, KindInvalidPermissionSet},
		{CodeSystemPermissionEnvelope, KindInvalidPermissionSet},
		{CodeHiddenSubfolder, KindContentBlocked},
		{CodeTransient, KindTransient},
		{CodeUnknown, KindUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.code.String(), func(t *testing.T) {
			assert.Equal(t, tt.kind, tt.code.Kind())
		})
	}
}

func TestHelpers(t *testing.T) {
	assert.True(t, IsNotFound(NewNotFound(7)))
	assert.True(t, IsNotVisible(NewNotVisible(7, 42)))
	assert.True(t, IsDuplicateName(NewDuplicateName(7, "Reports")))
	assert.True(t, IsDuplicateName(NewNameReserved(7)))
	assert.True(t, IsPermissionDenied(NewPermissionDenied(CodeNoRenameAccess, 7, 42)))
	assert.True(t, IsTransient(NewTransient("query", errors.New("gone"))))

	assert.False(t, IsNotFound(nil))
	assert.False(t, IsNotFound(errors.New("plain")))
	assert.Equal(t, CodeUnknown, CodeOf(errors.New("plain")))
	assert.Equal(t, Code(0), CodeOf(nil))
}

func TestErrorRendering(t *testing.T) {
	err := NewNotVisible(7, 42)
	assert.Contains(t, err.Error(), "NotVisible")
	assert.Contains(t, err.Error(), "folder: 7")
	assert.Contains(t, err.Error(), "subject: 42")

	bare := NewTransient("connect", fmt.Errorf("refused"))
	assert.NotContains(t, bare.Error(), "folder:")
}

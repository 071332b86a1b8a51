package services

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/atlasnotes/post-service/internal/core/domain"
)

func TestAuthorize(t *testing.T) {
	tests := []struct {
		name      string
		action    Action
		owner     string
		requester string
		wantErr   error
	}{
		{"owner can update", ActionUpdate, "user-7", "user-7", nil},
		{"owner can delete", ActionDelete, "user-7", "user-7", nil},
		{"stranger cannot update", ActionUpdate, "user-7", "user-8", domain.ErrForbidden},
		{"stranger cannot delete", ActionDelete, "user-7", "user-8", domain.ErrForbidden},
		{"empty requester is refused", ActionDelete, "user-7", "", domain.ErrForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Authorize(tt.action, tt.owner, tt.requester)
			if tt.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

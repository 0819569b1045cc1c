package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func u64(v uint64) *uint64 { return &v }
func boolp(v bool) *bool    { return &v }

func TestBorrowingScope(t *testing.T) {
	tests := []struct {
		name      string
		caller    Caller
		filter    Filter
		wantOwner *uint64
		wantAct   *bool
	}{
		{"member without filters", Caller{UserID: 3}, Filter{}, u64(3), nil},
		{"member user_id filter ignored", Caller{UserID: 3}, Filter{UserID: u64(9)}, u64(3), nil},
		{"member active filter kept", Caller{UserID: 3}, Filter{IsActive: boolp(true)}, u64(3), boolp(true)},
		{"staff sees all", Caller{UserID: 1, IsStaff: true}, Filter{}, nil, nil},
		{"staff narrows by user", Caller{UserID: 1, IsStaff: true}, Filter{UserID: u64(9), IsActive: boolp(false)}, u64(9), boolp(false)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := BorrowingScope(tt.caller, tt.filter)
			if tt.wantOwner == nil {
				assert.Nil(t, s.OwnerID)
			} else {
				require.NotNil(t, s.OwnerID)
				assert.Equal(t, *tt.wantOwner, *s.OwnerID)
			}
			assert.Equal(t, tt.wantAct, s.IsActive)
		})
	}
}

func TestPaymentScope(t *testing.T) {
	assert.Nil(t, PaymentScope(Caller{UserID: 1, IsStaff: true}).OwnerID)
	s := PaymentScope(Caller{UserID: 4})
	require.NotNil(t, s.OwnerID)
	assert.Equal(t, uint64(4), *s.OwnerID)
}

func TestCanAccess(t *testing.T) {
	assert.True(t, Caller{UserID: 2}.CanAccess(2))
	assert.False(t, Caller{UserID: 2}.CanAccess(5))
	assert.True(t, Caller{UserID: 2, IsStaff: true}.CanAccess(5))
}

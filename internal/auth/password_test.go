package auth

import (
	"errors"
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

// newTestPasswordService uses the minimum bcrypt cost so each hash takes
// milliseconds instead of ~250ms.
func newTestPasswordService() *PasswordService {
	return NewPasswordService(bcrypt.MinCost)
}

func TestNewPasswordService_OutOfRangeCostFallsBack(t *testing.T) {
	for _, cost := range []int{0, 2, 99} {
		if got := NewPasswordService(cost).cost; got != DefaultCost {
			t.Errorf("NewPasswordService(%d).cost = %d, want %d", cost, got, DefaultCost)
		}
	}
}

func TestHash_OutputLooksBcrypt(t *testing.T) {
	ps := newTestPasswordService()

	hash, err := ps.Hash("password123")
	if err != nil {
		t.Fatalf("Hash() error = %v", err)
	}
	if !strings.HasPrefix(hash, "$2a$04$") {
		t.Errorf("Hash() = %q, want bcrypt hash with cost 04", hash)
	}
}

func TestHash_Salted(t *testing.T) {
	ps := newTestPasswordService()

	h1, _ := ps.Hash("same-password")
	h2, _ := ps.Hash("same-password")
	if h1 == h2 {
		t.Error("Hash() produced identical hashes; salt is missing")
	}
}

func TestHash_Length(t *testing.T) {
	ps := newTestPasswordService()

	if _, err := ps.Hash(strings.Repeat("a", 73)); !errors.Is(err, ErrPasswordTooLong) {
		t.Errorf("Hash() error = %v, want ErrPasswordTooLong", err)
	}
	// 40 runes, 80 bytes.
	if _, err := ps.Hash(strings.Repeat("é", 40)); !errors.Is(err, ErrPasswordTooLong) {
		t.Errorf("Hash(multi-byte) error = %v, want ErrPasswordTooLong", err)
	}
	if _, err := ps.Hash(strings.Repeat("a", 72)); err != nil {
		t.Errorf("Hash() should accept a 72-byte password: %v", err)
	}
}

func TestVerify(t *testing.T) {
	ps := newTestPasswordService()
	hash, err := ps.Hash("correct horse")
	if err != nil {
		t.Fatalf("Hash() error = %v", err)
	}

	tests := []struct {
		name      string
		hash      string
		plaintext string
		wantErr   bool
		mismatch  bool
	}{
		{"correct password", hash, "correct horse", false, false},
		{"wrong password", hash, "battery staple", true, true},
		{"empty password", hash, "", true, true},
		{"garbage hash", "not-a-bcrypt-hash", "correct horse", true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ps.Verify(tt.hash, tt.plaintext)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Verify() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got := errors.Is(err, ErrPasswordMismatch); got != tt.mismatch {
				t.Errorf("errors.Is(err, ErrPasswordMismatch) = %v, want %v", got, tt.mismatch)
			}
		})
	}
}

package storage

import (
	"errors"
	"fmt"
	"testing"

	"github.com/aws/smithy-go"
)

func TestMapAWSError(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		wantErr error
	}{
		{"no such key", &smithy.GenericAPIError{Code: "NoSuchKey", Message: "gone"}, ErrNotFound},
		{"no such bucket", &smithy.GenericAPIError{Code: "NoSuchBucket", Message: "x"}, ErrNoSuchBucket},
		{"access denied", &smithy.GenericAPIError{Code: "AccessDenied", Message: "x"}, ErrAccessDenied},
		{"expired token", &smithy.GenericAPIError{Code: "ExpiredToken", Message: "x"}, ErrAccessDenied},
		{"slow down", &smithy.GenericAPIError{Code: "SlowDown", Message: "x"}, ErrThrottled},
		{"wrapped api error", fmt.Errorf("op: %w", &smithy.GenericAPIError{Code: "NoSuchKey"}), ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := mapAWSError(tt.err)
			if !errors.Is(got, tt.wantErr) {
				t.Errorf("mapAWSError() = %v, want wrapping %v", got, tt.wantErr)
			}
		})
	}
}

func TestMapAWSError_Unknown(t *testing.T) {
	apiErr := &smithy.GenericAPIError{Code: "InternalError", Message: "boom"}
	got := mapAWSError(apiErr)
	for _, sentinel := range []error{ErrNotFound, ErrNoSuchBucket, ErrAccessDenied, ErrThrottled} {
		if errors.Is(got, sentinel) {
			t.Errorf("unknown code mapped to %v", sentinel)
		}
	}
	if !errors.Is(got, apiErr) {
		t.Error("expected original error to be wrapped")
	}

	plain := errors.New("dial tcp: refused")
	if got := mapAWSError(plain); !errors.Is(got, plain) {
		t.Errorf("expected non-API error wrapped, got %v", got)
	}
}

func TestValidateName(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"plain", "a.txt", false},
		{"spaces", "my report.pdf", false},
		{"empty", "", true},
		{"dot", ".", true},
		{"dotdot", "..", true},
		{"slash", "dir/a.txt", true},
		{"backslash", `dir\a.txt`, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateName(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateName(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidName) {
				t.Errorf("expected ErrInvalidName, got %v", err)
			}
		})
	}
}

func TestObjectKey(t *testing.T) {
	obj := Object{Namespace: "abc", Name: "a.txt"}
	if obj.Key() != "abc/a.txt" {
		t.Errorf("got %s", obj.Key())
	}
}

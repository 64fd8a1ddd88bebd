package db

import (
	"context"
	"errors"
	"testing"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestClassify(t *testing.T) {
	domainErr := errors.New("quota exhausted")

	tests := []struct {
		name string
		err  error
		want error
	}{
		{"not found", status.Error(codes.NotFound, "missing"), ErrNotFound},
		{"already exists", status.Error(codes.AlreadyExists, "dup"), ErrAlreadyExists},
		{"unavailable", status.Error(codes.Unavailable, "down"), ErrUnavailable},
		{"grpc deadline", status.Error(codes.DeadlineExceeded, "slow"), ErrUnavailable},
		{"context deadline", context.DeadlineExceeded, ErrUnavailable},
		{"domain error passes through", domainErr, domainErr},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classify(tt.err, "op %s", "x")
			if !errors.Is(got, tt.want) {
				t.Errorf("classify() = %v, want wrapping %v", got, tt.want)
			}
		})
	}
}

package firestore

import (
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func notFoundStatus(msg string) error {
	return status.Error(codes.NotFound, msg)
}

package async

import (
	"context"
	"time"
)

// Service is a background process that does its work every interval until
// ctx is cancelled
type Service interface {
	Start(ctx context.Context, interval time.Duration) error
}

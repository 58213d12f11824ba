package clock

import (
	"context"
	"time"
)

// Clock supplies the current time. The lifecycle core never calls
// time.Now directly so enforcement runs can be driven with an injected
// date in tests.
type Clock interface {
	Now(ctx context.Context) time.Time
}

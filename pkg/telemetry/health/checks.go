package health

import (
	"context"
	"errors"
	"fmt"
)

// Pinger is satisfied by *sql.DB and by journal storage backends.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// PingCheck checks a storage backend.
func PingCheck(p Pinger) CheckFunc {
	return func(ctx context.Context) error {
		if err := p.PingContext(ctx); err != nil {
			return fmt.Errorf("ping: %w", err)
		}
		return nil
	}
}

// CountCheck fails when count returns zero, e.g. an empty routing table.
func CountCheck(what string, count func() int) CheckFunc {
	return func(context.Context) error {
		if count() == 0 {
			return errors.New("no " + what + " loaded")
		}
		return nil
	}
}

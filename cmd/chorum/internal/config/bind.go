package config

import (
	"errors"
	"fmt"
	"net"
)

var (
	ErrCantBindToPort = errors.New("bind: can't bind to host:port")
	ErrSameBind       = errors.New("bind: http and metrics can't share an address")
)

type Bind struct {
	HTTP    string
	Metrics string
}

// Valid checks that both addresses can be listened on right now.
func (b *Bind) Valid() error {
	var errs []error

	if b.HTTP == b.Metrics {
		return fmt.Errorf("%w: %q", ErrSameBind, b.HTTP)
	}

	for _, addr := range []string{b.HTTP, b.Metrics} {
		ln, err := net.Listen("tcp", addr)
		if err != nil {
			errs = append(errs, fmt.Errorf("%w %q: %w", ErrCantBindToPort, addr, err))
			continue
		}
		defer ln.Close()
	}

	if len(errs) != 0 {
		return errors.Join(errs...)
	}

	return nil
}

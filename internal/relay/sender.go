// Package relay moves submissions between the HTTP front door and the
// record store over UDP. Delivery is fire-and-forget: datagrams can be lost,
// duplicated or reordered and nothing is acknowledged.
package relay

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/rs/zerolog"

	"github.com/hay-kot/formrelay/internal/core/submission"
	"github.com/hay-kot/formrelay/internal/telemetry"
)

// ErrMessageTooLarge is returned when an encoded submission does not fit in
// a single datagram of the configured size.
var ErrMessageTooLarge = errors.New("message exceeds datagram size")

// Sender transmits one datagram per submission to a fixed address. It holds
// no connection state between calls.
type Sender struct {
	addr    string
	maxSize int
	log     zerolog.Logger
	metrics *telemetry.Metrics
}

// NewSender creates a sender targeting addr ("host:port").
func NewSender(addr string, log zerolog.Logger) *Sender {
	return &Sender{
		addr:    addr,
		maxSize: submission.MaxDatagramSize,
		log:     log,
	}
}

// WithMaxSize sets the largest payload the sender will transmit. It should
// match the receiver's buffer size.
func (s *Sender) WithMaxSize(n int) *Sender {
	s.maxSize = n
	return s
}

// WithMetrics records send outcomes on m.
func (s *Sender) WithMetrics(m *telemetry.Metrics) *Sender {
	s.metrics = m
	return s
}

// Addr returns the destination address.
func (s *Sender) Addr() string {
	return s.addr
}

// Send encodes sub and writes it as a single datagram over a fresh socket.
func (s *Sender) Send(ctx context.Context, sub submission.Submission) error {
	err := s.send(ctx, sub)
	if err != nil {
		s.metrics.Sent(telemetry.ResultFailed)
		return err
	}
	s.metrics.Sent(telemetry.ResultSent)
	return nil
}

func (s *Sender) send(ctx context.Context, sub submission.Submission) error {
	data, err := submission.Encode(sub)
	if err != nil {
		return err
	}

	if s.maxSize > 0 && len(data) > s.maxSize {
		return fmt.Errorf("%w: %d bytes, limit %d", ErrMessageTooLarge, len(data), s.maxSize)
	}

	var d net.Dialer
	conn, err := d.DialContext(ctx, "udp", s.addr)
	if err != nil {
		return fmt.Errorf("dial %s: %w", s.addr, err)
	}
	defer conn.Close() //nolint:errcheck

	if _, err := conn.Write(data); err != nil {
		return fmt.Errorf("send datagram to %s: %w", s.addr, err)
	}

	s.log.Debug().
		Str("to", s.addr).
		Int("bytes", len(data)).
		RawJSON("data", data).
		Msg("sent datagram")

	return nil
}

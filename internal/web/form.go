package web

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/hay-kot/formrelay/internal/core/submission"
	"github.com/hay-kot/formrelay/internal/telemetry"
)

// bodyError is a request body problem with the status it maps to.
type bodyError struct {
	status int
	msg    string
}

func (e *bodyError) Error() string {
	return e.msg
}

// readBody reads exactly Content-Length bytes from the request. Anything
// past the declared length is ignored.
func readBody(r *http.Request, limit int64) ([]byte, error) {
	if r.ContentLength < 0 {
		return nil, &bodyError{status: http.StatusLengthRequired, msg: "Content-Length required"}
	}
	if r.ContentLength > limit {
		return nil, &bodyError{
			status: http.StatusRequestEntityTooLarge,
			msg:    fmt.Sprintf("body of %d bytes exceeds limit of %d", r.ContentLength, limit),
		}
	}

	body := make([]byte, r.ContentLength)
	if _, err := io.ReadFull(r.Body, body); err != nil {
		return nil, &bodyError{status: http.StatusBadRequest, msg: fmt.Sprintf("read body: %v", err)}
	}

	return body, nil
}

// handleSubmit decodes a form POST, relays it and redirects home. The
// redirect is sent whether or not the relay succeeds.
func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	log := zerolog.Ctx(r.Context())

	body, err := readBody(r, s.opts.MaxBody)
	if err != nil {
		var be *bodyError
		if !errors.As(err, &be) {
			be = &bodyError{status: http.StatusBadRequest, msg: err.Error()}
		}
		s.metrics.Submission(telemetry.ResultRejected)
		log.Warn().Err(err).Msg("rejected submission")
		http.Error(w, be.msg, be.status)
		return
	}

	sub, err := submission.ParseForm(body)
	if err != nil {
		s.metrics.Submission(telemetry.ResultRejected)
		log.Warn().Err(err).Msg("rejected submission")
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	s.metrics.Submission(telemetry.ResultAccepted)
	log.Debug().Interface("message", sub).Msg("decoded submission")

	if err := s.relay.Send(r.Context(), sub); err != nil {
		log.Error().Err(err).Msg("failed to relay submission")
	}

	w.Header().Set("Location", "/")
	w.WriteHeader(http.StatusFound)
}

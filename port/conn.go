// Package port runs the request/response loop of an Erlang port.
//
// Every packet, in both directions, is a 4 byte big-endian length followed by
// an external term format binary. Requests are tuples of at least two
// elements: element 0 correlates the reply and is passed back untouched,
// element 1 is handed to the Handler and replaced with its result.
//
//	conn := port.NewConn(os.Stdin, os.Stdout, port.WithLogger(logger))
//	err := conn.Run(port.HandlerFunc(func(t bert.Term) bert.Term {
//	    return t
//	}))
//
// Run blocks until the input ends cleanly (nil) or a packet cannot be read,
// decoded, handled or written (the error). Processing is strictly one
// request at a time; a blocking handler blocks the loop.
package port

import (
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/rs/zerolog"

	bert "github.com/diodechain/erlport"
)

var ErrMessageTooLarge = errors.New("port: message too large")

// Handler maps the payload of one request to the payload of its reply. It
// must not modify t.
type Handler interface {
	HandleTerm(t bert.Term) bert.Term
}

type HandlerFunc func(bert.Term) bert.Term

func (f HandlerFunc) HandleTerm(t bert.Term) bert.Term {
	return f(t)
}

type Option func(*Conn)

// WithLogger sets the logger for per message and shutdown events. The
// default discards everything.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Conn) {
		c.log = l
	}
}

// WithMaxMessageSize bounds the declared length of incoming packets. Zero
// means unbounded.
func WithMaxMessageSize(n uint32) Option {
	return func(c *Conn) {
		c.maxSize = n
	}
}

// WithEncoderOptions configures the encoder used for replies, typically to
// register writers for application types returned by the handler.
func WithEncoderOptions(opts ...bert.EncoderOption) Option {
	return func(c *Conn) {
		c.encOpts = append(c.encOpts, opts...)
	}
}

// Conn owns one input and one output stream. It is not safe for concurrent
// use.
type Conn struct {
	r       io.Reader
	w       io.Writer
	enc     *bert.Encoder
	encOpts []bert.EncoderOption
	log     zerolog.Logger
	maxSize uint32
	handled uint64
}

func NewConn(r io.Reader, w io.Writer, opts ...Option) *Conn {
	c := &Conn{
		r:   r,
		w:   w,
		log: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.enc = bert.NewEncoder(w, c.encOpts...)
	return c
}

// Handled returns the number of replies written so far.
func (c *Conn) Handled() uint64 {
	return c.handled
}

// ReadFrame reads the next packet from the input.
func (c *Conn) ReadFrame() ([]byte, error) {
	return ReadFrame(c.r, c.maxSize)
}

// WriteFrame writes an already encoded packet to the output.
func (c *Conn) WriteFrame(payload []byte) error {
	return WriteFrame(c.w, payload)
}

// Handle decodes one request payload, passes element 1 of the envelope to h
// and returns the envelope with element 1 replaced.
func (c *Conn) Handle(payload []byte, h Handler) (bert.Tuple, error) {
	t, err := bert.Decode(payload)
	if err == io.EOF {
		return bert.Tuple{}, fmt.Errorf("%w: empty payload", bert.ErrTruncated)
	}
	if err != nil {
		return bert.Tuple{}, err
	}

	envelope, ok := t.(bert.Tuple)
	if !ok || envelope.Arity() < 2 {
		return bert.Tuple{}, fmt.Errorf("%w: got %s", bert.ErrMalformedEnvelope, bert.Format(t))
	}
	req, err := envelope.Elem(1)
	if err != nil {
		return bert.Tuple{}, err
	}
	return envelope.WithElem(1, h.HandleTerm(req))
}

// Run serves requests until the input ends. It returns nil on a clean end
// of input and the first error otherwise.
func (c *Conn) Run(h Handler) error {
	for {
		payload, err := c.ReadFrame()
		if err == io.EOF {
			c.log.Debug().Uint64("handled", c.handled).Msg("input closed")
			return nil
		}
		if err != nil {
			return c.abort("read", err)
		}

		reply, err := c.Handle(payload, h)
		if err != nil {
			return c.abort("handle", err)
		}

		encoded, err := c.enc.Append(nil, reply)
		if err != nil {
			return c.abort("encode", err)
		}
		if err := c.WriteFrame(encoded); err != nil {
			return c.abort("write", err)
		}
		c.handled++

		if e := c.log.Debug(); e.Enabled() {
			e.Int("request_size", len(payload)).
				Int("reply_size", len(encoded)).
				Str("request", strconv.FormatUint(bert.FingerprintBytes(payload), 16)).
				Str("reply", strconv.FormatUint(bert.FingerprintBytes(encoded), 16)).
				Msg("message handled")
		}
	}
}

func (c *Conn) abort(op string, err error) error {
	c.log.Error().Err(err).Str("op", op).Uint64("handled", c.handled).Msg("connection aborted")
	return fmt.Errorf("port: %s: %w", op, err)
}

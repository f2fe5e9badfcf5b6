package wire

import (
	"bufio"
	"fmt"
	"io"
	"net/textproto"
	"strconv"
)

// HeaderDelimited frames payloads the HTTP way: textual `Key: Value`
// headers terminated by a blank line, with Content-Length giving the body
// size. Readable on the wire, and what header-based RPC stacks expect.
type HeaderDelimited struct {
	rwc         io.ReadWriteCloser
	reader      *textproto.Reader
	raw         *bufio.Reader
	contentType string
	maxFrame    uint32
}

func NewHeaderDelimited(rwc io.ReadWriteCloser, contentType string, maxFrame uint32) *HeaderDelimited {
	if maxFrame == 0 {
		maxFrame = DefaultMaxFrame
	}
	raw := bufio.NewReader(rwc)
	return &HeaderDelimited{
		rwc:         rwc,
		raw:         raw,
		reader:      textproto.NewReader(raw),
		contentType: contentType,
		maxFrame:    maxFrame,
	}
}

func (hd *HeaderDelimited) WriteFrame(payload []byte) error {
	if uint64(len(payload)) > uint64(hd.maxFrame) {
		return fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, len(payload))
	}

	header := "Content-Length: " + strconv.Itoa(len(payload)) + "\r\n" +
		"Content-Type: " + hd.contentType + "\r\n\r\n"
	buf := make([]byte, 0, len(header)+len(payload))
	buf = append(buf, header...)
	buf = append(buf, payload...)
	_, err := hd.rwc.Write(buf)
	return err
}

func (hd *HeaderDelimited) ReadFrame() ([]byte, error) {
	headers, err := hd.reader.ReadMIMEHeader()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedHeader, err)
	}

	lengthText := headers.Get("Content-Length")
	if lengthText == "" {
		return nil, fmt.Errorf("%w: missing Content-Length", ErrMalformedHeader)
	}
	size, err := strconv.ParseUint(lengthText, 10, 32)
	if err != nil {
		return nil, fmt.Errorf("%w: bad Content-Length %q", ErrMalformedHeader, lengthText)
	}
	if uint32(size) > hd.maxFrame {
		return nil, fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, size)
	}

	payload := make([]byte, size)
	if _, err := io.ReadFull(hd.raw, payload); err != nil {
		return nil, err
	}
	return payload, nil
}

func (hd *HeaderDelimited) Close() error {
	return hd.rwc.Close()
}

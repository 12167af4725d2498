package diag

import (
	"errors"
	"fmt"
	"io"
)

const (
	magic   = "AKLD"
	version = 1
)

// ErrBadDump is returned when a dump cannot be parsed.
var ErrBadDump = errors.New("diag: malformed dump")

type writeOptions struct {
	codec       Codec
	compression Compression
}

// WriteOption configures Write.
type WriteOption func(*writeOptions)

// WithCodec sets the codec used to encode layouts. Nil selects DefaultCodec.
func WithCodec(c Codec) WriteOption {
	return func(o *writeOptions) {
		if c == nil {
			c = DefaultCodec
		}
		o.codec = c
	}
}

// WithCompression sets the block compression (default LZ4).
func WithCompression(c Compression) WriteOption {
	return func(o *writeOptions) {
		o.compression = c
	}
}

// Write encodes layouts as a single dump to w.
func Write(w io.Writer, layouts []Layout, opts ...WriteOption) error {
	o := writeOptions{codec: DefaultCodec, compression: CompressionLZ4}
	for _, opt := range opts {
		opt(&o)
	}

	name := o.codec.Name()
	if len(name) > 255 {
		return fmt.Errorf("diag: codec name %q too long", name)
	}
	body, err := o.codec.Marshal(layouts)
	if err != nil {
		return fmt.Errorf("diag: encode with %s: %w", name, err)
	}
	block, err := compressBlock(body, o.compression)
	if err != nil {
		return err
	}

	hdr := make([]byte, 0, len(magic)+3+len(name))
	hdr = append(hdr, magic...)
	hdr = append(hdr, version, byte(o.compression), byte(len(name)))
	hdr = append(hdr, name...)
	if _, err := w.Write(hdr); err != nil {
		return err
	}
	_, err = w.Write(block)
	return err
}

// Read decodes a dump written by Write.
func Read(r io.Reader) ([]Layout, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	if len(data) < len(magic)+3 || string(data[:len(magic)]) != magic {
		return nil, fmt.Errorf("%w: bad magic", ErrBadDump)
	}
	data = data[len(magic):]
	if data[0] != version {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrBadDump, data[0])
	}
	compression := Compression(data[1])
	nameLen := int(data[2])
	data = data[3:]
	if len(data) < nameLen {
		return nil, fmt.Errorf("%w: truncated codec name", ErrBadDump)
	}
	codec, ok := CodecByName(string(data[:nameLen]))
	if !ok {
		return nil, fmt.Errorf("%w: unknown codec %q", ErrBadDump, data[:nameLen])
	}

	body, err := decompressBlock(data[nameLen:], compression)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBadDump, err)
	}
	var layouts []Layout
	if err := codec.Unmarshal(body, &layouts); err != nil {
		return nil, fmt.Errorf("%w: decode with %s: %w", ErrBadDump, codec.Name(), err)
	}
	return layouts, nil
}

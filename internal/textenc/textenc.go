// Package textenc translates between host text (Go strings, always
// UTF-8) and the byte encoding a child process reads and writes.
//
// The child side defaults to UTF-8 but may be any encoding known to
// golang.org/x/text, e.g. "utf-16le" for programs that speak wide
// characters or "windows-1252" for legacy console tools.
package textenc

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/ianaindex"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// Default is the encoding used when none is configured.
const Default = "utf-8"

// Codec converts host strings to child bytes and back.
type Codec struct {
	name string
	enc  encoding.Encoding
}

// Lookup returns the Codec registered under name.  Names are matched
// case-insensitively against the WHATWG and IANA registries; the empty
// string selects UTF-8.
func Lookup(name string) (*Codec, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	switch key {
	case "", "utf-8", "utf8":
		return &Codec{name: Default, enc: unicode.UTF8}, nil
	case "utf-16le":
		// Children never expect a byte order mark mid-stream.
		return &Codec{name: key, enc: unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)}, nil
	case "utf-16be":
		return &Codec{name: key, enc: unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM)}, nil
	}

	if enc, err := htmlindex.Get(key); err == nil && enc != nil {
		canonical, _ := htmlindex.Name(enc)
		if canonical == "" {
			canonical = key
		}
		return &Codec{name: canonical, enc: enc}, nil
	}
	enc, err := ianaindex.IANA.Encoding(key)
	if err != nil || enc == nil {
		return nil, fmt.Errorf("unknown text encoding %q", name)
	}
	return &Codec{name: key, enc: enc}, nil
}

// MustLookup is like Lookup but panics on an unknown name.
func MustLookup(name string) *Codec {
	c, err := Lookup(name)
	if err != nil {
		panic(err)
	}
	return c
}

// Name returns the canonical encoding name.
func (c *Codec) Name() string { return c.name }

// Encode converts s to the child encoding.  The result holds exactly
// the encoded characters with no terminator.  Characters the target
// encoding cannot represent are an error.
func (c *Codec) Encode(s string) ([]byte, error) {
	out, _, err := transform.Bytes(c.enc.NewEncoder(), []byte(s))
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", c.name, err)
	}
	return out, nil
}

// NewStreamDecoder returns a decoder for output that arrives in
// arbitrary chunks.  A character split across two chunks is held back
// until the rest of it arrives.
func (c *Codec) NewStreamDecoder() *StreamDecoder {
	return NewStreamDecoder(c.name, c.enc.NewDecoder())
}

// NewStreamDecoder wraps any decoding transformer; name only labels
// errors.
func NewStreamDecoder(name string, t transform.Transformer) *StreamDecoder {
	t.Reset()
	return &StreamDecoder{name: name, t: t}
}

// StreamDecoder decodes successive chunks of one output stream.  It is
// not safe for concurrent use.
type StreamDecoder struct {
	name    string
	t       transform.Transformer
	pending []byte
}

// Decode converts p, carrying any incomplete trailing character over to
// the next call.  With atEOF set the carry is flushed (as replacement
// characters if it never completed).
func (d *StreamDecoder) Decode(p []byte, atEOF bool) (string, error) {
	src := p
	if len(d.pending) > 0 {
		src = append(d.pending, p...)
		d.pending = nil
	}
	if len(src) == 0 && !atEOF {
		return "", nil
	}

	dst := make([]byte, 3*len(src)+utf8.UTFMax)
	for {
		nDst, nSrc, err := d.t.Transform(dst, src, atEOF)
		switch err {
		case nil:
			return string(dst[:nDst]), nil
		case transform.ErrShortSrc:
			d.pending = append([]byte(nil), src[nSrc:]...)
			return string(dst[:nDst]), nil
		case transform.ErrShortDst:
			// Retry the whole chunk with more room; the transformer has
			// not been told about any of it yet.
			d.t.Reset()
			dst = make([]byte, 2*len(dst))
		default:
			return "", fmt.Errorf("decode %s: %w", d.name, err)
		}
	}
}

// Pending reports how many bytes are held back awaiting completion.
func (d *StreamDecoder) Pending() int { return len(d.pending) }

package unisock

// PayloadKind tags a Payload as text or binary.
type PayloadKind int

const (
	PayloadText PayloadKind = iota + 1
	PayloadBinary
)

// Payload is one message: either a string of text or a contiguous
// byte sequence.
type Payload struct {
	Kind   PayloadKind
	Text   string
	Binary []byte
}

// Text builds a text payload.
func Text(s string) Payload {
	return Payload{Kind: PayloadText, Text: s}
}

// Binary builds a binary payload.
func Binary(b []byte) Payload {
	return Payload{Kind: PayloadBinary, Binary: b}
}

// Len reports the payload length in bytes for binary and in bytes of
// text for text.
func (p Payload) Len() int {
	if p.Kind == PayloadText {
		return len(p.Text)
	}
	return len(p.Binary)
}

// ByteView is a window into a larger backing buffer. Normalize
// resolves it into a slice covering exactly Off..Off+Len of Buf,
// sharing the backing storage.
type ByteView struct {
	Buf []byte
	Off int
	Len int
}

func (v ByteView) bytes() []byte {
	return v.Buf[v.Off : v.Off+v.Len : v.Off+v.Len]
}

// Normalize reconciles a raw native message shape into a Payload.
//
// Strings and contiguous byte slices pass through unchanged. A
// ByteView resolves to its window without copying. An ordered chunk
// sequence ([][]byte, or []any of any accepted binary shape) is
// concatenated, in order and without gaps, into one freshly allocated
// byte sequence. Anything unrecognized becomes an empty binary
// payload; no error is reported.
func Normalize(raw any) Payload {
	switch v := raw.(type) {
	case string:
		return Text(v)
	case []byte:
		return Binary(v)
	case ByteView:
		return Binary(v.bytes())
	case [][]byte:
		return Binary(concat(v))
	case []any:
		chunks := make([][]byte, len(v))
		for i, c := range v {
			chunks[i] = chunkBytes(c)
		}
		return Binary(concat(chunks))
	}
	return Binary([]byte{})
}

// chunkBytes resolves one element of a mixed chunk sequence. An
// unrecognized chunk contributes nothing rather than failing the
// whole sequence.
func chunkBytes(c any) []byte {
	switch v := c.(type) {
	case []byte:
		return v
	case ByteView:
		return v.bytes()
	case string:
		return []byte(v)
	}
	return nil
}

func concat(chunks [][]byte) []byte {
	total := 0
	for _, c := range chunks {
		total += len(c)
	}

	out := make([]byte, 0, total)
	for _, c := range chunks {
		out = append(out, c...)
	}
	return out
}

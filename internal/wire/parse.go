package wire

import (
	"bytes"
	"encoding/binary"
)

// Parse decodes a raw query datagram into a Query. Only the header and the single question are
// decoded; any sections after the question (an EDNS0 OPT record, for example) are ignored.
func Parse(b []byte) (*Query, error) {
	if len(b) < HeaderLen {
		return nil, parseError(Truncated, len(b))
	}

	header := Header{
		ID:    binary.BigEndian.Uint16(b[0:2]),
		Flags: binary.BigEndian.Uint16(b[2:4]),
	}

	if header.Response() {
		return nil, parseError(NotQuery, 2)
	}

	if qdCount := binary.BigEndian.Uint16(b[4:6]); qdCount != 1 {
		return nil, parseError(BadQuestionCount, 4)
	}

	name, offset, err := decodeName(b, HeaderLen)
	if err != nil {
		return nil, err
	}

	if offset+4 > len(b) {
		return nil, parseError(Truncated, len(b))
	}

	return &Query{
		Header: header,
		Question: Question{
			Name:  name,
			Type:  binary.BigEndian.Uint16(b[offset : offset+2]),
			Class: binary.BigEndian.Uint16(b[offset+2 : offset+4]),
		},
	}, nil
}

// decodeName reads an uncompressed, label-length-prefixed name starting at offset. It returns the
// name and the offset just past its terminating root label.
func decodeName(b []byte, offset int) (Name, int, error) {
	var labels [][]byte
	wireLen := 0

	for {
		if offset >= len(b) {
			return Name{}, 0, parseError(Truncated, offset)
		}

		length := int(b[offset])
		if length == 0 {
			return Name{labels: labels}, offset + 1, nil
		}

		if length > MaxLabelLen {
			return Name{}, 0, parseError(InvalidLabel, offset)
		}

		wireLen += 1 + length
		if wireLen >= MaxNameLen {
			// Even a root label immediately after this one would not fit.
			return Name{}, 0, parseError(NameTooLong, offset)
		}

		if offset+1+length > len(b) {
			return Name{}, 0, parseError(Truncated, offset)
		}

		label := make([]byte, length)
		copy(label, b[offset+1:offset+1+length])

		// Keys join labels with '.', so a label may not contain one.
		if bytes.IndexByte(label, '.') >= 0 {
			return Name{}, 0, parseError(InvalidLabel, offset)
		}

		labels = append(labels, label)

		offset += 1 + length
	}
}

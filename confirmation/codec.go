package confirmation

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"math"
	"time"
)

const tokenRecordVersionV1 = 1

var errInvalidRecord = errors.New("invalid confirmation token record")

// Layout v1: version(1) type(1) attempts(2) modifiedUnixNano(8)
// userIDLen(2) userID valueLen(2) value. Integers are big-endian.
func encodeToken(t Token) ([]byte, error) {
	if len(t.UserID) > math.MaxUint16 || len(t.Value) > math.MaxUint16 {
		return nil, errors.New("confirmation token field too long")
	}
	attempts := t.AttemptCount
	if attempts < 0 {
		attempts = 0
	}
	if attempts > math.MaxUint16 {
		attempts = math.MaxUint16
	}

	var buf bytes.Buffer
	buf.Grow(16 + len(t.UserID) + len(t.Value))

	buf.WriteByte(tokenRecordVersionV1)
	buf.WriteByte(byte(t.Type))
	_ = binary.Write(&buf, binary.BigEndian, uint16(attempts))
	_ = binary.Write(&buf, binary.BigEndian, t.Modified.UnixNano())
	_ = binary.Write(&buf, binary.BigEndian, uint16(len(t.UserID)))
	buf.WriteString(t.UserID)
	_ = binary.Write(&buf, binary.BigEndian, uint16(len(t.Value)))
	buf.WriteString(t.Value)

	return buf.Bytes(), nil
}

func decodeToken(data []byte) (Token, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return Token{}, err
	}
	if version != tokenRecordVersionV1 {
		return Token{}, errInvalidRecord
	}

	typ, err := reader.ReadByte()
	if err != nil {
		return Token{}, err
	}
	if TokenType(typ) >= tokenTypeCount {
		return Token{}, errInvalidRecord
	}

	var (
		attempts uint16
		modified int64
	)
	if err := binary.Read(reader, binary.BigEndian, &attempts); err != nil {
		return Token{}, err
	}
	if err := binary.Read(reader, binary.BigEndian, &modified); err != nil {
		return Token{}, err
	}

	userID, err := readString(reader)
	if err != nil {
		return Token{}, err
	}
	value, err := readString(reader)
	if err != nil {
		return Token{}, err
	}
	if reader.Len() != 0 {
		return Token{}, errInvalidRecord
	}

	return Token{
		UserID:       userID,
		Value:        value,
		Type:         TokenType(typ),
		AttemptCount: int(attempts),
		Modified:     time.Unix(0, modified),
	}, nil
}

func readString(reader *bytes.Reader) (string, error) {
	var n uint16
	if err := binary.Read(reader, binary.BigEndian, &n); err != nil {
		return "", err
	}
	raw := make([]byte, n)
	if _, err := io.ReadFull(reader, raw); err != nil {
		return "", err
	}
	return string(raw), nil
}

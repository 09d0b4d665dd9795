package types

import (
	"encoding/base64"
	"encoding/binary"

	sf "github.com/tinode/snowflake"
	"golang.org/x/crypto/xtea"
)

// Length of a base64-encoded 8-byte ID without padding.
const uidBase64Unpadded = 11

// UidGenerator holds snowflake and encryption parameters. It produces
// unique IDs for sessions and notification records. IDs are weakly
// encrypted so they appear random to clients.
type UidGenerator struct {
	seq    *sf.SnowFlake
	cipher *xtea.Cipher
}

// Init initializes the generator. The key must be 16 bytes long.
func (ug *UidGenerator) Init(workerID uint, key []byte) error {
	var err error

	if ug.seq == nil {
		ug.seq, err = sf.NewSnowFlake(uint32(workerID))
	}
	if ug.cipher == nil {
		ug.cipher, err = xtea.NewCipher(key)
	}

	return err
}

// GetStr generates a unique id and returns it as an unpadded base64 string.
func (ug *UidGenerator) GetStr() string {
	buf, err := ug.nextIDBuffer()
	if err != nil {
		return ""
	}
	return base64.URLEncoding.EncodeToString(buf)[:uidBase64Unpadded]
}

func (ug *UidGenerator) nextIDBuffer() ([]byte, error) {
	id, err := ug.seq.Next()
	if err != nil {
		return nil, err
	}

	src := make([]byte, 8)
	dst := make([]byte, 8)
	binary.LittleEndian.PutUint64(src, id)
	ug.cipher.Encrypt(dst, src)

	return dst, nil
}

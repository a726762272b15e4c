package tokens

import (
	"crypto/rand"
	"encoding/hex"
	"math/big"
	"strings"

	"github.com/pkg/errors"
)

const slugAlphabet = "abcdefghijklmnopqrstuvwxyz-0123456789"

// randomSlug draws n characters uniformly from slugAlphabet.
func randomSlug(n int) (string, error) {
	max := big.NewInt(int64(len(slugAlphabet)))
	var b strings.Builder
	b.Grow(n)
	for i := 0; i < n; i++ {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", errors.Wrap(err, "read random")
		}
		b.WriteByte(slugAlphabet[idx.Int64()])
	}
	return b.String(), nil
}

// randomOTP is 3 random bytes as 6 uppercase hex characters.
func randomOTP() (string, error) {
	buf := make([]byte, 3)
	if _, err := rand.Read(buf); err != nil {
		return "", errors.Wrap(err, "read random")
	}
	return strings.ToUpper(hex.EncodeToString(buf)), nil
}

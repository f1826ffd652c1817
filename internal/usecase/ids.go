package usecase

import (
	"crypto/rand"
	"math/big"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

const (
	bookingPrefix   = "BK"
	bookingAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	bookingLength   = 9
)

var newUUID = func() string {
	return uuid.NewString()
}

// newMessageID returns a lexically time-ordered id.
var newMessageID = func(t time.Time) string {
	return ulid.MustNew(ulid.Timestamp(t), ulid.DefaultEntropy()).String()
}

var now = func() time.Time {
	return time.Now().UTC()
}

// newBookingNumber returns "BK" followed by nine random uppercase letters or digits.
func newBookingNumber() (string, error) {
	var b strings.Builder
	b.Grow(len(bookingPrefix) + bookingLength)
	b.WriteString(bookingPrefix)
	limit := big.NewInt(int64(len(bookingAlphabet)))
	for i := 0; i < bookingLength; i++ {
		n, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", err
		}
		b.WriteByte(bookingAlphabet[n.Int64()])
	}
	return b.String(), nil
}

// threadIDFor gives both participants the same thread whoever starts it.
func threadIDFor(a, b string) string {
	pair := []string{a, b}
	sort.Strings(pair)
	return pair[0] + "_" + pair[1]
}

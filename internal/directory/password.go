package directory

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// Character sets for generated passwords. Look-alike characters (l, 1, I, O, 0)
// are left out so the credential survives being read off an email.
const (
	lowerChars  = "abcdefghijkmnopqrstuvwxyz"
	upperChars  = "ABCDEFGHJKLMNPQRSTUVWXYZ"
	digitChars  = "23456789"
	symbolChars = "!@#$%^&*-_=+?"
)

const (
	// PasswordLength is the length of every generated password.
	PasswordLength = 16
	// minPerClass is how many characters each set contributes at least.
	minPerClass = 2
)

// GeneratePassword returns a random 16-character password with at least two
// characters from each set, shuffled so their positions are not predictable.
func GeneratePassword() (string, error) {
	sets := []string{lowerChars, upperChars, digitChars, symbolChars}
	all := lowerChars + upperChars + digitChars + symbolChars

	buf := make([]byte, 0, PasswordLength)
	for _, set := range sets {
		for i := 0; i < minPerClass; i++ {
			c, err := pick(set)
			if err != nil {
				return "", err
			}
			buf = append(buf, c)
		}
	}
	for len(buf) < PasswordLength {
		c, err := pick(all)
		if err != nil {
			return "", err
		}
		buf = append(buf, c)
	}

	for i := len(buf) - 1; i > 0; i-- {
		j, err := randInt(i + 1)
		if err != nil {
			return "", err
		}
		buf[i], buf[j] = buf[j], buf[i]
	}

	return string(buf), nil
}

func pick(set string) (byte, error) {
	i, err := randInt(len(set))
	if err != nil {
		return 0, err
	}
	return set[i], nil
}

func randInt(n int) (int, error) {
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		return 0, fmt.Errorf("failed to read random source: %w", err)
	}
	return int(v.Int64()), nil
}

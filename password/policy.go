package password

import (
	"errors"
	"fmt"

	passwordvalidator "github.com/wagslane/go-password-validator"
)

// DefaultMinEntropyBits is used when a policy is configured with zero entropy.
const DefaultMinEntropyBits = 60

// ErrPolicy wraps every policy rejection.
var ErrPolicy = errors.New("password policy violation")

// CheckPolicy rejects passwords shorter than the hashing floor or weaker than
// minEntropy bits.
func CheckPolicy(password string, minEntropy float64) error {
	if len(password) < minPassBytes {
		return fmt.Errorf("%w: %v", ErrPolicy, ErrPasswordTooShort)
	}
	if minEntropy <= 0 {
		minEntropy = DefaultMinEntropyBits
	}
	if err := passwordvalidator.Validate(password, minEntropy); err != nil {
		return fmt.Errorf("%w: %v", ErrPolicy, err)
	}
	return nil
}

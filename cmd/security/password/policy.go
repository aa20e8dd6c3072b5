package password

import "unicode/utf8"

// Validate checks password policy. It does not mutate input.
// A Policy.MinLength below MinLengthFloor is treated as MinLengthFloor.
func (c Config) Validate(password string) error {
	// Count characters (runes), not bytes, to be user-friendly.
	n := utf8.RuneCountInString(password)

	if n < c.minLength() {
		return ErrPasswordTooShort
	}
	if n > c.Policy.MaxLength {
		return ErrPasswordTooLong
	}
	return nil
}

func (c Config) minLength() int {
	return max(c.Policy.MinLength, MinLengthFloor)
}

package attendance

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"
)

var (
	ErrInvalidName     = errors.New("name should contain only letters and spaces")
	ErrInvalidRollNo   = errors.New("roll number should be alphanumeric")
	ErrDuplicateRollNo = errors.New("roll number already exists")
	ErrStudentNotFound = errors.New("student not found")
	ErrUnknownSubject  = errors.New("recognized student not found in database")
	ErrNoImage         = errors.New("no image data received")
	ErrNoArtifact      = errors.New("enrollment artifact not produced")
	ErrInvalidDate     = errors.New("invalid date, use YYYY-MM-DD")
)

// ValidateName trims name and checks it holds only letters and spaces.
func ValidateName(name string) (string, error) {
	name = strings.TrimSpace(name)
	letters := 0
	for _, r := range name {
		switch {
		case unicode.IsLetter(r):
			letters++
		case r == ' ':
		default:
			return "", ErrInvalidName
		}
	}
	if letters == 0 {
		return "", ErrInvalidName
	}
	return name, nil
}

// ValidateRollNo trims rollNo and checks it is non-empty and alphanumeric.
func ValidateRollNo(rollNo string) (string, error) {
	rollNo = strings.TrimSpace(rollNo)
	if rollNo == "" {
		return "", ErrInvalidRollNo
	}
	for _, r := range rollNo {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			return "", ErrInvalidRollNo
		}
	}
	return rollNo, nil
}

// ParseDate validates a YYYY-MM-DD day and returns it normalised.
func ParseDate(s string) (string, error) {
	d, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return d.Format(DateLayout), nil
}

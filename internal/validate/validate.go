// Package validate holds the input predicates shared by the services.
// They have no side effects and are safe to call repeatedly.
package validate

import (
	"strings"
	"unicode/utf8"

	"task-manager/internal/domain"
)

const (
	MinTitleLength    = 3
	MinUsernameLength = 3
	MinPasswordLength = 8
)

// TaskData reports whether title has at least MinTitleLength characters after
// trimming and status is one of the accepted values.
func TaskData(title string, status domain.TaskStatus) bool {
	return Title(title) && status.Valid()
}

func Title(title string) bool {
	return trimmedLen(title) >= MinTitleLength
}

func Username(username string) bool {
	return trimmedLen(username) >= MinUsernameLength
}

func Password(password string) bool {
	return trimmedLen(password) >= MinPasswordLength
}

func trimmedLen(s string) int {
	return utf8.RuneCountInString(strings.TrimSpace(s))
}

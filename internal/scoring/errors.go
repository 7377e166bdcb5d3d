package scoring

import (
	"errors"
	"fmt"
)

// MinPosts is the smallest batch the sensitivity coefficient is defined for
const MinPosts = 10

// ErrInsufficientData matches any InsufficientDataError with errors.Is
var ErrInsufficientData = errors.New("insufficient data")

// InsufficientDataError reports a batch that is too small to analyze
type InsufficientDataError struct {
	Got  int
	Need int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("insufficient data: need at least %d posts, got %d", e.Need, e.Got)
}

// Is reports whether target is ErrInsufficientData
func (e *InsufficientDataError) Is(target error) bool {
	return target == ErrInsufficientData
}

// RequireMinPosts returns an InsufficientDataError when n is below MinPosts
func RequireMinPosts(n int) error {
	if n < MinPosts {
		return &InsufficientDataError{Got: n, Need: MinPosts}
	}
	return nil
}

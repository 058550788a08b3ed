package domain

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDomainErrors_AreDistinctAndWrappable(t *testing.T) {
	all := []error{
		ErrNoFiles, ErrInvalidPath, ErrNoMarkdown, ErrInvalidMetadata,
		ErrMissingOutput, ErrBusy, ErrInvalidAPIKey, ErrMissingAPIKey, ErrTokenStoreNotReady,
	}
	for i, a := range all {
		assert.NotEmpty(t, a.Error())
		for j, b := range all {
			if i != j {
				assert.NotEqual(t, a, b)
			}
		}
		assert.ErrorIs(t, fmt.Errorf("context: %w", a), a)
	}
}

func TestIsClientError(t *testing.T) {
	assert.True(t, IsClientError(fmt.Errorf("x: %w", ErrInvalidPath)))
	assert.True(t, IsClientError(ErrNoMarkdown))
	assert.True(t, IsClientError(ErrNoFiles))
	assert.True(t, IsClientError(fmt.Errorf("%w: bad", ErrInvalidMetadata)))
	assert.True(t, IsClientError(fmt.Errorf("wrap: %w", &EntryNotFoundError{Path: "a.md"})))

	assert.False(t, IsClientError(&ConversionError{Log: "x"}))
	assert.False(t, IsClientError(&TimeoutError{Limit: time.Second}))
	assert.False(t, IsClientError(ErrMissingOutput))
	assert.False(t, IsClientError(errors.New("other")))
}

func TestTypedErrorMessages(t *testing.T) {
	assert.Equal(t, "Markdown entry file not found: docs/a.md", (&EntryNotFoundError{Path: "docs/a.md"}).Error())
	assert.True(t, strings.HasPrefix((&ConversionError{Log: "! Undefined control sequence."}).Error(), "Pandoc/LaTeX error:\n"))
	assert.Contains(t, (&TimeoutError{Limit: 180 * time.Second}).Error(), "3m0s")
}

package orders

import (
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewOrderNumber(t *testing.T) {
	now := time.Date(2026, 3, 4, 5, 6, 7, 0, time.FixedZone("X", 3600))

	a := NewOrderNumber(now)
	b := NewOrderNumber(now)

	assert.Regexp(t, regexp.MustCompile(`^ORD-20260304040607-[0-9A-F]{8}$`), a)
	assert.NotEqual(t, a, b)
}

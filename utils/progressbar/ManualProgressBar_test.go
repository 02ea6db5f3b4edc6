package progressbar

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestManualProgressBar(t *testing.T) {
	var out bytes.Buffer
	bar := NewManualProgressBar(&out, 10, 4)

	bar.Increment()
	bar.Increment()
	bar.SetStatus("best=%.1f", 12.5)
	s := bar.String()

	assert.True(t, strings.HasPrefix(s, "|"+strings.Repeat("█", 5)+
		strings.Repeat(" ", 5)+"|"))
	assert.Contains(t, s, "50.00%")
	assert.Contains(t, s, "best=12.5")

	for i := 0; i < 10; i++ {
		bar.Increment()
	}
	assert.Contains(t, bar.String(), "100.00%")

	bar.Display()
	bar.Close()
	assert.Contains(t, out.String(), "100.00%")
}

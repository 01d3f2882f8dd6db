package cmd

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitChunks_GroupsParagraphs(t *testing.T) {
	content := "first paragraph\n\nsecond paragraph\n\n\n\nthird"

	chunks := splitChunks(content)

	require.Len(t, chunks, 1)
	assert.Equal(t, "first paragraph\n\nsecond paragraph\n\nthird", chunks[0])
}

func TestSplitChunks_SplitsAtTarget(t *testing.T) {
	big := strings.Repeat("a", chunkTargetChars)
	content := big + "\n\n" + big + "\n\nsmall tail"

	chunks := splitChunks(content)

	require.Len(t, chunks, 3)
	assert.Equal(t, big, chunks[0])
	assert.Equal(t, big, chunks[1])
	assert.Equal(t, "small tail", chunks[2])
}

func TestSplitChunks_Empty(t *testing.T) {
	assert.Empty(t, splitChunks(""))
	assert.Empty(t, splitChunks("\n\n\n\n"))
}

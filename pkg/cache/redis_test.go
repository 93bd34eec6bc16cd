package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKey(t *testing.T) {
	assert.Equal(t, "notebook", Key())
	assert.Equal(t, "notebook:defaulters:class-1:all:2", Key("defaulters", "class-1", "", "all", "2"))
	assert.Equal(t, "notebook:defaulters:class-1", Key(" defaulters ", "class-1 "))
}

package update

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRejectsInvalidVersion(t *testing.T) {
	_, _, err := Check("dev-build")
	assert.Error(t, err)

	_, err = Apply("dev-build")
	assert.Error(t, err)
}

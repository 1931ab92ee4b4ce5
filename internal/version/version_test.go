package version_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jrhodes/barrierscreen/internal/version"
)

func TestStringIncludesDirtySuffix(t *testing.T) {
	i := version.Info{Version: "1.2.3", Commit: "abc123", Dirty: true}
	assert.Equal(t, "barrierscreen 1.2.3 (abc123-DIRTY)", i.String())
}

func TestStringCleanTreeOmitsSuffix(t *testing.T) {
	i := version.Info{Version: "1.2.3", Commit: "abc123"}
	assert.Equal(t, "barrierscreen 1.2.3 (abc123)", i.String())
}

func TestGetNeverPanics(t *testing.T) {
	assert.NotPanics(t, func() {
		_ = version.Get()
	})
}

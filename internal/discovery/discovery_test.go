package discovery_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jrhodes/barrierscreen/internal/discovery"
)

func TestServiceTypesCoversAllThreeLineages(t *testing.T) {
	assert.Contains(t, discovery.ServiceTypes, "_barrier._tcp")
	assert.Contains(t, discovery.ServiceTypes, "_synergy._tcp")
	assert.Contains(t, discovery.ServiceTypes, "_deskflow._tcp")
}

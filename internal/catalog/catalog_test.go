package catalog

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/apitoolkit/timefusion/internal/txerrors"
	"github.com/apitoolkit/timefusion/internal/txtable"
)

func TestResolveTableUnknownProjectNoDefault(t *testing.T) {
	c := New(txtable.Location{Bucket: "b", Prefix: "p", Endpoint: "http://localhost:9000"})

	_, err := c.ResolveTable("acme")
	assert.ErrorIs(t, err, txerrors.ErrUnknownProject)
}

func TestRegisteredFalseForUnregisteredProject(t *testing.T) {
	c := New(txtable.Location{Bucket: "b", Prefix: "p", Endpoint: "http://localhost:9000"})
	assert.False(t, c.Registered(DefaultProject))
}

func TestRegisterProjectRejectsBadURI(t *testing.T) {
	c := New(txtable.Location{Bucket: "b", Prefix: "p", Endpoint: "http://localhost:9000"})

	err := c.RegisterProject(context.Background(), "acme", "not-a-uri", nil, nil, nil)
	assert.ErrorIs(t, err, txerrors.ErrBadEndpoint)
}

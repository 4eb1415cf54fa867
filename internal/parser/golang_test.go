package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codegraph/codegraph-go/internal/models"
)

func TestGoDeclarations(t *testing.T) {
	src := `
package server

const maxConns = 64

var pool *Pool

type Server struct {
	addr string
}

type Handler interface {
	Serve() error
}

type Port = int

func New(addr string) *Server {
	return &Server{addr: addr}
}

func (s *Server) Start() error {
	s.listen()
	return nil
}

func (s *Server) listen() {}
`
	res := parseString(t, "internal/server/server.go", src)

	require.NotNil(t, findEntity(res, models.KindVariable, "pool"))
	require.NotNil(t, findEntity(res, models.KindVariable, "maxConns"))

	st := findEntity(res, models.KindStruct, "Server")
	require.NotNil(t, st)

	iface := findEntity(res, models.KindClass, "Handler")
	require.NotNil(t, iface)
	assert.Equal(t, "interface", iface.Attrs["declaration"])

	fn := findEntity(res, models.KindFunction, "New")
	require.NotNil(t, fn)
	assert.Equal(t, true, fn.Attrs["exported"])

	start := findEntity(res, models.KindMethod, "Start")
	require.NotNil(t, start)
	assert.Equal(t, "Server", start.Attrs["receiver"])
	assert.Equal(t, "internal.server.server.Server.Start", start.QualifiedName)

	// Methods hang off their receiver type.
	require.NotNil(t, findRel(res, models.RelContains, "internal.server.server.Server", start.QualifiedName))
	require.NotNil(t, findRel(res, models.RelCalls, start.QualifiedName, "listen"))
}

func TestGoBuiltinsIgnored(t *testing.T) {
	src := `
package util

func grow(xs []int) []int {
	return append(xs, len(xs))
}
`
	res := parseString(t, "internal/util/grow.go", src)
	for _, r := range res.Relationships {
		if r.Type == models.RelCalls {
			assert.NotEqual(t, "append", r.TargetName)
			assert.NotEqual(t, "len", r.TargetName)
		}
	}
}

func TestGoTestFileSemantics(t *testing.T) {
	src := `
package codec

import "testing"

func TestRoundTrip(t *testing.T) {
	Encode(nil)
	t.Errorf("boom")
}
`
	res := parseString(t, "internal/codec/codec_test.go", src)

	tc := findEntity(res, models.KindTestCase, "TestRoundTrip")
	require.NotNil(t, tc)
	assert.Equal(t, "testing", tc.Attrs["framework"])
	require.NotNil(t, findRel(res, models.RelTests, tc.QualifiedName, "Encode"))
	require.NotNil(t, findEntity(res, models.KindAssertion, "assert:8"))
}

package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codegraph/codegraph-go/internal/models"
)

func TestJSFunctionsAndClasses(t *testing.T) {
	src := `
function parseFrame(buf) {
  return decode(buf);
}

const handle = (msg) => {
  parseFrame(msg);
};

class Session {
  open() {
    this.reset();
  }
  reset() {}
}
`
	res := parseString(t, "web/session.js", src)

	require.NotNil(t, findEntity(res, models.KindFunction, "parseFrame"))

	arrow := findEntity(res, models.KindFunction, "handle")
	require.NotNil(t, arrow)
	assert.Equal(t, true, arrow.Attrs["arrow"])

	cls := findEntity(res, models.KindClass, "Session")
	require.NotNil(t, cls)
	open := findEntity(res, models.KindMethod, "open")
	require.NotNil(t, open)
	assert.Equal(t, "web.session.Session.open", open.QualifiedName)

	require.NotNil(t, findRel(res, models.RelCalls, "web.session.handle", "parseFrame"))

	// this.reset() stays module-scoped.
	call := findRel(res, models.RelCalls, "web.session.Session.open", "reset")
	require.NotNil(t, call)
	assert.Equal(t, models.ScopeModule, call.Scope)
}

func TestJSImportRewrite(t *testing.T) {
	src := `
import { encode as enc } from './codec';
import http from './transport/http';

function send(data) {
  enc(data);
  http(data);
}
`
	res := parseString(t, "web/net/send.js", src)

	require.NotNil(t, findRel(res, models.RelCalls, "web.net.send.send", "web.net.codec.encode"))
	require.NotNil(t, findRel(res, models.RelCalls, "web.net.send.send", "web.net.transport.http.http"))
}

func TestTypeScriptDeclarations(t *testing.T) {
	src := `
interface Codec {
  encode(data: string): string;
}

enum Mode {
  Fast,
  Safe,
}

type Handler = (msg: string) => void;

function run(h: Handler): void {
  h("x");
}
`
	res := parseString(t, "web/types.ts", src)

	iface := findEntity(res, models.KindClass, "Codec")
	require.NotNil(t, iface)
	assert.Equal(t, "interface", iface.Attrs["declaration"])
	require.NotNil(t, findEntity(res, models.KindEnum, "Mode"))
	require.NotNil(t, findEntity(res, models.KindTypedef, "Handler"))
	require.NotNil(t, findEntity(res, models.KindFunction, "run"))
}

func TestJestTestRegistration(t *testing.T) {
	src := `
describe('codec', () => {
  test('round trips frames', () => {
    encode("x");
    expect(1).toBe(1);
  });
});
`
	res := parseString(t, "web/codec.test.js", src)

	tc := findEntity(res, models.KindTestCase, "round trips frames")
	require.NotNil(t, tc)
	assert.Equal(t, "jest", tc.Attrs["framework"])

	require.NotNil(t, findEntity(res, models.KindTestSuite, "codec.test"))
	require.NotNil(t, findRel(res, models.RelInSuite, tc.QualifiedName, ""))
	require.NotNil(t, findRel(res, models.RelTests, tc.QualifiedName, "encode"))
	require.NotNil(t, findEntity(res, models.KindAssertion, "assert:5"))
}

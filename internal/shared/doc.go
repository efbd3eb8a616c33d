// Package shared holds cross-cutting helpers that belong to no single
// pipeline stage or transport layer.
//
// Its only current member is the testutil subpackage: spreadsheet and
// record fixtures for pipeline tests, plus a buffered slog handler with
// message and attribute assertions:
//
//	func TestSomething(t *testing.T) {
//	    logger, logs := testutil.NewTestLogger(t)
//	    svc := NewService(logger)
//	    // ...
//	    assert.True(t, logs.ContainsMessage("file processed"))
//	}
//
// Domain types live in pkg/contracts/domain, not here; nothing in this
// tree may import other internal packages.
package shared

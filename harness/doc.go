// Package harness composes the testbed fixtures for a Go test package.
//
// A package declares one Suite and runs it from TestMain:
//
//	var suite = harness.New(testapp.Factory(nil))
//
//	func TestMain(m *testing.M) {
//		os.Exit(harness.Main(m, suite))
//	}
//
// Fixtures are built on first use. The application, its migrated database
// and the live server live as long as the test binary; database isolation
// scopes, clients, entry point overrides and browser sessions are torn down
// when the requesting test ends. Dependencies are explicit: App comes first,
// DB and Browser build on it, Users builds on DB.
package harness

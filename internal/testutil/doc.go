// Package testutil provides shared test fixtures: a fake core.Runtime backed
// by in-memory stores and scripted model mocks, a fluent memory builder and a
// canned character definition. It is internal so production code can never
// depend on test scaffolding.
package testutil

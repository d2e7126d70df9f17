// Package mocks provides centralized mock implementations for testing.
//
// Each mock is a struct with one function field per interface method plus
// call tracking. A nil function field falls back to the mock's default
// behavior, so tests only set what they care about:
//
//	client := &mocks.MockClient{
//	    CompleteFn: func(ctx context.Context, req generation.Request) (*generation.Response, error) {
//	        return &generation.Response{Text: "YES"}, nil
//	    },
//	}
package mocks

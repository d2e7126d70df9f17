// Package gemini implements generation.Client on top of Google's Gemini API
// (google.golang.org/genai).
//
// This package is an infrastructure adapter: it maps generation.Request onto
// a GenerateContent call and translates the response and API errors back
// into the generation package's vocabulary.
//
// Key behaviors:
//
//  1. Sampling parameters map onto GenerateContentConfig; zero values keep
//     the service defaults.
//  2. A request with Choices is sent with the "text/x.enum" response type and
//     a string enum schema, so the model can only answer with one of them.
//  3. HTTP 429 and 5xx responses, network failures and deadline expiry are
//     reported as generation.ErrTransientFailure; safety blocks as
//     generation.ErrContentBlocked.
//
// Gemini has no repetition penalty parameter; Sampling.RepetitionPenalty is
// ignored by this client.
package gemini

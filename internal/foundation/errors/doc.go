// Package errors provides classified error primitives for the assetpipe CLI and dev server.
//
// A ClassifiedError carries a category and a severity next to the message and cause.
// Build steps return plain wrapped errors; classification happens at the boundaries
// (CLI exit codes, HTTP responses) where the category decides the presentation.
//
//	err := errors.WrapError(cause, errors.CategoryBuild, "target failed").
//		WithContext("target", "build").
//		Build()
package errors

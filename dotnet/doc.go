// Package dotnet extracts ECMA-335 metadata from .NET PE images.
//
// The extractor is built for hostile input. It never trusts a length or
// offset it read from the image: every access goes through an
// overflow-safe bounds oracle, and malformed structures degrade the
// report instead of failing it. Use ExtractBytes for raw file contents
// or Extract when a pefile.View is already at hand.
package dotnet

// Package precompile fingerprints build outputs and maintains a
// sprockets-compatible manifest so the application server can map logical
// asset names to digested files.
//
// A fingerprinted file is named <base>-<digest><ext>, where digest is the hex
// blake3 digest of its content. The manifest (.sprockets-manifest.json by
// default) lives in the output directory and has the shape
//
//	{
//	  "files":  {"common-2f1c....js": {"logical_path": "common.js", "mtime": "...", "size": 123, "digest": "2f1c...", "integrity": "sha256-..."}},
//	  "assets": {"common.js": "common-2f1c....js"},
//	  "revision": "<git HEAD of the source tree>"
//	}
package precompile

// Package document reads JSON documents from a content store.
//
// A [Store] maps a relative path to exactly one JSON value. Two backends
// exist:
//   - [FileStore]: files under a local directory (default "content"), opened
//     through os.Root so no request can read outside it
//   - [S3Store]: objects under a bucket prefix, optionally pinned to a
//     release id published in SSM (see [ResolveS3Prefix])
//
// Every document is validated before it is returned: the bytes must hold a
// single well-formed JSON value with nothing but whitespace after it. The
// returned value is the compacted form of the stored document.
package document

// Package fetch provides the HTTP plumbing for talking to the wiki: proxy
// wiring, timeouts, response decoding, and retry classification.
//
// # Two clients
//
// Page and tree requests answer within seconds or not at all, while
// attachment downloads can legitimately run for minutes. The two concerns
// get separate http.Clients with separate timeouts so a slow download never
// widens the failure window for pages, and a tight page timeout never kills
// a healthy download.
//
// # Decoding
//
// Requests advertise "Accept-Encoding: gzip, deflate" explicitly for binary
// downloads, which switches off Go's transparent gzip handling. All response
// bodies therefore pass through DecodeStream, which undoes gzip, zlib and
// raw deflate as needed. Page bodies additionally go through charset
// detection (meta tags, BOM, Content-Type) because self-hosted wikis in the
// wild still serve GBK and GB2312.
package fetch

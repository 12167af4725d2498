// Package diag captures and serializes allocator layouts for offline
// fragmentation and leak analysis.
//
// A Layout lists the free, live and pending (stale) spans of one allocator.
// Every allocator in this module can produce one, and Check verifies that the
// spans exactly tile the allocator's capacity.
//
// # Dump format
//
//	magic "AKLD" | version u8 | compression u8 | codec name len u8 | codec name |
//	block: uncompressed size u32 | compressed size u32 (0 = stored) | data
//
// The block body is the codec encoding of a []Layout.
//
//	var buf bytes.Buffer
//	err := diag.Write(&buf, []diag.Layout{fl.Layout()}, diag.WithCompression(diag.CompressionZSTD))
//	layouts, err := diag.Read(&buf)
package diag

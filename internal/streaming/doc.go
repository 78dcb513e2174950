// Package streaming protects asset responses from clients that stop reading.
//
// HLS segments are served with http.ServeContent, which handles Range and
// conditional requests but blocks for as long as the client leaves its TCP
// window closed. The server runs without a global WriteTimeout because
// synchronous uploads can take as long as an encode, so asset handlers wrap
// their ResponseWriter instead:
//
//	sw := streaming.NewWriter(r.Context(), w, streaming.DefaultConfig())
//	defer sw.Finish("segment")
//	http.ServeContent(sw, r, name, modTime, f)
//
// Large writes are split into chunks and each chunk is written under a fresh
// connection deadline set through http.ResponseController. A client that
// accepts nothing for WriteTimeout gets its connection dropped. Writers that
// cannot take deadlines, such as httptest.ResponseRecorder, are written to
// without them.
//
// Finish clears the deadline and records clipstream_asset_bytes_served_total
// and, for abandoned responses, clipstream_asset_stream_aborts_total.
package streaming

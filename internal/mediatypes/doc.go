// Package mediatypes provides shared file-type definitions for the ingestion
// service: which raw uploads are accepted and how published assets are typed.
//
// It has no dependencies beyond the standard library so that intake,
// pipeline and static serving code can all import it without cycles.
//
//	ext := mediatypes.Ext(header.Filename)
//	if !mediatypes.IsUploadExtension(ext) {
//	    // reject as invalid input
//	}
//
//	w.Header().Set("Content-Type", mediatypes.GetMimeType(mediatypes.Ext(path)))
package mediatypes

// Package media generates the catalog thumbnail for an uploaded video.
//
// A Thumbnailer asks ffmpeg for one representative frame as PNG, resizes it
// to a fixed width of 640 pixels with proportional height, and writes it as
// a JPEG. The resize is done by a Resizer: ImagingResizer (pure Go, default)
// or VipsResizer (libvips, selected with THUMBNAIL_ENGINE=vips).
package media

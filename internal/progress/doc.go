// Package progress reports finished thumbnails on standard output.
package progress

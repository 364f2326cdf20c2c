// Package platform holds OS integration: well-known directories, opening and
// revealing files in the desktop shell, locating finished downloads, and
// listing playlist entries for queueing.
package platform

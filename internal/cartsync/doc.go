// Package cartsync pushes a companion Lua file into the code section of its
// PICO-8 cartridge and, in the other direction, creates missing companions
// from existing cartridges.
//
// One Sync reads both files fresh, runs the preprocessor, and rewrites only
// the code region. Every failure happens before the backup and the write, so
// an error leaves both files as they were.
package cartsync

// Package textutil provides filename sanitization and token-based text
// matching used when pairing downloaded audio files with queued tracks.
//
// Tokenization normalizes text to NFC, lowercases it, splits on
// non-alphanumeric characters, and drops very short tokens.
package textutil

package core

import "errors"

// The error kinds surfaced by parse, sample reading and segmenting. Callers
// match them with errors.Is; every site wraps one of these with context.
var (
    // EOF in the middle of a box or field, or a read beyond the last sample.
    ErrTruncated = errors.New("truncated")

    // A declared box size below 8 or exceeding the enclosing window.
    ErrInvalidSize = errors.New("invalid box size")

    // A FullBox version the parser does not implement.
    ErrUnsupportedVersion = errors.New("unsupported version")

    // Table entry counts disagree with declared counts, or a sample index
    // query falls outside table coverage.
    ErrMalformedTable = errors.New("malformed table")

    // The indexer cannot locate stsc/stsz/stco/stts under the trak.
    ErrMissingRequiredBox = errors.New("missing required box")

    // An underlying stream failure, distinct from running out of bytes.
    ErrIOError = errors.New("io error")
)

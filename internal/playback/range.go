package playback

import (
	"errors"
	"strconv"
	"strings"
)

var (
	// ErrRangeSyntax marks a Range header the streamer should ignore,
	// falling back to a full response.
	ErrRangeSyntax = errors.New("malformed range header")
	// ErrRangeUnsatisfiable marks a well-formed range that lies outside
	// the file and must be answered with 416.
	ErrRangeUnsatisfiable = errors.New("range outside file bounds")
)

// ByteRange is a resolved byte window within a file of known size.
type ByteRange struct {
	Start  int64
	Length int64
}

// End returns the inclusive last offset of the window.
func (br ByteRange) End() int64 {
	return br.Start + br.Length - 1
}

// ContentRange renders the Content-Range header value for a 206.
func (br ByteRange) ContentRange(total int64) string {
	return "bytes " + strconv.FormatInt(br.Start, 10) +
		"-" + strconv.FormatInt(br.End(), 10) +
		"/" + strconv.FormatInt(total, 10)
}

// ResolveRange interprets an HTTP Range header against a file size.
// ok is false when the header is absent. Only the first range of a
// multi-range request is honored; ends past the file are clamped.
func ResolveRange(header string, size int64) (br ByteRange, ok bool, err error) {
	if header == "" {
		return ByteRange{}, false, nil
	}
	spec, hasPrefix := strings.CutPrefix(header, "bytes=")
	if !hasPrefix {
		return ByteRange{}, false, ErrRangeSyntax
	}
	if first, _, multi := strings.Cut(spec, ","); multi {
		spec = strings.TrimSpace(first)
	}
	startPart, endPart, dashed := strings.Cut(spec, "-")
	if !dashed {
		return ByteRange{}, false, ErrRangeSyntax
	}

	var start, end int64
	if startPart == "" {
		suffix, perr := strconv.ParseInt(endPart, 10, 64)
		if perr != nil || suffix <= 0 {
			return ByteRange{}, false, ErrRangeSyntax
		}
		start = size - suffix
		if start < 0 {
			start = 0
		}
		end = size - 1
	} else {
		start, err = strconv.ParseInt(startPart, 10, 64)
		if err != nil || start < 0 {
			return ByteRange{}, false, ErrRangeSyntax
		}
		end = size - 1
		if endPart != "" {
			end, err = strconv.ParseInt(endPart, 10, 64)
			if err != nil {
				return ByteRange{}, false, ErrRangeSyntax
			}
		}
	}

	if start > end || start >= size {
		return ByteRange{}, false, ErrRangeUnsatisfiable
	}
	if end >= size {
		end = size - 1
	}
	return ByteRange{Start: start, Length: end - start + 1}, true, nil
}

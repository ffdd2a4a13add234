package chunked

import (
	"regexp"
	"strconv"
)

var contentRangeRE = regexp.MustCompile(`^bytes (\d+)-(\d+)/(\d+)$`)

// ByteRange is a declared chunk position. End is inclusive.
type ByteRange struct {
	Start int64
	End   int64
	Total int64
}

func (r ByteRange) ChunkSize() int64 {
	return r.End - r.Start + 1
}

// parseContentRange reads "bytes <start>-<end>/<total>". A header that
// doesn't match, including numbers too large for an int64, is treated the
// same as no header.
func parseContentRange(header string) (ByteRange, bool) {
	m := contentRangeRE.FindStringSubmatch(header)
	if m == nil {
		return ByteRange{}, false
	}

	var (
		r   ByteRange
		err error
	)

	if r.Start, err = strconv.ParseInt(m[1], 10, 64); err != nil {
		return ByteRange{}, false
	}

	if r.End, err = strconv.ParseInt(m[2], 10, 64); err != nil {
		return ByteRange{}, false
	}

	if r.Total, err = strconv.ParseInt(m[3], 10, 64); err != nil {
		return ByteRange{}, false
	}

	return r, true
}

// chunkRange works out the range for a chunk of chunkSize bytes. Without a
// usable header the chunk is taken to be the whole file.
func chunkRange(header string, chunkSize int64, requireHeader bool) (ByteRange, error) {
	r, ok := parseContentRange(header)
	switch {
	case ok:
	case requireHeader:
		return ByteRange{}, errBadRange("Error in request headers")
	default:
		r = ByteRange{Start: 0, End: chunkSize - 1, Total: chunkSize}
	}

	if r.Start > r.End {
		return ByteRange{}, errBadRange("The content range start must be lower than end")
	}

	if r.End >= r.Total {
		return ByteRange{}, errBadRange("End offset must be lower than total size")
	}

	return r, nil
}

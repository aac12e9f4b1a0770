package megaid

import (
	"strconv"
	"strings"

	"github.com/megalab/megaid/pkg/snowflake"
)

// Delimiter separates the three segments of a compound ID.
const Delimiter = ":"

// CompoundID is the parsed form of "<snowflake>:<immutable token>:<mutable token>".
// The token segments are kept verbatim so they can be passed through unchanged.
type CompoundID struct {
	Snowflake uint64
	Immutable string
	Mutable   string
}

// String renders the external text form.
func (c CompoundID) String() string {
	return strconv.FormatUint(c.Snowflake, 10) + Delimiter + c.Immutable + Delimiter + c.Mutable
}

// ParseCompoundID splits s into its segments without verifying any signature.
// The snowflake segment must be a decimal that fits codec's width.
func ParseCompoundID(s string, codec *snowflake.Codec) (CompoundID, error) {
	parts := strings.Split(s, Delimiter)
	if len(parts) != 3 {
		return CompoundID{}, malformedf("expected 3 segments separated by %q, got %d", Delimiter, len(parts))
	}
	for i, part := range parts {
		if part == "" {
			return CompoundID{}, malformedf("segment %d is empty", i+1)
		}
	}

	id, err := codec.ParseID(parts[0])
	if err != nil {
		return CompoundID{}, &Error{Kind: ErrMalformedID, Msg: "invalid snowflake segment", Err: err}
	}

	return CompoundID{
		Snowflake: id,
		Immutable: parts[1],
		Mutable:   parts[2],
	}, nil
}

// IsCompound reports whether s looks like a compound ID rather than a bare
// snowflake. It does not validate anything.
func IsCompound(s string) bool {
	return strings.Contains(s, Delimiter)
}

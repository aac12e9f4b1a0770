package megaid

import (
	"time"

	"github.com/golang-jwt/jwt/v4"
)

// ImmutableRecord is the payload of the immutable block. It is signed with
// the admin key once, at creation, and never re-signed.
type ImmutableRecord struct {
	Megaid        uint64         `json:"megaid"`
	DateCreated   int64          `json:"date_created"`
	Salt          uint64         `json:"random_bits"`
	ImmutableData map[string]any `json:"immutable_data"`

	jwt.RegisteredClaims
}

// MutableRecord is the payload of the mutable block. A new record is signed
// with the shared key on every update. It never carries the identifier, so a
// shared-key holder cannot alter identity or creation time.
type MutableRecord struct {
	DateUpdated int64          `json:"date_updated"`
	MutableData map[string]any `json:"mutable_data"`

	jwt.RegisteredClaims
}

// MetadataView merges both blocks of a verified compound ID.
type MetadataView struct {
	Megaid        uint64         `json:"megaid"`
	DateCreated   int64          `json:"date_created"`
	DateUpdated   int64          `json:"date_updated"`
	Salt          uint64         `json:"random_bits"`
	ImmutableData map[string]any `json:"immutable_data"`
	MutableData   map[string]any `json:"mutable_data"`
}

// CreatedAt returns DateCreated as a UTC time.
func (v *MetadataView) CreatedAt() time.Time {
	return time.UnixMilli(v.DateCreated).UTC()
}

// UpdatedAt returns DateUpdated as a UTC time.
func (v *MetadataView) UpdatedAt() time.Time {
	return time.UnixMilli(v.DateUpdated).UTC()
}

func mergeView(imm *ImmutableRecord, mut *MutableRecord) *MetadataView {
	return &MetadataView{
		Megaid:        imm.Megaid,
		DateCreated:   imm.DateCreated,
		DateUpdated:   mut.DateUpdated,
		Salt:          imm.Salt,
		ImmutableData: nonNil(imm.ImmutableData),
		MutableData:   nonNil(mut.MutableData),
	}
}

func nonNil(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}

// mergeShallow returns a copy of base with every key of updates written over it.
func mergeShallow(base, updates map[string]any) map[string]any {
	out := make(map[string]any, len(base)+len(updates))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range updates {
		out[k] = v
	}
	return out
}

func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	return mergeShallow(m, nil)
}
